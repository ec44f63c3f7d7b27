package protocol_test

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/0xRadioAc7iv/go-filebacked/internal/protocol"
)

func TestEncodeDecodeResponse(t *testing.T) {
	tests := []struct {
		name     string
		response protocol.Response
	}{
		{"simple response", protocol.OK([]byte("ok"))},
		{"nil response", protocol.Nil()},
		{"empty response", protocol.OK(nil)},
		{"error response", protocol.Error(errors.New("key not found"))},
		{"formatted response", protocol.Text("records=%d", 3)},
		{"multiline response", protocol.OK([]byte("line1\nline2\nline3"))},
		{"unicode response", protocol.OK([]byte("こんにちは世界"))},
		{"large response", protocol.OK(make([]byte, 2048))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := net.Pipe()
			defer client.Close()
			defer server.Close()

			payload, err := protocol.EncodeResponse(tt.response)
			if err != nil {
				t.Fatalf("EncodeResponse failed: %v", err)
			}

			go func() {
				_, _ = client.Write(payload)
			}()

			resp, err := protocol.DecodeResponse(server)
			if err != nil {
				t.Fatalf("DecodeResponse failed: %v", err)
			}

			if resp.Status != tt.response.Status {
				t.Errorf("Status mismatch: got %v, want %v", resp.Status, tt.response.Status)
			}
			if !bytes.Equal(resp.Body, tt.response.Body) {
				t.Errorf("Body mismatch: got %q, want %q", resp.Body, tt.response.Body)
			}
		})
	}
}

func TestDecodeResponse_TruncatedPayload(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload, err := protocol.EncodeResponse(protocol.OK([]byte("hello world")))
	if err != nil {
		t.Fatalf("EncodeResponse failed: %v", err)
	}

	go func() {
		_, _ = client.Write(payload[:len(payload)/2])
		client.Close()
	}()

	if _, err := protocol.DecodeResponse(server); err == nil {
		t.Fatalf("expected error on truncated response, got nil")
	}
}

func TestDecodeResponse_BlocksUntilComplete(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload, err := protocol.EncodeResponse(protocol.OK([]byte("blocking test")))
	if err != nil {
		t.Fatalf("EncodeResponse failed: %v", err)
	}

	done := make(chan struct{})

	go func() {
		_, _ = protocol.DecodeResponse(server)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("DecodeResponse returned early")
	case <-time.After(50 * time.Millisecond):
	}

	_, _ = client.Write(payload)

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("DecodeResponse did not return after full payload")
	}
}

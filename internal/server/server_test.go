package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/0xRadioAc7iv/go-filebacked/core"
	"github.com/0xRadioAc7iv/go-filebacked/internal/protocol"
)

func newTestHandler(t *testing.T, opts ...core.Option) *Handler {
	t.Helper()

	db, err := core.OpenConcurrentDictionary(filepath.Join(t.TempDir(), "db"), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	return NewHandler(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandle(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name   string
		cmd    protocol.Command
		status protocol.Status
		body   string
	}{
		{"ping", protocol.Command{Cmd: "PING"}, protocol.StatusOK, "PONG!"},
		{"get missing", protocol.Command{Cmd: "get", Key: "k"}, protocol.StatusNil, ""},
		{"set", protocol.Command{Cmd: "set", Key: "k", Val: []byte("v")}, protocol.StatusOK, "ok"},
		{"get", protocol.Command{Cmd: "get", Key: "k"}, protocol.StatusOK, "v"},
		{"exists", protocol.Command{Cmd: "exists", Key: "k"}, protocol.StatusOK, "true"},
		{"count", protocol.Command{Cmd: "count"}, protocol.StatusOK, "1"},
		{"list", protocol.Command{Cmd: "list"}, protocol.StatusOK, "k"},
		{"delete", protocol.Command{Cmd: "delete", Key: "k"}, protocol.StatusOK, "ok"},
		{"delete missing", protocol.Command{Cmd: "delete", Key: "k"}, protocol.StatusNil, ""},
		{"exists after delete", protocol.Command{Cmd: "exists", Key: "k"}, protocol.StatusOK, "false"},
		{"list empty", protocol.Command{Cmd: "list"}, protocol.StatusNil, ""},
		{"compact", protocol.Command{Cmd: "compact"}, protocol.StatusOK, "ok"},
		{"stats", protocol.Command{Cmd: "stats"}, protocol.StatusOK, "records=0 file_bytes=0 free_bytes=0 free_ranges=0"},
		{"empty key", protocol.Command{Cmd: "set", Val: []byte("v")}, protocol.StatusError, "invalid key"},
		{"unknown", protocol.Command{Cmd: "frobnicate"}, protocol.StatusError, "Invalid Command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.Handle(&tt.cmd)
			if resp.Status != tt.status {
				t.Fatalf("status = %v, want %v (body %q)", resp.Status, tt.status, resp.Body)
			}
			if string(resp.Body) != tt.body {
				t.Fatalf("body = %q, want %q", resp.Body, tt.body)
			}
		})
	}
}

func TestHandleReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	d, err := core.OpenDictionary(path)
	if err != nil {
		t.Fatal(err)
	}
	d.Put("k", []byte("v"))
	d.Close()

	db, err := core.OpenConcurrentDictionary(path, core.WithReadOnly())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	h := NewHandler(db, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if resp := h.Handle(&protocol.Command{Cmd: "get", Key: "k"}); string(resp.Body) != "v" {
		t.Fatalf("get on read-only store: %v %q", resp.Status, resp.Body)
	}
	if resp := h.Handle(&protocol.Command{Cmd: "set", Key: "k", Val: []byte("x")}); resp.Status != protocol.StatusError {
		t.Fatalf("set on read-only store: %v %q", resp.Status, resp.Body)
	}
}

func TestServeConnOverPipe(t *testing.T) {
	h := newTestHandler(t)
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.ServeConn(ctx, serverConn)
		close(done)
	}()

	for _, cmd := range []protocol.Command{
		{Cmd: "set", Key: "a", Val: []byte("1")},
		{Cmd: "get", Key: "a"},
	} {
		payload, _ := protocol.EncodeCommand(cmd.Cmd, cmd.Key, cmd.Val)
		go clientConn.Write(payload)

		resp, err := protocol.DecodeResponse(clientConn)
		if err != nil {
			t.Fatal(err)
		}
		if resp.Status != protocol.StatusOK {
			t.Fatalf("%s: status %v", cmd.Cmd, resp.Status)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ServeConn did not return after cancellation")
	}
}

func TestListSkipsPortsInUse(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer taken.Close()

	port := taken.Addr().(*net.TCPAddr).Port
	ln, err := Listen("127.0.0.1", port)
	if err != nil {
		t.Skipf("no free port after %d: %v", port, err)
	}
	defer ln.Close()

	_, got, _ := net.SplitHostPort(ln.Addr().String())
	if got == strconv.Itoa(port) {
		t.Fatalf("Listen reused the taken port %d", port)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- Serve(ctx, ln, func(conn net.Conn) { conn.Close() }, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err == nil {
		conn.Close()
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop")
	}
}

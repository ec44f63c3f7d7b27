package main

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/s2"

	"github.com/0xRadioAc7iv/go-filebacked/core"
)

func TestWriteDumpCompressed(t *testing.T) {
	d, err := core.OpenDictionary(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	d.Put("name", []byte("radioactive"))

	var buf bytes.Buffer
	if err := writeDump(&buf, d, true); err != nil {
		t.Fatal(err)
	}

	plain, err := io.ReadAll(s2.NewReader(&buf))
	if err != nil {
		t.Fatal(err)
	}
	if want := "\"name\"\t\"radioactive\"\n"; string(plain) != want {
		t.Fatalf("dump = %q, want %q", plain, want)
	}
}

func TestWriteDumpTerminatesStreamOnError(t *testing.T) {
	d, err := core.OpenDictionary(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatal(err)
	}
	d.Put("k", []byte("v"))
	d.Close()

	var buf bytes.Buffer
	if err := writeDump(&buf, d, true); !errors.Is(err, core.ErrClosed) {
		t.Fatalf("writeDump on a closed dictionary = %v, want ErrClosed", err)
	}

	// the partial dump is still a well-formed, readable stream
	if _, err := io.ReadAll(s2.NewReader(&buf)); err != nil {
		t.Fatalf("reading the dump: %v", err)
	}
}

func TestDumpKinds(t *testing.T) {
	dir := t.TempDir()

	l, err := core.OpenList(filepath.Join(dir, "list"))
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	l.Append([]byte("a"))
	l.Append([]byte("b"))

	s, err := core.OpenSet(filepath.Join(dir, "set"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	s.Add("m")

	tests := []struct {
		name string
		c    collection
		want string
	}{
		{"list", l, "0\t\"a\"\n1\t\"b\"\n"},
		{"set", s, "\"m\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writeDump(&buf, tt.c, false); err != nil {
				t.Fatal(err)
			}
			if buf.String() != tt.want {
				t.Fatalf("dump = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

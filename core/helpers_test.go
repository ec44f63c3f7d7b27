package core

import (
	"path/filepath"
	"testing"

	"github.com/0xRadioAc7iv/go-filebacked/internal/alloc"
)

func tempPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "collection.data")
}

func openDictionary(t *testing.T, path string, opts ...Option) *Dictionary {
	t.Helper()

	d, err := OpenDictionary(path, opts...)
	if err != nil {
		t.Fatalf("failed to open dictionary: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func mustPut(t *testing.T, d *Dictionary, key, value string) {
	t.Helper()
	if err := d.Put(key, []byte(value)); err != nil {
		t.Fatalf("Put(%q): %v", key, err)
	}
}

func expectValue(t *testing.T, d *Dictionary, key, want string) {
	t.Helper()

	got, err := d.Get(key)
	if err != nil {
		t.Fatalf("Get(%q): %v", key, err)
	}
	if string(got) != want {
		t.Fatalf("Get(%q) = %q, want %q", key, got, want)
	}
}

// checkInvariants verifies that free ranges and live slots are disjoint and
// together cover the whole file.
func checkInvariants(t *testing.T, tb *table) {
	t.Helper()

	var liveBytes int64
	live := make([]alloc.Range, 0, tb.keys.Len())
	for _, e := range tb.keys.All() {
		live = append(live, alloc.Range{Off: e.Offset, Len: int64(e.SlotSize)})
		liveBytes += int64(e.SlotSize)
	}
	if err := tb.free.Check(live); err != nil {
		t.Fatal(err)
	}
	if got := liveBytes + tb.free.Total(); got != tb.log.Len() {
		t.Fatalf("live (%d) and free (%d) bytes do not add up to the file size %d",
			liveBytes, tb.free.Total(), tb.log.Len())
	}
}

// Package index holds the in-memory maps from logical keys and list
// positions to record slots in the backing file.
package index

import (
	"iter"
	"maps"
	"slices"

	"github.com/0xRadioAc7iv/go-filebacked/internal/record"
)

// Entry locates one Active record.
//
// Version changes every time the bytes of the slot are rewritten by this
// handle. Readers that copy an Entry, drop their lock and read the slot can
// compare Offset and Version afterwards to detect a concurrent rewrite.
type Entry struct {
	Offset      int64  // Byte offset in the backing file where the slot starts
	SlotSize    uint32 // Bytes owned by the slot (frame + padding)
	PayloadSize uint32 // Payload bytes of the frame
	Version     uint64
}

// FrameSize is the number of meaningful bytes at the start of the slot.
func (e Entry) FrameSize() int {
	return record.HeaderSizeBytes + int(e.PayloadSize)
}

// KeyDir is the in-memory index mapping keys to their on-disk entries.
// It makes no ordering promise.
//
// It is rebuilt on open by scanning the backing file and maintained
// incrementally afterwards.
type KeyDir map[string]Entry

func NewKeyDir() KeyDir {
	return make(KeyDir)
}

func (kd KeyDir) Lookup(key string) (Entry, bool) {
	e, ok := kd[key]
	return e, ok
}

// Insert sets the entry for key and returns the entry it replaced.
func (kd KeyDir) Insert(key string, e Entry) (Entry, bool) {
	prev, ok := kd[key]
	kd[key] = e
	return prev, ok
}

func (kd KeyDir) Remove(key string) (Entry, bool) {
	e, ok := kd[key]
	if ok {
		delete(kd, key)
	}
	return e, ok
}

func (kd KeyDir) Len() int {
	return len(kd)
}

// All yields the current entries. Mutating the KeyDir while ranging over All
// follows Go map iteration rules.
func (kd KeyDir) All() iter.Seq2[string, Entry] {
	return maps.All(kd)
}

// Keys returns a snapshot of the key set.
func (kd KeyDir) Keys() []string {
	return slices.Collect(maps.Keys(kd))
}

package index

import (
	"bytes"
	"fmt"
	"slices"
)

// Position is one element of a list: its order key and where its record
// lives.
type Position struct {
	Key   []byte
	Entry Entry
}

// PositionTable maps list ordinals to record slots. Inserting or removing
// shifts table entries only; records on disk never move.
type PositionTable struct {
	items []Position
}

func NewPositionTable() *PositionTable {
	return &PositionTable{}
}

// Load replaces the table with items sorted by order key. Two items with the
// same key mean the backing file is inconsistent.
func (t *PositionTable) Load(items []Position) error {
	slices.SortFunc(items, func(a, b Position) int {
		return bytes.Compare(a.Key, b.Key)
	})
	for i := 1; i < len(items); i++ {
		if bytes.Equal(items[i-1].Key, items[i].Key) {
			return fmt.Errorf("duplicate order key %x at offsets %d and %d",
				items[i].Key, items[i-1].Entry.Offset, items[i].Entry.Offset)
		}
	}
	t.items = items
	return nil
}

func (t *PositionTable) Len() int {
	return len(t.items)
}

func (t *PositionTable) At(i int) Position {
	return t.items[i]
}

func (t *PositionTable) Set(i int, e Entry) {
	t.items[i].Entry = e
}

// KeyForInsert returns an order key that sorts between positions i-1 and i.
func (t *PositionTable) KeyForInsert(i int) []byte {
	var lo, hi []byte
	if i > 0 {
		lo = t.items[i-1].Key
	}
	if i < len(t.items) {
		hi = t.items[i].Key
	}
	return OrderKeyBetween(lo, hi)
}

// Insert places a new element at i, shifting i and later elements up by one.
func (t *PositionTable) Insert(i int, key []byte, e Entry) {
	t.items = slices.Insert(t.items, i, Position{Key: key, Entry: e})
}

// RemoveAt drops the element at i, shifting later elements down by one.
func (t *PositionTable) RemoveAt(i int) Position {
	p := t.items[i]
	t.items = slices.Delete(t.items, i, i+1)
	return p
}

// Snapshot returns a copy of the table.
func (t *PositionTable) Snapshot() []Position {
	return slices.Clone(t.items)
}

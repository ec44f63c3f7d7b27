package core

import (
	"fmt"
	"iter"

	"github.com/0xRadioAc7iv/go-filebacked/internal/index"
	"github.com/0xRadioAc7iv/go-filebacked/internal/record"
	"github.com/0xRadioAc7iv/go-filebacked/internal/storage"
)

// List is a persistent sequence of byte values addressed by position.
//
// Each element is stored under an order key: a byte string that sorts
// between the keys of its neighbours. Inserting or removing an element never
// rewrites any other record, and reopening sorts the records by key to
// recover the sequence.
type List struct {
	s         *store
	positions *index.PositionTable
	err       error
}

func OpenList(path string, opts ...Option) (*List, error) {
	s, err := openStore(path, newConfig(opts), true)
	if err != nil {
		return nil, err
	}

	var items []index.Position
	err = s.scan(func(slot storage.Slot) error {
		r, err := record.DecodeRecordFromBytes(slot.Frame)
		if err != nil {
			return record.AtOffset(err, slot.Offset)
		}
		if !index.ValidOrderKey(r.Key) {
			return &record.CorruptRecordError{Offset: slot.Offset, Reason: fmt.Sprintf("invalid list order key %x", r.Key)}
		}
		items = append(items, index.Position{Key: r.Key, Entry: s.entryFor(slot)})
		return nil
	})
	if err != nil {
		s.close()
		return nil, err
	}

	positions := index.NewPositionTable()
	if err := positions.Load(items); err != nil {
		s.close()
		return nil, &record.CorruptRecordError{Offset: -1, Reason: err.Error()}
	}
	return &List{s: s, positions: positions}, nil
}

func (l *List) Path() string { return l.s.path }

func (l *List) checkIndex(i, size int) error {
	if i < 0 || i >= size {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, size)
	}
	return nil
}

// Get returns the element at position i.
func (l *List) Get(i int) ([]byte, error) {
	if err := l.s.checkOpen(); err != nil {
		return nil, err
	}
	if err := l.checkIndex(i, l.positions.Len()); err != nil {
		return nil, err
	}
	return l.s.readValue(l.s.log, l.positions.At(i).Entry)
}

// Set replaces the element at position i.
func (l *List) Set(i int, value []byte) error {
	if err := l.s.checkWritable(); err != nil {
		return err
	}
	if err := l.checkIndex(i, l.positions.Len()); err != nil {
		return err
	}

	p := l.positions.At(i)
	e, err := l.s.write(p.Key, l.s.encodeValue(value), &p.Entry)
	if err != nil {
		return err
	}
	l.positions.Set(i, e)
	return l.s.committed()
}

// Insert places value at position i, shifting the element at i and every
// later one up by one. i may equal Size to append.
func (l *List) Insert(i int, value []byte) error {
	if err := l.s.checkWritable(); err != nil {
		return err
	}
	if err := l.checkIndex(i, l.positions.Len()+1); err != nil {
		return err
	}

	key := l.positions.KeyForInsert(i)
	e, err := l.s.write(key, l.s.encodeValue(value), nil)
	if err != nil {
		return err
	}
	l.positions.Insert(i, key, e)
	return l.s.committed()
}

func (l *List) Append(value []byte) error {
	if err := l.s.checkWritable(); err != nil {
		return err
	}
	return l.Insert(l.positions.Len(), value)
}

// RemoveAt deletes the element at position i and returns its value.
func (l *List) RemoveAt(i int) ([]byte, error) {
	if err := l.s.checkWritable(); err != nil {
		return nil, err
	}
	if err := l.checkIndex(i, l.positions.Len()); err != nil {
		return nil, err
	}

	p := l.positions.At(i)
	value, err := l.s.readValue(l.s.log, p.Entry)
	if err != nil {
		return nil, err
	}
	if err := l.s.release(p.Entry); err != nil {
		return nil, err
	}
	l.positions.RemoveAt(i)
	return value, l.s.committed()
}

// Size is the number of elements, or zero once the list is closed.
func (l *List) Size() int {
	if l.s.closed {
		return 0
	}
	return l.positions.Len()
}

// All ranges over the elements present at the time of the call in position
// order. It stops at the first read error, which Err then reports.
func (l *List) All() iter.Seq2[int, []byte] {
	return func(yield func(int, []byte) bool) {
		l.err = l.s.checkOpen()
		if l.err != nil {
			return
		}

		log := l.s.log
		for i, p := range l.positions.Snapshot() {
			value, err := l.s.readValue(log, p.Entry)
			if err != nil {
				l.err = err
				return
			}
			if !yield(i, value) {
				return
			}
		}
	}
}

// Err returns the error that ended the most recent All, if any.
func (l *List) Err() error { return l.err }

// Compact rewrites the backing file without dead space. Elements keep their
// order and get fresh, evenly spaced order keys.
func (l *List) Compact() error {
	if err := l.s.checkWritable(); err != nil {
		return err
	}

	current := l.positions.Snapshot()
	keys := index.OrderKeys(len(current))
	items := make([]rewriteItem, len(current))
	for i, p := range current {
		items[i] = rewriteItem{From: p.Entry, Key: keys[i]}
	}

	entries, err := l.s.rewrite(items)
	if err != nil {
		return err
	}

	rebuilt := make([]index.Position, len(entries))
	for i, e := range entries {
		rebuilt[i] = index.Position{Key: keys[i], Entry: e}
	}
	return l.positions.Load(rebuilt)
}

func (l *List) Stats() Stats { return l.s.stats(l.Size()) }
func (l *List) Sync() error  { return l.s.sync() }
func (l *List) Close() error { return l.s.close() }

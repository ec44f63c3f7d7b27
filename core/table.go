package core

import (
	"cmp"
	"slices"

	"github.com/0xRadioAc7iv/go-filebacked/internal/index"
	"github.com/0xRadioAc7iv/go-filebacked/internal/record"
	"github.com/0xRadioAc7iv/go-filebacked/internal/storage"
)

// table is the keyed engine behind Dictionary and Set: a store plus a KeyDir
// rebuilt from it on open.
type table struct {
	*store
	keys index.KeyDir
}

func openTable(path string, cfg *Config) (*table, error) {
	s, err := openStore(path, cfg, true)
	if err != nil {
		return nil, err
	}

	t := &table{store: s, keys: index.NewKeyDir()}
	if err := s.scan(t.load); err != nil {
		s.close()
		return nil, err
	}
	return t, nil
}

func (t *table) load(slot storage.Slot) error {
	r, err := record.DecodeRecordFromBytes(slot.Frame)
	if err != nil {
		return record.AtOffset(err, slot.Offset)
	}

	prev, dup := t.keys.Insert(string(r.Key), t.entryFor(slot))
	if !dup {
		return nil
	}

	// A key owns at most one Active slot. A second one can only be left over
	// from an interrupted write; the later slot wins.
	t.logger.Warn("dropping duplicate active record", "offset", prev.Offset, "kept", slot.Offset)
	if !t.log.ReadOnly() {
		if err := t.setStatus(prev.Offset, record.StatusTombstone); err != nil {
			return err
		}
	}
	t.free.Release(prev.Offset, int64(prev.SlotSize))
	return nil
}

func (t *table) get(key string) ([]byte, error) {
	e, ok := t.keys.Lookup(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return t.readValue(t.log, e)
}

// put stores value, already encoded, under key.
func (t *table) put(key string, value []byte) error {
	var old *index.Entry
	if e, ok := t.keys.Lookup(key); ok {
		old = &e
	}

	e, err := t.write([]byte(key), value, old)
	if err != nil {
		return err
	}
	t.keys.Insert(key, e)
	return t.committed()
}

func (t *table) remove(key string) (bool, error) {
	e, ok := t.keys.Lookup(key)
	if !ok {
		return false, nil
	}
	if err := t.release(e); err != nil {
		return false, err
	}
	t.keys.Remove(key)
	return true, t.committed()
}

func (t *table) compact() error {
	type live struct {
		key   string
		entry index.Entry
	}
	records := make([]live, 0, t.keys.Len())
	for k, e := range t.keys.All() {
		records = append(records, live{k, e})
	}
	// file order keeps the reads sequential
	slices.SortFunc(records, func(a, b live) int {
		return cmp.Compare(a.entry.Offset, b.entry.Offset)
	})

	items := make([]rewriteItem, len(records))
	for i, l := range records {
		items[i] = rewriteItem{From: l.entry}
	}

	entries, err := t.rewrite(items)
	if err != nil {
		return err
	}
	for i, l := range records {
		t.keys.Insert(l.key, entries[i])
	}
	return nil
}

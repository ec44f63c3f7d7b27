package core

import (
	"bytes"
	"iter"

	"github.com/0xRadioAc7iv/go-filebacked/internal/cache"
)

// Dictionary maps non-empty string keys to byte values held in one backing
// file. Iteration order is unspecified.
//
// A Dictionary is not safe for concurrent use. Wrap it with
// ConcurrentDictionary to share it between goroutines.
type Dictionary struct {
	t     *table
	cache *cache.LRU
}

// OpenDictionary opens the dictionary stored at path, creating an empty one
// unless WithCreateIfMissing(false) is given. The file is scanned once to
// rebuild the index; a trailing incomplete write is discarded.
func OpenDictionary(path string, opts ...Option) (*Dictionary, error) {
	cfg := newConfig(opts)

	t, err := openTable(path, cfg)
	if err != nil {
		return nil, err
	}
	return &Dictionary{t: t, cache: cache.New(cfg.CacheSize)}, nil
}

func (d *Dictionary) Path() string { return d.t.path }

// Get returns the value stored under key, or ErrKeyNotFound.
func (d *Dictionary) Get(key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if err := d.t.checkOpen(); err != nil {
		return nil, err
	}

	if v, ok := d.cache.Get(key); ok {
		return bytes.Clone(v), nil
	}

	v, err := d.t.get(key)
	if err != nil {
		return nil, err
	}
	d.cache.Add(key, bytes.Clone(v))
	return v, nil
}

// Put stores value under key, replacing any previous value.
func (d *Dictionary) Put(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := d.t.checkWritable(); err != nil {
		return err
	}

	d.cache.Remove(key)
	return d.t.put(key, d.t.encodeValue(value))
}

// Remove deletes key and reports whether it was present.
func (d *Dictionary) Remove(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	if err := d.t.checkWritable(); err != nil {
		return false, err
	}

	d.cache.Remove(key)
	return d.t.remove(key)
}

func (d *Dictionary) Contains(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	if err := d.t.checkOpen(); err != nil {
		return false, err
	}

	_, ok := d.t.keys.Lookup(key)
	return ok, nil
}

// Size is the number of keys. Like len it cannot fail: once the dictionary
// is closed Size reports zero, and the operations that touch the file return
// ErrClosed.
func (d *Dictionary) Size() int {
	if d.t.closed {
		return 0
	}
	return d.t.keys.Len()
}

// Keys returns a snapshot of the key set.
func (d *Dictionary) Keys() []string {
	if d.t.closed {
		return nil
	}
	return d.t.keys.Keys()
}

// Iterate returns an iterator over the keys present at the time of the call.
func (d *Dictionary) Iterate() *Iterator {
	if err := d.t.checkOpen(); err != nil {
		return errIterator(err)
	}
	return newIterator(d.t.keys.Keys(), d.Get)
}

// All ranges over the key/value pairs present at the time of the call. It
// stops at the first read error; use Iterate to observe that error.
func (d *Dictionary) All() iter.Seq2[string, []byte] {
	return func(yield func(string, []byte) bool) {
		it := d.Iterate()
		for it.Next() {
			if !yield(it.Key(), it.Value()) {
				return
			}
		}
	}
}

// Compact rewrites the backing file without dead space.
func (d *Dictionary) Compact() error {
	if err := d.t.checkWritable(); err != nil {
		return err
	}
	return d.t.compact()
}

func (d *Dictionary) Stats() Stats {
	return d.t.stats(d.Size())
}

func (d *Dictionary) Sync() error {
	return d.t.sync()
}

// Close syncs and closes the backing file and releases its lock. Every later
// call fails with ErrClosed.
func (d *Dictionary) Close() error {
	d.cache.Purge()
	return d.t.close()
}

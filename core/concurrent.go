package core

import (
	"bytes"
	"iter"
	"sync"
)

// ConcurrentDictionary is a Dictionary that may be shared between
// goroutines.
//
// Writers are serialized by one lock. Readers copy the index entry under the
// read lock and read the slot without it, then check under the read lock that
// no writer touched the slot in between; a reader that raced with a writer
// reads again. Reads therefore never wait for a slow read by another reader,
// and writers only wait for index lookups.
type ConcurrentDictionary struct {
	mu sync.RWMutex
	d  *Dictionary
}

func OpenConcurrentDictionary(path string, opts ...Option) (*ConcurrentDictionary, error) {
	d, err := OpenDictionary(path, opts...)
	if err != nil {
		return nil, err
	}
	return NewConcurrentDictionary(d), nil
}

// NewConcurrentDictionary takes ownership of d. d must not be used directly
// afterwards.
func NewConcurrentDictionary(d *Dictionary) *ConcurrentDictionary {
	return &ConcurrentDictionary{d: d}
}

func (c *ConcurrentDictionary) Path() string { return c.d.Path() }

func (c *ConcurrentDictionary) Get(key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	t := c.d.t

	c.mu.RLock()
	if t.closed {
		c.mu.RUnlock()
		return nil, ErrClosed
	}
	if v, ok := c.d.cache.Get(key); ok {
		c.mu.RUnlock()
		return bytes.Clone(v), nil
	}
	e, ok := t.keys.Lookup(key)
	log := t.log
	c.mu.RUnlock()

	for range maxOptimisticReads {
		if !ok {
			return nil, ErrKeyNotFound
		}

		value, err := t.readValue(log, e)

		c.mu.RLock()
		if t.closed {
			c.mu.RUnlock()
			return nil, ErrClosed
		}
		current, found := t.keys.Lookup(key)
		if found && current == e {
			if err == nil {
				c.d.cache.Add(key, bytes.Clone(value))
			}
			c.mu.RUnlock()
			return value, err
		}
		e, ok, log = current, found, t.log
		c.mu.RUnlock()
	}

	// The slot kept changing under us; read it with writers held off.
	c.mu.RLock()
	defer c.mu.RUnlock()
	if t.closed {
		return nil, ErrClosed
	}
	return t.get(key)
}

func (c *ConcurrentDictionary) Put(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.d.Put(key, value)
}

func (c *ConcurrentDictionary) Remove(key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.d.Remove(key)
}

func (c *ConcurrentDictionary) Contains(key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.d.Contains(key)
}

// Size reports zero once the dictionary is closed.
func (c *ConcurrentDictionary) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.d.Size()
}

func (c *ConcurrentDictionary) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.d.Keys()
}

// Iterate snapshots the key set and reads each value with Get when it is
// reached. A value may therefore be newer than the snapshot, and keys removed
// since are skipped.
func (c *ConcurrentDictionary) Iterate() *Iterator {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.d.t.checkOpen(); err != nil {
		return errIterator(err)
	}
	return newIterator(c.d.t.keys.Keys(), c.Get)
}

func (c *ConcurrentDictionary) All() iter.Seq2[string, []byte] {
	return func(yield func(string, []byte) bool) {
		it := c.Iterate()
		for it.Next() {
			if !yield(it.Key(), it.Value()) {
				return
			}
		}
	}
}

// Compact holds off every other operation until the rewrite is complete.
func (c *ConcurrentDictionary) Compact() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.d.Compact()
}

func (c *ConcurrentDictionary) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.d.Stats()
}

func (c *ConcurrentDictionary) Sync() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.d.Sync()
}

func (c *ConcurrentDictionary) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.d.Close()
}

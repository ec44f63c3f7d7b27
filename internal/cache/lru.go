// Package cache is a bounded, sharded LRU of hot values.
//
// It is an optimization in front of the on-disk index and is never required
// for correctness: a miss always falls back to reading the backing file.
package cache

import (
	"container/list"
	"sync"

	"github.com/spaolacci/murmur3"
)

const defaultShards = 16

type item struct {
	key   string
	value []byte
}

type shard struct {
	mu       sync.Mutex
	buffer   map[string]*list.Element
	stack    *list.List
	capacity int
}

// LRU caches up to roughly capacity values, spread over shards picked by a
// murmur3 hash of the key. Each shard evicts independently.
type LRU struct {
	shards []*shard
}

// New returns a cache holding at most capacity values. A capacity of zero or
// less returns nil; all methods are no-ops on a nil *LRU.
func New(capacity int) *LRU {
	if capacity <= 0 {
		return nil
	}

	n := defaultShards
	if capacity < n {
		n = capacity
	}

	c := &LRU{shards: make([]*shard, n)}
	per := capacity / n
	extra := capacity % n
	for i := range c.shards {
		size := per
		if i < extra {
			size++
		}
		c.shards[i] = &shard{
			buffer:   make(map[string]*list.Element),
			stack:    list.New(),
			capacity: size,
		}
	}
	return c
}

func (c *LRU) shardFor(key string) *shard {
	// Sum32 reads past the end of short keys through unsafe pointers, which
	// checkptr rejects under -race.
	h := murmur3.Sum64([]byte(key))
	return c.shards[h%uint64(len(c.shards))]
}

// Get returns the cached value for key. The returned slice must not be
// modified.
func (c *LRU) Get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}

	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.buffer[key]
	if !ok {
		// miss
		return nil, false
	}
	s.stack.MoveToFront(e)
	return e.Value.(*item).value, true
}

// Add stores value under key, evicting the least recently used value of the
// shard when it is full. The cache keeps value; callers must not modify it
// afterwards.
func (c *LRU) Add(key string, value []byte) {
	if c == nil {
		return
	}

	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.buffer[key]; ok {
		e.Value.(*item).value = value
		s.stack.MoveToFront(e)
		return
	}

	for s.stack.Len() >= s.capacity {
		back := s.stack.Back()
		delete(s.buffer, back.Value.(*item).key)
		s.stack.Remove(back)
	}
	s.buffer[key] = s.stack.PushFront(&item{key: key, value: value})
}

func (c *LRU) Remove(key string) {
	if c == nil {
		return
	}

	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.buffer[key]; ok {
		delete(s.buffer, key)
		s.stack.Remove(e)
	}
}

// Purge drops every cached value.
func (c *LRU) Purge() {
	if c == nil {
		return
	}

	for _, s := range c.shards {
		s.mu.Lock()
		s.buffer = make(map[string]*list.Element)
		s.stack.Init()
		s.mu.Unlock()
	}
}

// Len is the number of cached values.
func (c *LRU) Len() int {
	if c == nil {
		return 0
	}

	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += s.stack.Len()
		s.mu.Unlock()
	}
	return n
}

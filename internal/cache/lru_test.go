package cache

import (
	"fmt"
	"sync"
	"testing"
)

func TestNilCacheIsNoop(t *testing.T) {
	var c *LRU = New(0)

	c.Add("a", []byte("1"))
	if _, ok := c.Get("a"); ok {
		t.Fatal("nil cache returned a value")
	}
	c.Remove("a")
	c.Purge()
	if c.Len() != 0 {
		t.Fatal("nil cache has entries")
	}
}

func TestAddGetRemove(t *testing.T) {
	c := New(8)

	c.Add("a", []byte("1"))
	c.Add("a", []byte("2"))

	v, ok := c.Get("a")
	if !ok || string(v) != "2" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}

	c.Remove("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("value still cached after Remove")
	}
}

func TestSingleShardEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(1)
	if len(c.shards) != 1 {
		t.Fatalf("expected one shard, got %d", len(c.shards))
	}
	c.shards[0].capacity = 2

	c.Add("a", []byte("1"))
	c.Add("b", []byte("2"))
	c.Get("a")
	c.Add("c", []byte("3"))

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a was recently used and should still be cached")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("c should be cached")
	}
}

func TestCapacityIsBounded(t *testing.T) {
	c := New(32)

	for i := 0; i < 1000; i++ {
		c.Add(fmt.Sprintf("key-%d", i), []byte("v"))
	}

	if c.Len() > 32 {
		t.Fatalf("Len() = %d, exceeds capacity 32", c.Len())
	}

	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("Len() after Purge = %d", c.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(64)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("key-%d", (id*500+i)%100)
				c.Add(key, []byte(key))
				if v, ok := c.Get(key); ok && string(v) != key {
					t.Errorf("Get(%s) = %q", key, v)
				}
			}
		}(g)
	}
	wg.Wait()
}

func TestShardForEveryKeyLength(t *testing.T) {
	c := New(defaultShards * 4)

	buf := []byte("abcdefghijklmnopqrstuvwxyz0123456789")
	for start := 0; start < 4; start++ {
		for n := 0; start+n <= len(buf); n++ {
			key := string(buf[start : start+n])
			if c.shardFor(key) != c.shardFor(key) {
				t.Fatalf("shard for %q is not stable", key)
			}
			c.Add(key, []byte(key))
			if v, ok := c.Get(key); ok && string(v) != key {
				t.Fatalf("Get(%q) = %q", key, v)
			}
		}
	}
}

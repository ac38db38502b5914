package cache

import (
	"sync"
	"testing"
)

func TestShardedGetSet(t *testing.T) {
	c := NewSharded[uint64, string](4, Uint64Hasher)
	c.Set(1, "one", 0)

	v, ok := c.Get(1, 0)
	if !ok || v != "one" {
		t.Errorf("Get(1) = %q, %v; want one, true", v, ok)
	}
	if _, ok := c.Get(2, 0); ok {
		t.Error("Get(2) found a missing key")
	}

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Len != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestShardedGetOrCreate(t *testing.T) {
	c := NewSharded[string, int](0, StringHasher)
	calls := 0
	create := func() int { calls++; return 7 }

	if v := c.GetOrCreate("k", 0, create); v != 7 {
		t.Errorf("GetOrCreate() = %d, want 7", v)
	}
	if v := c.GetOrCreate("k", 1, create); v != 7 {
		t.Errorf("GetOrCreate() = %d, want 7", v)
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}
}

func TestShardedEvictsLeastRecentlyUsed(t *testing.T) {
	// A constant hasher puts every key in the same shard.
	c := NewSharded[int, int](2, func(int) uint64 { return 0 })
	c.Set(1, 1, 0)
	c.Set(2, 2, 0)
	c.Get(1, 0)
	c.Set(3, 3, 0)

	if _, ok := c.Get(2, 0); ok {
		t.Error("key 2 should have been evicted")
	}
	if _, ok := c.Get(1, 0); !ok {
		t.Error("key 1 was used recently and must survive")
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", c.Stats().Evictions)
	}
}

func TestShardedExpireBefore(t *testing.T) {
	c := NewSharded[uint64, int](0, Uint64Hasher)
	for i := uint64(0); i < 10; i++ {
		c.Set(i, int(i), i)
	}
	c.Get(2, 20)

	if n := c.ExpireBefore(5); n != 4 {
		t.Errorf("ExpireBefore(5) removed %d, want 4", n)
	}
	if _, ok := c.Get(2, 21); !ok {
		t.Error("recently used key 2 must not expire")
	}
	if c.Len() != 6 {
		t.Errorf("Len() = %d, want 6", c.Len())
	}
}

func TestShardedDeleteAndClear(t *testing.T) {
	c := NewSharded[uint64, int](0, Uint64Hasher)
	c.Set(1, 1, 0)
	c.Set(2, 2, 0)
	if !c.Delete(1) || c.Delete(1) {
		t.Error("Delete must report presence exactly once")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d", c.Len())
	}
}

func TestShardedConcurrent(t *testing.T) {
	c := NewSharded[uint64, uint64](0, Uint64Hasher)
	var wg sync.WaitGroup
	for g := uint64(0); g < 8; g++ {
		wg.Add(1)
		go func(g uint64) {
			defer wg.Done()
			for i := uint64(0); i < 100; i++ {
				k := g*1000 + i
				c.Set(k, k, 0)
				if v, ok := c.Get(k, 0); !ok || v != k {
					t.Errorf("Get(%d) = %d, %v", k, v, ok)
				}
			}
		}(g)
	}
	wg.Wait()
	if c.Len() != 800 {
		t.Errorf("Len() = %d, want 800", c.Len())
	}
}

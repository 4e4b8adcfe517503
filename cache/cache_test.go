package cache

import (
	"testing"
	"time"
)

func TestCacheGetSet(t *testing.T) {
	c := New[string, int](10)

	if _, fr := c.Get("missing"); fr != Miss {
		t.Errorf("Get(missing) = %v, want Miss", fr)
	}

	c.Set("a", 1)
	v, fr := c.Get("a")
	if fr != Fresh || v != 1 {
		t.Errorf("Get(a) = %d, %v, want 1, Fresh", v, fr)
	}

	c.Set("a", 2)
	if v, _ := c.Get("a"); v != 2 {
		t.Errorf("Get(a) after update = %d, want 2", v)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCacheLRUEviction(t *testing.T) {
	c := New[string, int](3)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// Touch a so b becomes the oldest.
	c.Get("a")
	c.Set("d", 4)

	if _, fr := c.Get("b"); fr != Miss {
		t.Error("b should have been evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, fr := c.Get(key); fr == Miss {
			t.Errorf("%s should still be cached", key)
		}
	}
	if got := c.Stats().Evicts; got != 1 {
		t.Errorf("Evicts = %d, want 1", got)
	}
}

func TestCacheTTL(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := New[string, int](10)
	c.now = func() time.Time { return now }

	c.SetWithTTL("a", 1, time.Hour)
	c.Set("forever", 2)

	if _, fr := c.Get("a"); fr != Fresh {
		t.Errorf("Get(a) = %v, want Fresh", fr)
	}

	now = now.Add(2 * time.Hour)

	// Expired entries survive as stale, they are not dropped.
	v, fr := c.Get("a")
	if fr != Stale || v != 1 {
		t.Errorf("Get(a) after expiry = %d, %v, want 1, Stale", v, fr)
	}
	if _, fr := c.Get("forever"); fr != Fresh {
		t.Errorf("Get(forever) = %v, want Fresh", fr)
	}

	// A rewrite resets the deadline.
	c.SetWithTTL("a", 3, time.Hour)
	if v, fr := c.Get("a"); fr != Fresh || v != 3 {
		t.Errorf("Get(a) after rewrite = %d, %v, want 3, Fresh", v, fr)
	}
}

func TestCachePinBlocksEviction(t *testing.T) {
	c := New[string, int](2)

	c.Set("a", 1)
	c.Set("b", 2)
	if !c.Pin("a") {
		t.Fatal("Pin(a) = false, want true")
	}

	// a is the LRU entry but pinned, so b goes instead.
	c.Set("c", 3)
	if _, fr := c.Get("a"); fr == Miss {
		t.Error("pinned entry was evicted")
	}
	if _, fr := c.Get("b"); fr != Miss {
		t.Error("b should have been evicted in place of pinned a")
	}

	c.Unpin("a")
	c.Get("c") // make a the oldest again
	c.Set("d", 4)
	if _, fr := c.Get("a"); fr != Miss {
		t.Error("unpinned entry should be evictable")
	}
}

func TestCachePinAllExceedsCapacity(t *testing.T) {
	c := New[string, int](2)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Pin("a")
	c.Pin("b")

	c.Set("c", 3)
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3 when all entries are pinned", c.Len())
	}

	if c.Pin("missing") {
		t.Error("Pin(missing) = true, want false")
	}
}

func TestCacheDeleteClear(t *testing.T) {
	c := New[string, int](10)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	if _, fr := c.Get("a"); fr != Miss {
		t.Error("deleted entry still present")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
}

func TestCacheStats(t *testing.T) {
	c := New[string, int](10)
	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Sets != 1 {
		t.Errorf("Stats = %+v, want 2 hits, 1 miss, 1 set", s)
	}
	if want := 2.0 / 3.0; s.HitRate != want {
		t.Errorf("HitRate = %f, want %f", s.HitRate, want)
	}
}

func TestCacheZeroCapacity(t *testing.T) {
	c := New[string, int](0)
	if c.capacity != 100 {
		t.Errorf("capacity = %d, want default 100", c.capacity)
	}
}

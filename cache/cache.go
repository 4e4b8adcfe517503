// Package cache provides the two-tier documentation cache: a generic
// in-memory LRU with per-entry deadlines backed by an on-disk store,
// coordinated by a Manager that deduplicates concurrent fetches.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// Freshness classifies the result of a cache lookup. Expired entries
// are not dropped on read: they are returned marked Stale so callers
// can serve them while a refresh runs.
type Freshness int

const (
	Miss Freshness = iota
	Fresh
	Stale
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "miss"
	}
}

// Cache is a generic thread-safe LRU cache with per-entry deadlines
// and built-in metrics.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	items    map[K]*entry[K, V]
	order    *list.List
	capacity int
	now      func() time.Time

	// Metrics (lock-free using atomics)
	hits   atomic.Uint64
	misses atomic.Uint64
	evicts atomic.Uint64
	sets   atomic.Uint64
}

// entry holds a cached value and its position in the LRU list.
type entry[K comparable, V any] struct {
	key      K
	value    V
	deadline time.Time // zero means no expiry
	pinned   bool
	element  *list.Element
}

// New creates a Cache with the specified capacity. When the cache is
// full, the least recently used unpinned item is evicted.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity <= 0 {
		capacity = 100
	}
	return &Cache[K, V]{
		items:    make(map[K]*entry[K, V], capacity),
		order:    list.New(),
		capacity: capacity,
		now:      time.Now,
	}
}

// Get retrieves a value from the cache. An entry past its deadline is
// still returned, marked Stale. Accessing an item moves it to the
// front of the LRU list.
func (c *Cache[K, V]) Get(key K) (V, Freshness) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, Miss
	}

	c.hits.Add(1)
	c.order.MoveToFront(e.element)

	if !e.deadline.IsZero() && !c.now().Before(e.deadline) {
		return e.value, Stale
	}
	return e.value, Fresh
}

// Set adds or updates a value with no expiry.
func (c *Cache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, 0)
}

// SetWithTTL adds or updates a value that expires after ttl. A zero or
// negative ttl means the entry never expires. Updating an existing key
// keeps its pinned state.
func (c *Cache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	c.sets.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()

	var deadline time.Time
	if ttl > 0 {
		deadline = c.now().Add(ttl)
	}

	if e, ok := c.items[key]; ok {
		e.value = value
		e.deadline = deadline
		c.order.MoveToFront(e.element)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictOldest()
	}

	element := c.order.PushFront(key)
	c.items[key] = &entry[K, V]{
		key:      key,
		value:    value,
		deadline: deadline,
		element:  element,
	}
}

// Pin marks an entry as ineligible for eviction. It reports whether
// the key was present.
func (c *Cache[K, V]) Pin(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if ok {
		e.pinned = true
	}
	return ok
}

// Unpin makes an entry eligible for eviction again.
func (c *Cache[K, V]) Unpin(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		e.pinned = false
	}
}

// evictOldest removes the least recently used unpinned item. When
// every entry is pinned the cache is allowed to exceed capacity.
// Must be called with mu held.
func (c *Cache[K, V]) evictOldest() {
	for el := c.order.Back(); el != nil; el = el.Prev() {
		key := el.Value.(K)
		if c.items[key].pinned {
			continue
		}
		delete(c.items, key)
		c.order.Remove(el)
		c.evicts.Add(1)
		return
	}
}

// Delete removes an item from the cache, pinned or not.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		delete(c.items, key)
		c.order.Remove(e.element)
	}
}

// Len returns the current number of items in the cache.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear removes all items from the cache.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*entry[K, V], c.capacity)
	c.order.Init()
}

// Stats holds cache statistics.
type Stats struct {
	Size     int
	Capacity int
	Hits     uint64
	Misses   uint64
	Evicts   uint64
	Sets     uint64
	HitRate  float64
}

// Stats returns cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	size := len(c.items)
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Size:     size,
		Capacity: c.capacity,
		Hits:     hits,
		Misses:   misses,
		Evicts:   c.evicts.Load(),
		Sets:     c.sets.Load(),
		HitRate:  hitRate,
	}
}

// Keys returns all keys in the cache (in no particular order).
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	return keys
}

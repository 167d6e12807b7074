package memory

import (
	"sync"
	"time"
)

// TTLCache is a process-wide cache with per-entry expiry. Entries are
// modeled explicitly as a value plus its expiry instant; an expired entry is
// never served, it is recomputed. Reads and writes for different keys are
// independent; concurrent writers to the same key race and the last write
// wins, which is acceptable for entries idempotently derivable from the same
// underlying data.
type TTLCache[V any] struct {
	mu      sync.Mutex
	entries map[string]cacheEntry[V]
	now     func() time.Time
}

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewTTLCache creates an empty cache.
func NewTTLCache[V any]() *TTLCache[V] {
	return &TTLCache[V]{
		entries: make(map[string]cacheEntry[V]),
		now:     time.Now,
	}
}

// Get returns the cached value if present and not expired.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.now().After(e.expiresAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores a value with the given TTL, overwriting any previous entry.
func (c *TTLCache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[V]{value: value, expiresAt: c.now().Add(ttl)}
}

// GetOrCompute returns the fresh cached value for key, or runs produce and
// caches its result. The producer runs outside the cache lock, so two
// concurrent misses on the same key may both compute; the later write wins.
// A producer error is returned without caching anything.
func (c *TTLCache[V]) GetOrCompute(key string, ttl time.Duration, produce func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := produce()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, v, ttl)
	return v, nil
}

// Len reports the number of entries, expired or not.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

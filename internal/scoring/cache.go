package scoring

import (
	"sync"
	"time"
)

// ttlCache is a small expiring cache keyed by article identity.
type ttlCache[T any] struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry[T]
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry[T any] struct {
	value    T
	storedAt time.Time
}

func newTTLCache[T any](ttl time.Duration) *ttlCache[T] {
	return &ttlCache[T]{
		entries: make(map[string]cacheEntry[T]),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *ttlCache[T]) get(key string) (T, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	var zero T
	if !ok {
		return zero, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return zero, false
	}
	return entry.value, true
}

func (c *ttlCache[T]) set(key string, value T) {
	c.mu.Lock()
	c.entries[key] = cacheEntry[T]{value: value, storedAt: c.now()}
	c.mu.Unlock()
}

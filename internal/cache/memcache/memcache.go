// Package memcache provides an in-memory implementation of cache.Cache.
// Suitable for dev/testing and cache-less deployments.
package memcache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     int64
	expiresAt time.Time
}

// Cache holds counters and flags in memory with real TTL semantics.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// New initializes a new in-memory Cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// NewWithClock initializes a Cache with an injected time source so tests
// can step through TTL expiry deterministically.
func NewWithClock(now func() time.Time) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     now,
	}
}

// Incr increments key (creating it at 1 if absent or expired) and resets
// its expiry to ttl from now.
func (c *Cache) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.entries[key]
	if !ok || now.After(e.expiresAt) {
		e = entry{}
	}
	e.value++
	e.expiresAt = now.Add(ttl)
	c.entries[key] = e
	return e.value, nil
}

// Exists reports whether key is present and unexpired.
func (c *Cache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return false, nil
	}
	return true, nil
}

// SetFlag writes a presence marker at key expiring after ttl.
func (c *Cache) SetFlag(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{value: 1, expiresAt: c.now().Add(ttl)}
	return nil
}

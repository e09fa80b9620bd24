// Package cache defines the shared low-durability cache the storm
// subsystem runs on. Contents may vanish at any time; losing them only
// degrades suppression, never correctness.
package cache

import (
	"context"
	"time"
)

// Cache is the minimal surface the storm counter and suppression gate
// need. Incr must be atomic at the cache level.
type Cache interface {
	// Incr increments the integer at key (creating it at 1) and resets
	// its expiry to ttl. The new value is returned.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Exists reports whether key is present, with no side effect.
	Exists(ctx context.Context, key string) (bool, error)

	// SetFlag writes a presence marker at key that expires after ttl.
	// Re-setting an existing flag restarts the TTL.
	SetFlag(ctx context.Context, key string, ttl time.Duration) error
}

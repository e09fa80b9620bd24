// Package rediscache provides the Redis-backed implementation of
// cache.Cache used in production deployments.
package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linnemanlabs/rampart/internal/socerr"
)

// callTimeout bounds every cache round trip. The storm layer treats a
// slow cache the same as a down cache: proceed without storm protection.
const callTimeout = 250 * time.Millisecond

// Cache wraps a go-redis client behind the cache.Cache interface.
type Cache struct {
	rdb *redis.Client
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Cache{rdb: rdb}, nil
}

// Close shuts down the client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Incr atomically increments key and resets its expiry to ttl. INCR and
// EXPIRE are pipelined so the counter never outlives its window by more
// than one round trip.
func (c *Cache) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, socerr.Unavailable(err, "cache incr %s", key)
	}
	return incr.Val(), nil
}

// Exists reports whether key is present.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, socerr.Unavailable(err, "cache exists %s", key)
	}
	return n > 0, nil
}

// SetFlag writes a presence marker expiring after ttl.
func (c *Cache) SetFlag(ctx context.Context, key string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if err := c.rdb.Set(ctx, key, "1", ttl).Err(); err != nil {
		return socerr.Unavailable(err, "cache set %s", key)
	}
	return nil
}

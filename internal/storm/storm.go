// Package storm detects per-device alert floods and suppresses further
// ingestion while a storm is in force.
//
// The counter window refreshes on every increment, so it measures "events
// since the last Window of silence" rather than a fixed calendar bucket; a
// sustained low-rate trickle never ages out. A fixed bucket anchored at
// the first alert would give stricter rolling-window semantics and remains
// an open design choice.
package storm

import (
	"context"
	"time"

	"github.com/linnemanlabs/rampart/internal/cache"
)

const (
	// Threshold is the count a device must exceed before a storm is
	// declared; the 11th alert inside the window is the one that crosses.
	Threshold = 10

	// Window is the counter TTL, refreshed on every increment.
	Window = 300 * time.Second

	// Suppression is how long ingestion is refused after a storm.
	Suppression = 900 * time.Second
)

// Cache keys are tenant-qualified so device IDs shared across tenants
// cannot interfere with each other's counters.
func counterKey(tenantID, deviceID string) string {
	return "alert:storm:" + tenantID + ":" + deviceID
}

func suppressionKey(tenantID, deviceID string) string {
	return "alert:suppress:" + tenantID + ":" + deviceID
}

// Counter is the per-device rate counter behind storm detection.
type Counter struct {
	cache cache.Cache
}

// NewCounter creates a Counter on the given cache.
func NewCounter(c cache.Cache) *Counter {
	return &Counter{cache: c}
}

// Incr bumps the device's counter and restarts its window. Cache errors
// propagate; the caller decides whether to fail open.
func (c *Counter) Incr(ctx context.Context, tenantID, deviceID string) (int64, error) {
	return c.cache.Incr(ctx, counterKey(tenantID, deviceID), Window)
}

// Gate is the per-device suppression flag read before ingestion.
type Gate struct {
	cache cache.Cache
}

// NewGate creates a Gate on the given cache.
func NewGate(c cache.Cache) *Gate {
	return &Gate{cache: c}
}

// IsActive reports whether the device is currently suppressed. Pure read.
func (g *Gate) IsActive(ctx context.Context, tenantID, deviceID string) (bool, error) {
	return g.cache.Exists(ctx, suppressionKey(tenantID, deviceID))
}

// Activate suppresses the device for the standard Suppression duration.
// Re-activating simply restarts the TTL; expiry is the only removal path.
func (g *Gate) Activate(ctx context.Context, tenantID, deviceID string) error {
	return g.cache.SetFlag(ctx, suppressionKey(tenantID, deviceID), Suppression)
}

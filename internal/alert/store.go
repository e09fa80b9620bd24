package alert

import (
	"context"
	"time"
)

// DuplicateWindow is how far back the ingestion pipeline looks when
// deciding a new alert repeats a recent one.
const DuplicateWindow = 60 * time.Second

// Expect names the state a conditional update requires at write time.
// An empty OwnerID means ownership is not part of the condition.
type Expect struct {
	Status  Status
	OwnerID string
}

// Patch carries the fields a conditional update sets. Nil pointers leave
// the column untouched.
type Patch struct {
	Status          Status
	OwnerID         *string
	AssignedAt      *time.Time
	ResolutionNotes *string
}

// Store is the persistence interface for alerts. The durable store is the
// system of record: errors from it are fatal to the calling operation.
type Store interface {
	Persist(ctx context.Context, a *Alert) error
	Get(ctx context.Context, tenantID, id string) (*Alert, bool, error)

	// ConditionalUpdate applies patch only if the stored row still matches
	// expect. It reports whether a row was updated; false means a
	// concurrent caller won or the expectation never held.
	ConditionalUpdate(ctx context.Context, tenantID, id string, expect Expect, patch Patch) (bool, error)
}

// DuplicateChecker decides whether an equivalent alert was already stored
// within DuplicateWindow.
type DuplicateChecker interface {
	ExistsRecentDuplicate(ctx context.Context, tenantID, deviceID, alertType string, window time.Duration) (bool, error)
}

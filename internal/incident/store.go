package incident

import (
	"context"
	"time"
)

// Expect names the state a conditional update requires at write time.
type Expect struct {
	Status Status
}

// Patch carries the fields a conditional update sets. Nil pointers leave
// the column untouched.
type Patch struct {
	Status                 Status
	AcknowledgedAt         *time.Time
	InvestigationStartedAt *time.Time
	ResolvedAt             *time.Time
	ResolutionSummary      *string
}

// Store is the persistence interface for incidents. Same contract as the
// alert store: the durable store is the system of record, so its errors
// are fatal to the calling operation.
type Store interface {
	Persist(ctx context.Context, inc *Incident) error
	Get(ctx context.Context, tenantID, id string) (*Incident, bool, error)

	// GetByAlert finds the incident linked to an escalated alert.
	GetByAlert(ctx context.Context, tenantID, alertID string) (*Incident, bool, error)

	// ConditionalUpdate applies patch only if the stored row still matches
	// expect. Reports whether a row was updated.
	ConditionalUpdate(ctx context.Context, tenantID, id string, expect Expect, patch Patch) (bool, error)
}

// Package memstore provides an in-memory implementation of alert.Store
// and alert.DuplicateChecker. Suitable for dev/testing.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/linnemanlabs/rampart/internal/alert"
)

// Store holds alerts in memory. Conditional updates hold the lock for the
// whole compare-and-set, giving the same exactly-one-winner guarantee as
// the SQL implementation.
type Store struct {
	mu     sync.RWMutex
	alerts map[string]*alert.Alert // alert ID -> alert
	now    func() time.Time
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		alerts: make(map[string]*alert.Alert),
		now:    time.Now,
	}
}

// Persist stores a copy of the alert.
func (s *Store) Persist(_ context.Context, a *alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.alerts[a.ID] = &cp
	return nil
}

// Get retrieves a tenant's alert by ID. Returns a copy. An alert owned by
// a different tenant reads as absent.
func (s *Store) Get(_ context.Context, tenantID, id string) (*alert.Alert, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok || a.TenantID != tenantID {
		return nil, false, nil
	}
	cp := *a
	return &cp, true, nil
}

// ConditionalUpdate applies patch iff the stored alert still matches
// expect. Reports whether a row was updated.
func (s *Store) ConditionalUpdate(_ context.Context, tenantID, id string, expect alert.Expect, patch alert.Patch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok || a.TenantID != tenantID {
		return false, nil
	}
	if a.Status != expect.Status {
		return false, nil
	}
	if expect.OwnerID != "" && a.OwnerID != expect.OwnerID {
		return false, nil
	}

	a.Status = patch.Status
	if patch.OwnerID != nil {
		a.OwnerID = *patch.OwnerID
	}
	if patch.AssignedAt != nil {
		t := *patch.AssignedAt
		a.AssignedAt = &t
	}
	if patch.ResolutionNotes != nil {
		a.ResolutionNotes = *patch.ResolutionNotes
	}
	return true, nil
}

// ExistsRecentDuplicate reports whether an alert with the same tenant,
// device, and type was stored within the window.
func (s *Store) ExistsRecentDuplicate(_ context.Context, tenantID, deviceID, alertType string, window time.Duration) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-window)
	for _, a := range s.alerts {
		if a.TenantID == tenantID && a.DeviceID == deviceID && a.AlertType == alertType && a.CreatedAt.After(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

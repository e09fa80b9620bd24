// Package memstore provides an in-memory implementation of incident.Store.
// Suitable for dev/testing.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/rampart/internal/incident"
)

// Store holds incidents in memory. Conditional updates hold the lock for
// the whole compare-and-set.
type Store struct {
	mu        sync.RWMutex
	incidents map[string]*incident.Incident // incident ID -> incident
	byAlert   map[string]string             // tenant + alert ID -> incident ID
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		incidents: make(map[string]*incident.Incident),
		byAlert:   make(map[string]string),
	}
}

// Persist stores a copy of the incident.
func (s *Store) Persist(_ context.Context, inc *incident.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *inc
	s.incidents[inc.ID] = &cp
	s.byAlert[alertKey(inc.TenantID, inc.LinkedAlertID)] = inc.ID
	return nil
}

// Get retrieves a tenant's incident by ID. Returns a copy.
func (s *Store) Get(_ context.Context, tenantID, id string) (*incident.Incident, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc, ok := s.incidents[id]
	if !ok || inc.TenantID != tenantID {
		return nil, false, nil
	}
	cp := *inc
	return &cp, true, nil
}

// GetByAlert finds the incident linked to an escalated alert. Returns a copy.
func (s *Store) GetByAlert(_ context.Context, tenantID, alertID string) (*incident.Incident, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byAlert[alertKey(tenantID, alertID)]
	if !ok {
		return nil, false, nil
	}
	cp := *s.incidents[id]
	return &cp, true, nil
}

// ConditionalUpdate applies patch iff the stored incident still matches
// expect. Reports whether a row was updated.
func (s *Store) ConditionalUpdate(_ context.Context, tenantID, id string, expect incident.Expect, patch incident.Patch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.incidents[id]
	if !ok || inc.TenantID != tenantID {
		return false, nil
	}
	if inc.Status != expect.Status {
		return false, nil
	}

	inc.Status = patch.Status
	if patch.AcknowledgedAt != nil {
		t := *patch.AcknowledgedAt
		inc.AcknowledgedAt = &t
	}
	if patch.InvestigationStartedAt != nil {
		t := *patch.InvestigationStartedAt
		inc.InvestigationStartedAt = &t
	}
	if patch.ResolvedAt != nil {
		t := *patch.ResolvedAt
		inc.ResolvedAt = &t
	}
	if patch.ResolutionSummary != nil {
		inc.ResolutionSummary = *patch.ResolutionSummary
	}
	return true, nil
}

func alertKey(tenantID, alertID string) string {
	return tenantID + "/" + alertID
}

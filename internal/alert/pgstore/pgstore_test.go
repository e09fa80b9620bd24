package pgstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/rampart/internal/alert"
	"github.com/linnemanlabs/rampart/internal/alert/pgstore"
	"github.com/linnemanlabs/rampart/internal/postgres"
)

func openStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("RAMPART_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("RAMPART_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("postgres.NewPool: %v", err)
	}
	t.Cleanup(pool.Close)
	s, err := pgstore.New(ctx, pool)
	if err != nil {
		t.Fatalf("pgstore.New: %v", err)
	}
	return s
}

func newAlert(tenantID string) *alert.Alert {
	now := time.Now().Truncate(time.Microsecond).UTC()
	return &alert.Alert{
		ID:           ulid.Make().String(),
		TenantID:     tenantID,
		DeviceID:     "dev-pg-1",
		SourceSystem: "edr",
		AlertType:    "malware_detected",
		Severity:     alert.SeverityHigh,
		Message:      "suspicious binary executed",
		Status:       alert.StatusOpen,
		Metadata:     map[string]any{"hash": "abc123"},
		CreatedAt:    now,
		DetectedAt:   now,
	}
}

func TestPersistAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	a := newAlert("t-pg")
	if err := s.Persist(ctx, a); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	got, ok, err := s.Get(ctx, "t-pg", a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get returned ok=false, want true")
	}

	if got.TenantID != a.TenantID || got.DeviceID != a.DeviceID || got.AlertType != a.AlertType {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
	if got.Status != alert.StatusOpen {
		t.Errorf("Status = %q, want open", got.Status)
	}
	if got.Metadata["hash"] != "abc123" {
		t.Errorf("Metadata = %v", got.Metadata)
	}
}

func TestGet_WrongTenant(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	a := newAlert("t-pg-a")
	if err := s.Persist(ctx, a); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	_, ok, err := s.Get(ctx, "t-pg-b", a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("cross-tenant Get returned the row")
	}
}

func TestConditionalUpdate_WinnerAndLoser(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	a := newAlert("t-pg")
	if err := s.Persist(ctx, a); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	owner := "analyst-1"
	now := time.Now().UTC()
	ok, err := s.ConditionalUpdate(ctx, "t-pg", a.ID,
		alert.Expect{Status: alert.StatusOpen},
		alert.Patch{Status: alert.StatusAssigned, OwnerID: &owner, AssignedAt: &now},
	)
	if err != nil {
		t.Fatalf("ConditionalUpdate: %v", err)
	}
	if !ok {
		t.Fatal("first update should win")
	}

	// Same expectation again loses: the row is no longer open.
	other := "analyst-2"
	ok, err = s.ConditionalUpdate(ctx, "t-pg", a.ID,
		alert.Expect{Status: alert.StatusOpen},
		alert.Patch{Status: alert.StatusAssigned, OwnerID: &other, AssignedAt: &now},
	)
	if err != nil {
		t.Fatalf("ConditionalUpdate: %v", err)
	}
	if ok {
		t.Fatal("second update should lose")
	}

	got, _, _ := s.Get(ctx, "t-pg", a.ID)
	if got.OwnerID != owner {
		t.Errorf("OwnerID = %q, want %q", got.OwnerID, owner)
	}
}

func TestConditionalUpdate_OwnerGuard(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	a := newAlert("t-pg")
	_ = s.Persist(ctx, a)
	owner := "analyst-1"
	now := time.Now().UTC()
	_, _ = s.ConditionalUpdate(ctx, "t-pg", a.ID,
		alert.Expect{Status: alert.StatusOpen},
		alert.Patch{Status: alert.StatusAssigned, OwnerID: &owner, AssignedAt: &now},
	)

	ok, err := s.ConditionalUpdate(ctx, "t-pg", a.ID,
		alert.Expect{Status: alert.StatusAssigned, OwnerID: "analyst-9"},
		alert.Patch{Status: alert.StatusEscalated},
	)
	if err != nil {
		t.Fatalf("ConditionalUpdate: %v", err)
	}
	if ok {
		t.Fatal("update applied with wrong owner guard")
	}
}

func TestExistsRecentDuplicate(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	a := newAlert("t-pg-dup")
	if err := s.Persist(ctx, a); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	dup, err := s.ExistsRecentDuplicate(ctx, "t-pg-dup", a.DeviceID, a.AlertType, time.Minute)
	if err != nil {
		t.Fatalf("ExistsRecentDuplicate: %v", err)
	}
	if !dup {
		t.Error("expected duplicate within window")
	}

	dup, err = s.ExistsRecentDuplicate(ctx, "t-pg-dup", a.DeviceID, "other_type", time.Minute)
	if err != nil {
		t.Fatalf("ExistsRecentDuplicate: %v", err)
	}
	if dup {
		t.Error("different type reported as duplicate")
	}
}

package alert_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/rampart/internal/alert"
	"github.com/linnemanlabs/rampart/internal/alert/memstore"
	"github.com/linnemanlabs/rampart/internal/socerr"
)

type mockSuppression struct {
	active bool
	err    error
	calls  int
}

func (m *mockSuppression) IsActive(_ context.Context, _, _ string) (bool, error) {
	m.calls++
	return m.active, m.err
}

type mockOpener struct {
	incidentID string
	err        error
	calls      int
}

func (m *mockOpener) OpenForAlert(_ context.Context, _ *alert.Alert, _ string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.incidentID, nil
}

type mockPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (m *mockPublisher) Publish(subject string, _ any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, subject)
	return nil
}

type failingDedup struct{}

func (failingDedup) ExistsRecentDuplicate(context.Context, string, string, string, time.Duration) (bool, error) {
	return false, errors.New("store down")
}

func validInput() alert.CreateInput {
	return alert.CreateInput{
		TenantID:     "t-1",
		DeviceID:     "dev-1",
		SourceSystem: "edr",
		AlertType:    "malware_detected",
		Severity:     alert.SeverityHigh,
		Message:      "suspicious binary executed",
	}
}

func TestCreate_PersistsOpenAlert(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	events := &mockPublisher{}
	svc := alert.NewService(store, store, nil, nil, nil, events, nil, nil)

	res, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.Skipped || res.ID == "" {
		t.Fatalf("result = %+v, want persisted ID", res)
	}

	a, err := svc.Get(context.Background(), "t-1", res.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a.Status != alert.StatusOpen {
		t.Errorf("Status = %q, want open", a.Status)
	}
	if a.CreatedAt.IsZero() || a.DetectedAt.IsZero() {
		t.Error("timestamps not stamped")
	}
	if len(events.subjects) != 1 || events.subjects[0] != "rampart.alert.created" {
		t.Errorf("events = %v", events.subjects)
	}
}

func TestCreate_Validation(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	svc := alert.NewService(store, store, nil, nil, nil, nil, nil, nil)

	tests := []struct {
		name   string
		mutate func(*alert.CreateInput)
	}{
		{"missing tenant", func(in *alert.CreateInput) { in.TenantID = "" }},
		{"missing alert type", func(in *alert.CreateInput) { in.AlertType = "  " }},
		{"missing source system", func(in *alert.CreateInput) { in.SourceSystem = "" }},
		{"missing message", func(in *alert.CreateInput) { in.Message = "" }},
		{"bad severity", func(in *alert.CreateInput) { in.Severity = "urgent" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := validInput()
			tt.mutate(&in)
			if _, err := svc.Create(context.Background(), in); !socerr.IsValidation(err) {
				t.Errorf("err = %v, want validation", err)
			}
		})
	}
}

func TestCreate_SuppressedDeviceSkipsIngestion(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	sup := &mockSuppression{active: true}
	stormCalls := 0
	svc := alert.NewService(store, store, sup,
		alert.StormEvaluatorFunc(func(context.Context, string, string) { stormCalls++ }),
		nil, nil, nil, nil)

	res, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !res.Skipped || res.Reason != "suppressed" {
		t.Fatalf("result = %+v, want skipped/suppressed", res)
	}
	if res.ID != "" {
		t.Error("suppressed ingestion should not persist an alert")
	}
	if stormCalls != 0 {
		t.Error("storm evaluation ran for a suppressed alert")
	}
}

func TestCreate_SuppressionCheckFailureFailsOpen(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	sup := &mockSuppression{err: errors.New("cache down")}
	svc := alert.NewService(store, store, sup, nil, nil, nil, nil, nil)

	res, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create with cache down: %v", err)
	}
	if res.Skipped || res.ID == "" {
		t.Fatalf("result = %+v, want normal ingestion", res)
	}
}

func TestCreate_DeviceLessAlertSkipsSuppressionAndStorm(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	sup := &mockSuppression{active: true}
	stormCalls := 0
	svc := alert.NewService(store, store, sup,
		alert.StormEvaluatorFunc(func(context.Context, string, string) { stormCalls++ }),
		nil, nil, nil, nil)

	in := validInput()
	in.DeviceID = ""
	res, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.Skipped {
		t.Fatalf("device-less alert skipped: %+v", res)
	}
	if sup.calls != 0 || stormCalls != 0 {
		t.Errorf("suppression calls = %d, storm calls = %d, want 0/0", sup.calls, stormCalls)
	}
}

func TestCreate_DuplicateWithinWindow(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	svc := alert.NewService(store, store, nil, nil, nil, nil, nil, nil)

	first, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if first.Skipped {
		t.Fatalf("first result = %+v", first)
	}

	second, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if !second.Skipped || second.Reason != "duplicate" {
		t.Errorf("second result = %+v, want skipped/duplicate", second)
	}
}

func TestCreate_DedupFailureFailsClosed(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	svc := alert.NewService(store, failingDedup{}, nil, nil, nil, nil, nil, nil)

	if _, err := svc.Create(context.Background(), validInput()); !socerr.IsUnavailable(err) {
		t.Errorf("err = %v, want dependency_unavailable", err)
	}
}

func TestClaim(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	svc := alert.NewService(store, store, nil, nil, nil, nil, nil, nil)
	res, _ := svc.Create(context.Background(), validInput())

	a, err := svc.Claim(context.Background(), "t-1", res.ID, "analyst-1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if a.Status != alert.StatusAssigned || a.OwnerID != "analyst-1" || a.AssignedAt == nil {
		t.Errorf("claimed alert = %+v", a)
	}

	// Second claim hits an assigned alert.
	if _, err := svc.Claim(context.Background(), "t-1", res.ID, "analyst-2"); !socerr.IsConflict(err) {
		t.Errorf("second claim err = %v, want conflict", err)
	}

	if _, err := svc.Claim(context.Background(), "t-1", res.ID, " "); !socerr.IsValidation(err) {
		t.Errorf("blank analyst err = %v, want validation", err)
	}
	if _, err := svc.Claim(context.Background(), "t-1", "missing", "analyst-1"); !socerr.IsNotFound(err) {
		t.Errorf("missing alert err = %v, want not_found", err)
	}
}

func TestClaim_ConcurrentExactlyOneWinner(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	svc := alert.NewService(store, store, nil, nil, nil, nil, nil, nil)
	res, _ := svc.Create(context.Background(), validInput())

	const analysts = 25
	var wg sync.WaitGroup
	wins := make(chan string, analysts)
	for i := 0; i < analysts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := "analyst-" + string(rune('a'+n))
			if _, err := svc.Claim(context.Background(), "t-1", res.ID, id); err == nil {
				wins <- id
			} else if !socerr.IsConflict(err) {
				t.Errorf("loser got %v, want conflict", err)
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var winners []string
	for id := range wins {
		winners = append(winners, id)
	}
	if len(winners) != 1 {
		t.Fatalf("winners = %v, want exactly one", winners)
	}

	a, _ := svc.Get(context.Background(), "t-1", res.ID)
	if a.OwnerID != winners[0] {
		t.Errorf("OwnerID = %q, want winner %q", a.OwnerID, winners[0])
	}
}

func TestEscalate(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	opener := &mockOpener{incidentID: "i-1"}
	events := &mockPublisher{}
	svc := alert.NewService(store, store, nil, nil, opener, events, nil, nil)
	res, _ := svc.Create(context.Background(), validInput())
	_, _ = svc.Claim(context.Background(), "t-1", res.ID, "analyst-1")

	a, incidentID, err := svc.Escalate(context.Background(), "t-1", res.ID, "analyst-1")
	if err != nil {
		t.Fatalf("Escalate: %v", err)
	}
	if a.Status != alert.StatusEscalated || incidentID != "i-1" {
		t.Errorf("escalate = %+v, %q", a, incidentID)
	}
	if opener.calls != 1 {
		t.Errorf("opener calls = %d, want 1", opener.calls)
	}

	found := false
	for _, s := range events.subjects {
		if s == "rampart.incident.escalated" {
			found = true
		}
	}
	if !found {
		t.Errorf("events = %v, want rampart.incident.escalated", events.subjects)
	}

	// Retry is a conflict, not a second incident.
	if _, _, err := svc.Escalate(context.Background(), "t-1", res.ID, "analyst-1"); !socerr.IsConflict(err) {
		t.Errorf("retry err = %v, want conflict", err)
	}
	if opener.calls != 1 {
		t.Errorf("opener calls after retry = %d, want 1", opener.calls)
	}
}

func TestEscalate_NonOwnerRejected(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	svc := alert.NewService(store, store, nil, nil, &mockOpener{incidentID: "i-1"}, nil, nil, nil)
	res, _ := svc.Create(context.Background(), validInput())
	_, _ = svc.Claim(context.Background(), "t-1", res.ID, "analyst-1")

	if _, _, err := svc.Escalate(context.Background(), "t-1", res.ID, "analyst-2"); !socerr.IsConflict(err) {
		t.Errorf("non-owner escalate err = %v, want conflict", err)
	}
}

func TestEscalate_OpenerFailureRollsBack(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	opener := &mockOpener{err: errors.New("incident store down")}
	svc := alert.NewService(store, store, nil, nil, opener, nil, nil, nil)
	res, _ := svc.Create(context.Background(), validInput())
	_, _ = svc.Claim(context.Background(), "t-1", res.ID, "analyst-1")

	if _, _, err := svc.Escalate(context.Background(), "t-1", res.ID, "analyst-1"); err == nil {
		t.Fatal("expected escalation to fail")
	}

	// The alert is back to assigned, so a retry can succeed.
	a, _ := svc.Get(context.Background(), "t-1", res.ID)
	if a.Status != alert.StatusAssigned {
		t.Fatalf("Status after rollback = %q, want assigned", a.Status)
	}

	opener.err = nil
	opener.incidentID = "i-2"
	_, incidentID, err := svc.Escalate(context.Background(), "t-1", res.ID, "analyst-1")
	if err != nil {
		t.Fatalf("retry Escalate: %v", err)
	}
	if incidentID != "i-2" {
		t.Errorf("incidentID = %q, want i-2", incidentID)
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	svc := alert.NewService(store, store, nil, nil, nil, nil, nil, nil)
	res, _ := svc.Create(context.Background(), validInput())
	_, _ = svc.Claim(context.Background(), "t-1", res.ID, "analyst-1")

	if _, err := svc.Resolve(context.Background(), "t-1", res.ID, "analyst-1", "noise", "x"); !socerr.IsValidation(err) {
		t.Errorf("bad outcome err = %v, want validation", err)
	}
	if _, err := svc.Resolve(context.Background(), "t-1", res.ID, "analyst-1", alert.OutcomeBenign, "  "); !socerr.IsValidation(err) {
		t.Errorf("blank notes err = %v, want validation", err)
	}
	if _, err := svc.Resolve(context.Background(), "t-1", res.ID, "analyst-2", alert.OutcomeBenign, "notes"); !socerr.IsConflict(err) {
		t.Errorf("non-owner err = %v, want conflict", err)
	}

	a, err := svc.Resolve(context.Background(), "t-1", res.ID, "analyst-1", alert.OutcomeFalsePositive, "test range traffic")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if a.Status != alert.StatusClosedFalsePositive || a.ResolutionNotes != "test range traffic" {
		t.Errorf("resolved alert = %+v", a)
	}
	if !a.Status.Terminal() {
		t.Error("closed status should be terminal")
	}

	// No transitions out of a terminal state.
	if _, err := svc.Resolve(context.Background(), "t-1", res.ID, "analyst-1", alert.OutcomeBenign, "again"); !socerr.IsConflict(err) {
		t.Errorf("resolve after close err = %v, want conflict", err)
	}
	if _, err := svc.Claim(context.Background(), "t-1", res.ID, "analyst-3"); !socerr.IsConflict(err) {
		t.Errorf("claim after close err = %v, want conflict", err)
	}
}

func TestGet_WrongTenantIsNotFound(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	svc := alert.NewService(store, store, nil, nil, nil, nil, nil, nil)
	res, _ := svc.Create(context.Background(), validInput())

	if _, err := svc.Get(context.Background(), "t-other", res.ID); !socerr.IsNotFound(err) {
		t.Errorf("cross-tenant Get err = %v, want not_found", err)
	}
}

package alert

import (
	"context"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/rampart/internal/socerr"
)

// SuppressionChecker answers whether a device is currently storm-suppressed.
type SuppressionChecker interface {
	IsActive(ctx context.Context, tenantID, deviceID string) (bool, error)
}

// StormEvaluator runs the best-effort storm evaluation after an alert is
// persisted. Implementations must never fail the ingestion call.
type StormEvaluator interface {
	OnAlertPersisted(ctx context.Context, tenantID, deviceID string)
}

// StormEvaluatorFunc adapts a plain function to StormEvaluator.
type StormEvaluatorFunc func(ctx context.Context, tenantID, deviceID string)

// OnAlertPersisted implements StormEvaluator.
func (f StormEvaluatorFunc) OnAlertPersisted(ctx context.Context, tenantID, deviceID string) {
	f(ctx, tenantID, deviceID)
}

// IncidentOpener creates the incident an escalation produces and returns
// its ID. Exactly one incident may exist per escalated alert.
type IncidentOpener interface {
	OpenForAlert(ctx context.Context, a *Alert, analystID string) (string, error)
}

// EventPublisher emits lifecycle events to the bus. Best-effort.
type EventPublisher interface {
	Publish(subject string, payload any) error
}

// CreateInput is the caller-supplied shape for a new alert.
type CreateInput struct {
	TenantID       string         `json:"-"`
	DeviceID       string         `json:"device_id,omitempty"`
	SourceSystem   string         `json:"source_system"`
	AlertType      string         `json:"alert_type"`
	Classification string         `json:"classification,omitempty"`
	Severity       Severity       `json:"severity"`
	Message        string         `json:"message"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	DetectedAt     time.Time      `json:"detected_at,omitempty"`
}

// CreateResult is the outcome of an ingestion call. Skipped results
// (suppressed, duplicate) are successful responses, not errors.
type CreateResult struct {
	ID      string `json:"id,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Service is the business boundary for alert ingestion and triage
// transitions. All operations are tenant-scoped and synchronous.
type Service struct {
	store       Store
	dedup       DuplicateChecker
	suppression SuppressionChecker
	storm       StormEvaluator
	incidents   IncidentOpener
	events      EventPublisher
	logger      log.Logger
	metrics     *Metrics
	now         func() time.Time
}

// NewService creates the alert service. suppression, storm, incidents,
// events and metrics may be nil; the corresponding behavior is disabled.
func NewService(store Store, dedup DuplicateChecker, suppression SuppressionChecker, storm StormEvaluator, incidents IncidentOpener, events EventPublisher, logger log.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:       store,
		dedup:       dedup,
		suppression: suppression,
		storm:       storm,
		incidents:   incidents,
		events:      events,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

// Create ingests one alert: suppression check, duplicate check, persist,
// then best-effort storm evaluation. The persisted alert always exists
// before storm evaluation runs; a storm verdict is a side observation of
// the call, never a veto of it.
func (s *Service) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	start := s.now()

	if err := validateCreate(in); err != nil {
		s.observeIngest("error", start)
		return nil, err
	}

	if in.DeviceID != "" && s.suppression != nil {
		active, err := s.suppression.IsActive(ctx, in.TenantID, in.DeviceID)
		if err != nil {
			// Cache down means no storm protection, not no ingestion.
			s.logger.Error(ctx, err, "suppression check failed, proceeding", "device_id", in.DeviceID)
		} else if active {
			s.logger.Debug(ctx, "alert suppressed due to storm",
				"tenant_id", in.TenantID,
				"device_id", in.DeviceID,
				"alert_type", in.AlertType,
			)
			s.observeIngest("suppressed", start)
			return &CreateResult{Skipped: true, Reason: "suppressed"}, nil
		}
	}

	dup, err := s.dedup.ExistsRecentDuplicate(ctx, in.TenantID, in.DeviceID, in.AlertType, DuplicateWindow)
	if err != nil {
		s.observeIngest("error", start)
		return nil, socerr.Unavailable(err, "duplicate check")
	}
	if dup {
		s.observeIngest("duplicate", start)
		return &CreateResult{Skipped: true, Reason: "duplicate"}, nil
	}

	a := s.buildAlert(in)
	if err := s.store.Persist(ctx, a); err != nil {
		s.observeIngest("error", start)
		return nil, socerr.Unavailable(err, "persist alert")
	}

	if in.DeviceID != "" && s.storm != nil {
		s.storm.OnAlertPersisted(ctx, a.TenantID, a.DeviceID)
	}

	s.publish("rampart.alert.created", a)
	s.observeIngest("created", start)
	return &CreateResult{ID: a.ID}, nil
}

// Get retrieves a tenant's alert by ID.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*Alert, error) {
	a, ok, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, socerr.Unavailable(err, "get alert")
	}
	if !ok {
		return nil, socerr.NotFound("alert %s", id)
	}
	return a, nil
}

// Claim assigns an open alert to an analyst. Exactly one of N concurrent
// claims succeeds; the rest get ConflictError.
func (s *Service) Claim(ctx context.Context, tenantID, alertID, analystID string) (*Alert, error) {
	if strings.TrimSpace(analystID) == "" {
		return nil, socerr.Validation("analyst id is required")
	}

	a, err := s.Get(ctx, tenantID, alertID)
	if err != nil {
		s.observeTransition("claim", err)
		return nil, err
	}
	if a.Status != StatusOpen {
		err := socerr.Conflict("alert %s is %s, not open", alertID, a.Status)
		s.observeTransition("claim", err)
		return nil, err
	}

	now := s.now()
	ok, err := s.store.ConditionalUpdate(ctx, tenantID, alertID,
		Expect{Status: StatusOpen},
		Patch{Status: StatusAssigned, OwnerID: &analystID, AssignedAt: &now},
	)
	if err != nil {
		s.observeTransition("claim", err)
		return nil, socerr.Unavailable(err, "claim alert")
	}
	if !ok {
		err := socerr.Conflict("alert %s was claimed concurrently", alertID)
		s.observeTransition("claim", err)
		return nil, err
	}

	a.Status = StatusAssigned
	a.OwnerID = analystID
	a.AssignedAt = &now
	s.observeTransition("claim", nil)
	return a, nil
}

// Escalate promotes an assigned alert into an incident. Only the owning
// analyst may escalate, and a retry of an already-escalated alert fails
// with ConflictError rather than creating a second incident.
func (s *Service) Escalate(ctx context.Context, tenantID, alertID, analystID string) (*Alert, string, error) {
	a, err := s.Get(ctx, tenantID, alertID)
	if err != nil {
		s.observeTransition("escalate", err)
		return nil, "", err
	}
	if err := requireOwnedAssigned(a, analystID); err != nil {
		s.observeTransition("escalate", err)
		return nil, "", err
	}

	// CAS first: winning the status flip is what guarantees at most one
	// incident is ever opened for this alert.
	ok, err := s.store.ConditionalUpdate(ctx, tenantID, alertID,
		Expect{Status: StatusAssigned, OwnerID: analystID},
		Patch{Status: StatusEscalated},
	)
	if err != nil {
		s.observeTransition("escalate", err)
		return nil, "", socerr.Unavailable(err, "escalate alert")
	}
	if !ok {
		err := socerr.Conflict("alert %s changed concurrently", alertID)
		s.observeTransition("escalate", err)
		return nil, "", err
	}

	a.Status = StatusEscalated
	incidentID, err := s.incidents.OpenForAlert(ctx, a, analystID)
	if err != nil {
		// Roll the alert back so a retry can escalate again; an escalated
		// alert without an incident would be stuck forever.
		if undone, uerr := s.store.ConditionalUpdate(ctx, tenantID, alertID,
			Expect{Status: StatusEscalated, OwnerID: analystID},
			Patch{Status: StatusAssigned},
		); uerr != nil || !undone {
			s.logger.Error(ctx, uerr, "escalation rollback failed", "alert_id", alertID)
		}
		s.observeTransition("escalate", err)
		return nil, "", err
	}

	s.publish("rampart.incident.escalated", map[string]any{
		"tenant_id":   tenantID,
		"alert_id":    alertID,
		"incident_id": incidentID,
	})
	s.observeTransition("escalate", nil)
	return a, incidentID, nil
}

// Resolve closes an assigned alert as benign or false positive. Only the
// owning analyst may resolve, and notes are mandatory.
func (s *Service) Resolve(ctx context.Context, tenantID, alertID, analystID string, outcome Outcome, notes string) (*Alert, error) {
	var target Status
	switch outcome {
	case OutcomeBenign:
		target = StatusClosedBenign
	case OutcomeFalsePositive:
		target = StatusClosedFalsePositive
	default:
		err := socerr.Validation("invalid outcome %q", outcome)
		s.observeTransition("resolve", err)
		return nil, err
	}
	if strings.TrimSpace(notes) == "" {
		err := socerr.Validation("resolution notes are required")
		s.observeTransition("resolve", err)
		return nil, err
	}

	a, err := s.Get(ctx, tenantID, alertID)
	if err != nil {
		s.observeTransition("resolve", err)
		return nil, err
	}
	if err := requireOwnedAssigned(a, analystID); err != nil {
		s.observeTransition("resolve", err)
		return nil, err
	}

	ok, err := s.store.ConditionalUpdate(ctx, tenantID, alertID,
		Expect{Status: StatusAssigned, OwnerID: analystID},
		Patch{Status: target, ResolutionNotes: &notes},
	)
	if err != nil {
		s.observeTransition("resolve", err)
		return nil, socerr.Unavailable(err, "resolve alert")
	}
	if !ok {
		err := socerr.Conflict("alert %s changed concurrently", alertID)
		s.observeTransition("resolve", err)
		return nil, err
	}

	a.Status = target
	a.ResolutionNotes = notes
	s.observeTransition("resolve", nil)
	return a, nil
}

func (s *Service) buildAlert(in CreateInput) *Alert {
	now := s.now()
	detectedAt := in.DetectedAt
	if detectedAt.IsZero() {
		detectedAt = now
	}
	return &Alert{
		ID:             ulid.Make().String(),
		TenantID:       in.TenantID,
		DeviceID:       in.DeviceID,
		SourceSystem:   in.SourceSystem,
		AlertType:      in.AlertType,
		Classification: in.Classification,
		Severity:       in.Severity,
		Message:        in.Message,
		Status:         StatusOpen,
		Metadata:       in.Metadata,
		CreatedAt:      now,
		DetectedAt:     detectedAt,
	}
}

func (s *Service) publish(subject string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(subject, payload); err != nil {
		s.logger.Error(context.Background(), err, "event publish failed", "subject", subject)
	}
}

func (s *Service) observeIngest(result string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.IngestedTotal.WithLabelValues(result).Inc()
	s.metrics.IngestDuration.Observe(s.now().Sub(start).Seconds())
}

func (s *Service) observeTransition(op string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(socerr.CodeOf(err))
	}
	s.metrics.TransitionsTotal.WithLabelValues(op, outcome).Inc()
}

func validateCreate(in CreateInput) error {
	switch {
	case strings.TrimSpace(in.TenantID) == "":
		return socerr.Validation("tenant id is required")
	case strings.TrimSpace(in.AlertType) == "":
		return socerr.Validation("alert type is required")
	case strings.TrimSpace(in.SourceSystem) == "":
		return socerr.Validation("source system is required")
	case strings.TrimSpace(in.Message) == "":
		return socerr.Validation("message is required")
	case !ValidSeverity(in.Severity):
		return socerr.Validation("invalid severity %q", in.Severity)
	}
	return nil
}

func requireOwnedAssigned(a *Alert, analystID string) error {
	if strings.TrimSpace(analystID) == "" {
		return socerr.Validation("analyst id is required")
	}
	if a.Status != StatusAssigned {
		return socerr.Conflict("alert %s is %s, not assigned", a.ID, a.Status)
	}
	if a.OwnerID != analystID {
		return socerr.Conflict("alert %s is owned by another analyst", a.ID)
	}
	return nil
}

package incident

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/rampart/internal/alert"
	"github.com/linnemanlabs/rampart/internal/socerr"
)

// Notifier is told about newly escalated incidents. Optional.
type Notifier interface {
	IncidentEscalated(ctx context.Context, inc *Incident)
}

// EventPublisher emits lifecycle events to the bus. Best-effort.
type EventPublisher interface {
	Publish(subject string, payload any) error
}

// Service is the business boundary for incident operations. Incidents are
// created only through OpenForAlert; callers never create them directly.
type Service struct {
	store    Store
	policy   Policy
	events   EventPublisher
	notifier Notifier
	logger   log.Logger
	metrics  *Metrics
	now      func() time.Time
}

// NewService creates the incident service. events, notifier and metrics
// may be nil.
func NewService(store Store, policy Policy, events EventPublisher, notifier Notifier, logger log.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		policy:   policy,
		events:   events,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// OpenForAlert creates the incident for an escalated alert, with SLA
// deadlines computed from the severity policy at creation time. If the
// alert already has an incident the existing ID is returned, keeping the
// one-incident-per-alert invariant under escalation retries.
func (s *Service) OpenForAlert(ctx context.Context, a *alert.Alert, analystID string) (string, error) {
	if existing, ok, err := s.store.GetByAlert(ctx, a.TenantID, a.ID); err != nil {
		return "", socerr.Unavailable(err, "incident lookup")
	} else if ok {
		return existing.ID, nil
	}

	now := s.now()
	off := s.policy.offsetsFor(a.Severity)
	inc := &Incident{
		ID:               ulid.Make().String(),
		TenantID:         a.TenantID,
		Title:            escalationTitle(a),
		Description:      a.Message,
		Severity:         a.Severity,
		Status:           StatusOpen,
		OwnerID:          analystID,
		LinkedAlertID:    a.ID,
		CreatedAt:        now,
		SLAAcknowledgeBy: now.Add(off.Acknowledge),
		SLAInvestigateBy: now.Add(off.Investigate),
		SLAResolveBy:     now.Add(off.Resolve),
	}

	if err := s.store.Persist(ctx, inc); err != nil {
		return "", socerr.Unavailable(err, "persist incident")
	}

	s.logger.Info(ctx, "incident opened",
		"incident_id", inc.ID,
		"tenant_id", inc.TenantID,
		"alert_id", a.ID,
		"severity", inc.Severity,
		"sla_resolve_by", inc.SLAResolveBy,
	)
	if s.metrics != nil {
		s.metrics.OpenedTotal.WithLabelValues(string(inc.Severity)).Inc()
	}
	if s.notifier != nil {
		s.notifier.IncidentEscalated(ctx, inc)
	}
	return inc.ID, nil
}

// Get retrieves a tenant's incident by ID.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*Incident, error) {
	inc, ok, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, socerr.Unavailable(err, "get incident")
	}
	if !ok {
		return nil, socerr.NotFound("incident %s", id)
	}
	return inc, nil
}

// StartWork moves an open incident to in_progress and stamps both the
// acknowledgement and investigation-start times. Starting late is allowed;
// lateness is reported by SLA derivation, not enforced here.
func (s *Service) StartWork(ctx context.Context, tenantID, id string) (*Incident, error) {
	inc, err := s.Get(ctx, tenantID, id)
	if err != nil {
		s.observeTransition("start_work", err)
		return nil, err
	}
	if inc.Status != StatusOpen {
		err := socerr.Conflict("incident %s is %s, not open", id, inc.Status)
		s.observeTransition("start_work", err)
		return nil, err
	}

	now := s.now()
	ok, err := s.store.ConditionalUpdate(ctx, tenantID, id,
		Expect{Status: StatusOpen},
		Patch{Status: StatusInProgress, AcknowledgedAt: &now, InvestigationStartedAt: &now},
	)
	if err != nil {
		s.observeTransition("start_work", err)
		return nil, socerr.Unavailable(err, "start work")
	}
	if !ok {
		err := socerr.Conflict("incident %s changed concurrently", id)
		s.observeTransition("start_work", err)
		return nil, err
	}

	inc.Status = StatusInProgress
	inc.AcknowledgedAt = &now
	inc.InvestigationStartedAt = &now
	s.observeTransition("start_work", nil)
	return inc, nil
}

// Resolve closes an in-progress incident as worked. Summary is mandatory.
func (s *Service) Resolve(ctx context.Context, tenantID, id, summary string) (*Incident, error) {
	return s.close(ctx, tenantID, id, StatusResolved, summary, "resolution summary")
}

// Dismiss closes an in-progress incident without action. Justification is
// mandatory.
func (s *Service) Dismiss(ctx context.Context, tenantID, id, justification string) (*Incident, error) {
	return s.close(ctx, tenantID, id, StatusDismissed, justification, "dismissal justification")
}

// SLA derives the incident's current SLA standing. Never persisted.
func (s *Service) SLA(ctx context.Context, tenantID, id string) (*SLAStatus, error) {
	inc, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	st := DeriveSLA(inc, s.now())
	if s.metrics != nil && st.State == SLABreach {
		s.metrics.BreachesObserved.WithLabelValues(string(st.Milestone)).Inc()
	}
	return &st, nil
}

func (s *Service) close(ctx context.Context, tenantID, id string, target Status, text, field string) (*Incident, error) {
	op, subject := "resolve", "rampart.incident.resolved"
	if target == StatusDismissed {
		op, subject = "dismiss", "rampart.incident.dismissed"
	}

	if strings.TrimSpace(text) == "" {
		err := socerr.Validation("%s is required", field)
		s.observeTransition(op, err)
		return nil, err
	}

	inc, err := s.Get(ctx, tenantID, id)
	if err != nil {
		s.observeTransition(op, err)
		return nil, err
	}
	if inc.Status != StatusInProgress {
		err := socerr.Conflict("incident %s is %s, not in_progress", id, inc.Status)
		s.observeTransition(op, err)
		return nil, err
	}

	now := s.now()
	ok, err := s.store.ConditionalUpdate(ctx, tenantID, id,
		Expect{Status: StatusInProgress},
		Patch{Status: target, ResolvedAt: &now, ResolutionSummary: &text},
	)
	if err != nil {
		s.observeTransition(op, err)
		return nil, socerr.Unavailable(err, "%s incident", op)
	}
	if !ok {
		err := socerr.Conflict("incident %s changed concurrently", id)
		s.observeTransition(op, err)
		return nil, err
	}

	inc.Status = target
	inc.ResolvedAt = &now
	inc.ResolutionSummary = text
	s.publish(subject, map[string]any{
		"tenant_id":   tenantID,
		"incident_id": id,
		"status":      target,
	})
	s.observeTransition(op, nil)
	return inc, nil
}

func (s *Service) publish(subject string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(subject, payload); err != nil {
		s.logger.Error(context.Background(), err, "event publish failed", "subject", subject)
	}
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

func escalationTitle(a *alert.Alert) string {
	if a.DeviceID != "" {
		return fmt.Sprintf("Escalated: %s on %s", a.AlertType, a.DeviceID)
	}
	return "Escalated: " + a.AlertType
}

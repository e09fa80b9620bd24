package incident

import (
	"time"

	"github.com/linnemanlabs/rampart/internal/alert"
)

// Status tracks where an incident is in its work lifecycle.
type Status string

const (
	// StatusOpen means created by escalation, not yet acknowledged.
	StatusOpen Status = "open"

	// StatusInProgress means an analyst has started work.
	StatusInProgress Status = "in_progress"

	// StatusResolved means the incident was worked to completion. Terminal.
	StatusResolved Status = "resolved"

	// StatusDismissed means the incident was closed without action. Terminal.
	StatusDismissed Status = "dismissed"
)

// Incident is an SLA-tracked escalation of an alert. Exactly one incident
// exists per escalated alert; resolvedAt is set exactly when the status is
// resolved or dismissed.
type Incident struct {
	ID                     string         `json:"id"`
	TenantID               string         `json:"tenant_id"`
	Title                  string         `json:"title"`
	Description            string         `json:"description"`
	Severity               alert.Severity `json:"severity"`
	Status                 Status         `json:"status"`
	OwnerID                string         `json:"owner_id"`
	LinkedAlertID          string         `json:"linked_alert_id"`
	ResolutionSummary      string         `json:"resolution_summary,omitempty"`
	CreatedAt              time.Time      `json:"created_at"`
	AcknowledgedAt         *time.Time     `json:"acknowledged_at,omitempty"`
	InvestigationStartedAt *time.Time     `json:"investigation_started_at,omitempty"`
	ResolvedAt             *time.Time     `json:"resolved_at,omitempty"`
	SLAAcknowledgeBy       time.Time      `json:"sla_acknowledge_by"`
	SLAInvestigateBy       time.Time      `json:"sla_investigate_by"`
	SLAResolveBy           time.Time      `json:"sla_resolve_by"`
}

package alert

import "time"

// Severity orders how urgent an alert is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// ValidSeverity reports whether s is a known severity.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

// Status tracks where an alert is in its ownership/resolution lifecycle.
type Status string

const (
	// StatusOpen means created, unowned.
	StatusOpen Status = "open"

	// StatusAssigned means claimed by an analyst.
	StatusAssigned Status = "assigned"

	// StatusInvestigating means the owning analyst is actively working it.
	StatusInvestigating Status = "investigating"

	// StatusEscalated means promoted to an incident. Terminal.
	StatusEscalated Status = "escalated"

	// StatusClosedBenign means resolved as expected/benign activity. Terminal.
	StatusClosedBenign Status = "closed_benign"

	// StatusClosedFalsePositive means resolved as a detection error. Terminal.
	StatusClosedFalsePositive Status = "closed_false_positive"
)

// Terminal reports whether no further mutation of the alert is permitted.
func (s Status) Terminal() bool {
	switch s {
	case StatusEscalated, StatusClosedBenign, StatusClosedFalsePositive:
		return true
	}
	return false
}

// TypeStorm is the alert type of the synthetic meta-alert a detected
// storm produces.
const TypeStorm = "alert_storm_detected"

// Outcome is an analyst's resolution verdict.
type Outcome string

const (
	OutcomeBenign        Outcome = "benign"
	OutcomeFalsePositive Outcome = "false_positive"
)

// Alert is a single security alert from a detection source.
//
// OwnerID is non-empty exactly when the status is past open. Terminal
// statuses are retained for audit and never mutated again.
type Alert struct {
	ID              string         `json:"id"`
	TenantID        string         `json:"tenant_id"`
	DeviceID        string         `json:"device_id,omitempty"`
	SourceSystem    string         `json:"source_system"`
	AlertType       string         `json:"alert_type"`
	Classification  string         `json:"classification,omitempty"`
	Severity        Severity       `json:"severity"`
	Message         string         `json:"message"`
	Status          Status         `json:"status"`
	OwnerID         string         `json:"owner_id,omitempty"`
	AssignedAt      *time.Time     `json:"assigned_at,omitempty"`
	ResolutionNotes string         `json:"resolution_notes,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	DetectedAt      time.Time      `json:"detected_at"`
}

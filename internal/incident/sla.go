package incident

import "time"

// WarningWindow is how close to a deadline an SLA turns from ok to warning.
const WarningWindow = 30 * time.Minute

// Milestone names the incident-handling deadline currently in play.
type Milestone string

const (
	MilestoneAcknowledge Milestone = "acknowledge"
	MilestoneInvestigate Milestone = "investigate"
	MilestoneResolve     Milestone = "resolve"
)

// SLAState classifies how an incident stands against a deadline.
type SLAState string

const (
	SLAOk      SLAState = "ok"
	SLAWarning SLAState = "warning"
	SLABreach  SLAState = "breach"
)

// SLAStatus is the derived, never-persisted view of an incident's active
// SLA milestone.
type SLAStatus struct {
	Milestone Milestone     `json:"milestone"`
	State     SLAState      `json:"state"`
	Deadline  time.Time     `json:"deadline"`
	Remaining time.Duration `json:"-"`

	// RemainingSeconds is Remaining on the wire; negative once breached.
	RemainingSeconds float64 `json:"remaining_seconds"`
}

// DeriveSLA recomputes the SLA standing of inc at the given instant. Pure
// read: lateness never blocks a transition, it is only reported here.
//
// The active milestone is acknowledge while the incident is open and
// unacknowledged, investigate while in progress and before its investigate
// deadline, and resolve otherwise.
func DeriveSLA(inc *Incident, now time.Time) SLAStatus {
	var (
		milestone Milestone
		deadline  time.Time
	)

	switch {
	case inc.Status == StatusOpen && inc.AcknowledgedAt == nil:
		milestone = MilestoneAcknowledge
		deadline = inc.SLAAcknowledgeBy
	case inc.Status == StatusInProgress && now.Before(inc.SLAInvestigateBy):
		milestone = MilestoneInvestigate
		deadline = inc.SLAInvestigateBy
	default:
		milestone = MilestoneResolve
		deadline = inc.SLAResolveBy
	}

	st := SLAStatus{
		Milestone: milestone,
		Deadline:  deadline,
		Remaining: deadline.Sub(now),
	}
	st.RemainingSeconds = st.Remaining.Seconds()
	switch {
	case !now.Before(deadline):
		st.State = SLABreach
	case st.Remaining <= WarningWindow:
		st.State = SLAWarning
	default:
		st.State = SLAOk
	}
	return st
}

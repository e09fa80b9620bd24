package incident

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the incident subsystem.
type Metrics struct {
	OpenedTotal      *prometheus.CounterVec
	TransitionsTotal *prometheus.CounterVec
	BreachesObserved *prometheus.CounterVec
}

// NewMetrics registers and returns incident metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OpenedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rampart_incidents_opened_total",
			Help: "Total incidents opened by escalation, by severity.",
		}, []string{"severity"}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rampart_incident_transitions_total",
			Help: "Total incident state-machine transitions by operation and outcome.",
		}, []string{"op", "outcome"}),
		BreachesObserved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rampart_incident_sla_breaches_observed_total",
			Help: "SLA breaches seen by on-demand derivation, by milestone.",
		}, []string{"milestone"}),
	}

	reg.MustRegister(
		m.OpenedTotal,
		m.TransitionsTotal,
		m.BreachesObserved,
	)

	return m
}

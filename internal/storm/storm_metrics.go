package storm

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the storm subsystem.
type Metrics struct {
	Detected prometheus.Counter
	Errors   prometheus.Counter
}

// NewMetrics registers and returns storm metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Detected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rampart_storms_detected_total",
			Help: "Total alert storms detected across all tenants.",
		}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rampart_storm_errors_total",
			Help: "Total swallowed cache/persistence errors during storm evaluation.",
		}),
	}

	reg.MustRegister(
		m.Detected,
		m.Errors,
	)

	return m
}

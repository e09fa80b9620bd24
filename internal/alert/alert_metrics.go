package alert

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the alert subsystem.
type Metrics struct {
	IngestedTotal    *prometheus.CounterVec
	IngestDuration   prometheus.Histogram
	TransitionsTotal *prometheus.CounterVec
}

// NewMetrics registers and returns alert metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IngestedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rampart_alerts_ingested_total",
			Help: "Total ingestion calls by result.",
		}, []string{"result"}), // created, suppressed, duplicate, error
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rampart_alert_ingest_duration_seconds",
			Help:    "Duration of ingestion calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~4s
		}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rampart_alert_transitions_total",
			Help: "Total alert state-machine transitions by operation and outcome.",
		}, []string{"op", "outcome"}),
	}

	reg.MustRegister(
		m.IngestedTotal,
		m.IngestDuration,
		m.TransitionsTotal,
	)

	return m
}

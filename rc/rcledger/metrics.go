package rcledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "gcircle"

// Metrics are the Prometheus instruments updated by a [Client].
type Metrics struct {
	// Operations counts client operations.
	// Labels: op (create, add_member, contribute), outcome (committed, rejected, stale, error).
	Operations *prometheus.CounterVec

	// Retries counts resubmissions after a stale reference.
	Retries prometheus.Counter

	// Payouts counts rounds paid out by committed transitions.
	Payouts prometheus.Counter

	// SubmitSeconds measures ledger submission latency.
	SubmitSeconds prometheus.Histogram
}

// NewMetrics creates the client metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "client",
			Name:      "operations_total",
			Help:      "Circle operations by kind and outcome.",
		}, []string{"op", "outcome"}),

		Retries: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "client",
			Name:      "stale_retries_total",
			Help:      "Resubmissions after the spent state was superseded.",
		}),

		Payouts: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "client",
			Name:      "payouts_total",
			Help:      "Rounds paid out by committed contributions.",
		}),

		SubmitSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "client",
			Name:      "submit_seconds",
			Help:      "Latency of ledger submissions.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "staker"

// CallIndicators counts ledger calls by operation and outcome.
type CallIndicators struct {
	callTotal           *prometheus.CounterVec
	callDurationSeconds *prometheus.HistogramVec
}

func NewCallIndicators(reg prometheus.Registerer) *CallIndicators {
	return &CallIndicators{
		callTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_calls_total",
				Help:      "Total number of ledger calls by operation and result kind",
			},
			[]string{"op", "result"},
		),
		callDurationSeconds: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ledger_call_duration_seconds",
				Help:      "Duration of ledger calls in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"op"},
		),
	}
}

// ObserveCall records one call. An empty kind means success.
func (c *CallIndicators) ObserveCall(op, kind string, elapsed time.Duration) {
	if kind == "" {
		kind = "ok"
	}
	c.callTotal.With(prometheus.Labels{"op": op, "result": kind}).Inc()
	c.callDurationSeconds.With(prometheus.Labels{"op": op}).Observe(elapsed.Seconds())
}

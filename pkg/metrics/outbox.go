package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Relay outcomes used as the outcome label.
const (
	OutboxPublished    = "published"
	OutboxDuplicate    = "duplicate"
	OutboxRetry        = "retry"
	OutboxDeadLettered = "dead_lettered"
)

// OutboxMetrics tracks the relay from outbox_events to Pub/Sub.
type OutboxMetrics struct {
	outcomes *prometheus.CounterVec
	lag      prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if disabled(reg) {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_events_total",
			Help: "Outbox rows handled by the relay, by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		lag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "outbox_publish_lag_seconds",
			Help:    "Time between an outbox row being written and Pub/Sub accepting it.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 15, 60, 300},
		}),
	}
	reg.MustRegister(m.outcomes, m.lag)
	return m
}

// Observe counts one relay outcome for eventType.
func (m *OutboxMetrics) Observe(eventType, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
}

// ObserveLag records how long a published row waited in the outbox.
func (m *OutboxMetrics) ObserveLag(lag time.Duration) {
	if m == nil || m.lag == nil || lag < 0 {
		return
	}
	m.lag.Observe(lag.Seconds())
}

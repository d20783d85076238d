package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Consumer outcomes used as the outcome label.
const (
	ConsumerHandled   = "handled"
	ConsumerDuplicate = "duplicate"
	ConsumerMalformed = "malformed"
	ConsumerRejected  = "rejected"
	ConsumerRetry     = "retry"
)

// ConsumerMetrics tracks Pub/Sub subscribers such as notifications and analytics.
type ConsumerMetrics struct {
	messages *prometheus.CounterVec
	handle   *prometheus.HistogramVec
}

func NewConsumerMetrics(reg prometheus.Registerer) *ConsumerMetrics {
	if disabled(reg) {
		return &ConsumerMetrics{}
	}
	m := &ConsumerMetrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consumer_messages_total",
			Help: "Delivered messages by consumer, event type and outcome.",
		}, []string{"consumer", "event_type", "outcome"}),
		handle: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "consumer_handle_duration_seconds",
			Help:    "Time spent inside the consumer handler per message.",
			Buckets: prometheus.DefBuckets,
		}, []string{"consumer"}),
	}
	reg.MustRegister(m.messages, m.handle)
	return m
}

func (m *ConsumerMetrics) Observe(consumer, eventType, outcome string) {
	if m == nil || m.messages == nil {
		return
	}
	m.messages.WithLabelValues(consumer, normalizeLabel(eventType), outcome).Inc()
}

func (m *ConsumerMetrics) ObserveHandle(consumer string, d time.Duration) {
	if m == nil || m.handle == nil {
		return
	}
	m.handle.WithLabelValues(consumer).Observe(d.Seconds())
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics counts order lifecycle transitions and rejected delivery codes.
type OrderMetrics struct {
	transitions   *prometheus.CounterVec
	otpRejections *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if disabled(reg) {
		return &OrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order status transitions by target status.",
	}, []string{"to"})
	otpRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_otp_rejections_total",
		Help: "Delivery code verifications rejected, by reason.",
	}, []string{"reason"})
	reg.MustRegister(transitions, otpRejections)
	return &OrderMetrics{
		transitions:   transitions,
		otpRejections: otpRejections,
	}
}

// IncTransition counts an order entering the given status.
func (m *OrderMetrics) IncTransition(to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(to)).Inc()
}

// IncOTPRejection counts a failed delivery code verification.
func (m *OrderMetrics) IncOTPRejection(reason string) {
	if m == nil || m.otpRejections == nil {
		return
	}
	m.otpRejections.WithLabelValues(normalizeLabel(reason)).Inc()
}

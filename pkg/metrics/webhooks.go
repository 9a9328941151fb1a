package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics counts inbound gateway callback outcomes per provider.
type WebhookMetrics struct {
	received  *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	duplicate *prometheus.CounterVec
	applied   *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook counters on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_received_total",
		Help: "Inbound payment callbacks received.",
	}, []string{"provider"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_rejected_total",
		Help: "Callbacks discarded before any state change (bad signature, unknown order).",
	}, []string{"provider", "reason"})
	duplicate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_duplicate_total",
		Help: "Callbacks acknowledged as idempotent no-ops.",
	}, []string{"provider"})
	applied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_applied_total",
		Help: "Callbacks that produced an order state transition.",
	}, []string{"provider", "status"})
	reg.MustRegister(received, rejected, duplicate, applied)
	return &WebhookMetrics{
		received:  received,
		rejected:  rejected,
		duplicate: duplicate,
		applied:   applied,
	}
}

// IncReceived counts an inbound callback for the provider.
func (m *WebhookMetrics) IncReceived(provider string) {
	if m == nil || m.received == nil {
		return
	}
	m.received.WithLabelValues(normalizeLabel(provider)).Inc()
}

// IncRejected counts a discarded callback with the rejection reason.
func (m *WebhookMetrics) IncRejected(provider, reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(provider), normalizeLabel(reason)).Inc()
}

// IncDuplicate counts an idempotent no-op acknowledgment.
func (m *WebhookMetrics) IncDuplicate(provider string) {
	if m == nil || m.duplicate == nil {
		return
	}
	m.duplicate.WithLabelValues(normalizeLabel(provider)).Inc()
}

// IncApplied counts an applied transition with the resulting status.
func (m *WebhookMetrics) IncApplied(provider, status string) {
	if m == nil || m.applied == nil {
		return
	}
	m.applied.WithLabelValues(normalizeLabel(provider), normalizeLabel(status)).Inc()
}

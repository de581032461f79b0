package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics counts webhook deliveries per provider and outcome.
type WebhookMetrics struct {
	received  *prometheus.CounterVec
	duplicate *prometheus.CounterVec
	unmatched *prometheus.CounterVec
	rejected  *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook counters on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_received",
		Help:      "Webhook events accepted after signature verification.",
	}, []string{"provider"})
	duplicate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_duplicate",
		Help:      "Webhook events short-circuited by the idempotency ledger.",
	}, []string{"provider"})
	unmatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_unmatched",
		Help:      "Webhook events that no correlation strategy could resolve.",
	}, []string{"provider"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_rejected",
		Help:      "Webhook deliveries rejected before processing (bad signature).",
	}, []string{"provider"})
	reg.MustRegister(received, duplicate, unmatched, rejected)
	return &WebhookMetrics{
		received:  received,
		duplicate: duplicate,
		unmatched: unmatched,
		rejected:  rejected,
	}
}

// IncReceived counts an accepted delivery.
func (m *WebhookMetrics) IncReceived(provider string) {
	if m == nil || m.received == nil {
		return
	}
	m.received.WithLabelValues(normalizeLabel(provider)).Inc()
}

// IncDuplicate counts a ledger-deduplicated delivery.
func (m *WebhookMetrics) IncDuplicate(provider string) {
	if m == nil || m.duplicate == nil {
		return
	}
	m.duplicate.WithLabelValues(normalizeLabel(provider)).Inc()
}

// IncUnmatched counts an event that resolved to no order.
func (m *WebhookMetrics) IncUnmatched(provider string) {
	if m == nil || m.unmatched == nil {
		return
	}
	m.unmatched.WithLabelValues(normalizeLabel(provider)).Inc()
}

// IncRejected counts a delivery that failed signature verification.
func (m *WebhookMetrics) IncRejected(provider string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(provider)).Inc()
}

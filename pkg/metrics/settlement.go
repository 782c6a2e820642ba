package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics tracks resolve outcomes, webhook deliveries and gateway
// latency.
type SettlementMetrics struct {
	resolves *prometheus.CounterVec
	webhooks *prometheus.CounterVec
	gateway  *prometheus.HistogramVec
}

// NewSettlementMetrics registers the settlement metrics on reg. A nil
// registerer yields a no-op recorder.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	resolves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_resolve_total",
		Help: "Resolve attempts by source, observed outcome and result.",
	}, []string{"source", "outcome", "result"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_webhook_events_total",
		Help: "Gateway webhook deliveries by event and result.",
	}, []string{"event", "result"})
	gateway := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_gateway_request_duration_seconds",
		Help:    "Latency of outbound gateway calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "result"})
	reg.MustRegister(resolves, webhooks, gateway)
	return &SettlementMetrics{resolves: resolves, webhooks: webhooks, gateway: gateway}
}

// IncResolve counts one resolve call.
func (m *SettlementMetrics) IncResolve(source, outcome, result string) {
	if m == nil || m.resolves == nil {
		return
	}
	m.resolves.WithLabelValues(label(source), label(outcome), label(result)).Inc()
}

// IncWebhook counts one webhook delivery.
func (m *SettlementMetrics) IncWebhook(event, result string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(label(event), label(result)).Inc()
}

// ObserveGateway records the latency of a gateway call.
func (m *SettlementMetrics) ObserveGateway(operation, result string, d time.Duration) {
	if m == nil || m.gateway == nil {
		return
	}
	m.gateway.WithLabelValues(label(operation), label(result)).Observe(d.Seconds())
}

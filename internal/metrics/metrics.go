package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Store records checkout, reconciliation and gateway activity. A nil *Store is a no-op.
type Store struct {
	checkout        *prometheus.CounterVec
	webhook         *prometheus.CounterVec
	gatewayRequests *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
	cancellations   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Store {
	if reg == nil {
		return nil
	}
	s := &Store{
		checkout: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_total",
			Help: "Checkout attempts by result.",
		}, []string{"result"}),
		webhook: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_notifications_total",
			Help: "Payment gateway notifications by outcome.",
		}, []string{"outcome"}),
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Payment gateway calls by operation and result.",
		}, []string{"operation", "result"}),
		gatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Payment gateway call latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_cancellations_total",
			Help: "Order cancellations by actor.",
		}, []string{"actor"}),
	}
	reg.MustRegister(s.checkout, s.webhook, s.gatewayRequests, s.gatewayDuration, s.cancellations)
	return s
}

func (s *Store) ObserveCheckout(result string) {
	if s == nil {
		return
	}
	s.checkout.WithLabelValues(normalizeLabel(result)).Inc()
}

func (s *Store) ObserveWebhook(outcome string) {
	if s == nil {
		return
	}
	s.webhook.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveGateway matches gateway.Observer.
func (s *Store) ObserveGateway(operation string, elapsed time.Duration, err error) {
	if s == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	op := normalizeLabel(operation)
	s.gatewayRequests.WithLabelValues(op, result).Inc()
	s.gatewayDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (s *Store) ObserveCancellation(actor string) {
	if s == nil {
		return
	}
	s.cancellations.WithLabelValues(normalizeLabel(actor)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

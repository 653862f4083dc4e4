package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 注文ライフサイクルのメトリクス。nilのままでも呼び出せる。
type Metrics struct {
	registry *prometheus.Registry

	Checkouts         *prometheus.CounterVec
	WebhookEvents     *prometheus.CounterVec
	ReconcileOrders   *prometheus.CounterVec
	ReconcileDuration prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookstore",
			Name:      "checkout_total",
			Help:      "Checkout attempts by result.",
		}, []string{"result"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookstore",
			Name:      "webhook_events_total",
			Help:      "Payment webhook deliveries by result.",
		}, []string{"result"}),
		ReconcileOrders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookstore",
			Name:      "reconcile_orders_total",
			Help:      "Orders visited by reconciliation sweeps by outcome.",
		}, []string{"outcome"}),
		ReconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bookstore",
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of reconciliation sweeps.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}

	reg.MustRegister(
		m.Checkouts,
		m.WebhookEvents,
		m.ReconcileOrders,
		m.ReconcileDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveCheckout(result string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveWebhook(result string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveReconcile(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ReconcileOrders.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) ObserveReconcileDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.ReconcileDuration.Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

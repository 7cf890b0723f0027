// Package metrics declares the Prometheus collectors the pipeline scrapes
// at /metrics, grounded on the prometheus/client_golang usage pattern in
// the retrieval pack's cloud-native examples: collectors held in a Metrics
// value and registered once against a private registry, not the global
// default one, so tests can construct an isolated Metrics value per case.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the pipeline exports.
type Metrics struct {
	Registry *prometheus.Registry

	OrdersAccepted  prometheus.Counter
	OrdersConfirmed prometheus.Counter
	OrdersFailed    *prometheus.CounterVec
	RouteLatency    *prometheus.HistogramVec
	VenueQuoteWins  *prometheus.CounterVec
	QueueDepth      prometheus.Gauge
}

// New constructs a Metrics value with every collector registered against a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		OrdersAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_accepted_total",
			Help: "Total orders accepted by intake.",
		}),
		OrdersConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_confirmed_total",
			Help: "Total orders that reached the confirmed state.",
		}),
		OrdersFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_failed_total",
			Help: "Total orders that reached the failed state, labeled by error kind.",
		}, []string{"kind"}),
		RouteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "route_decision_seconds",
			Help:    "Time spent fanning out to venues and selecting a winner.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		VenueQuoteWins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "venue_quote_wins_total",
			Help: "Total routing decisions won by each venue.",
		}, []string{"venue"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_pending_jobs",
			Help: "Approximate number of jobs waiting for a worker.",
		}),
	}

	reg.MustRegister(
		m.OrdersAccepted,
		m.OrdersConfirmed,
		m.OrdersFailed,
		m.RouteLatency,
		m.VenueQuoteWins,
		m.QueueDepth,
	)
	return m
}

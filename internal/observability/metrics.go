package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for upstream calls and sessions.
type Metrics struct {
	// Upstream air-quality service.
	UpstreamRequests *prometheus.CounterVec   // labels: op={sample,variation}, outcome={success,invalid_input,network_error,bad_response}
	UpstreamDuration *prometheus.HistogramVec // labels: op
	BreakerOpen      prometheus.Gauge

	// Presenter sessions.
	ActiveSessions  prometheus.Gauge
	SessionsEvicted prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.BreakerOpen,
		m.ActiveSessions,
		m.SessionsEvicted,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smog_map",
			Name:      "upstream_requests_total",
			Help:      "Air-quality service calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "smog_map",
			Name:      "upstream_request_duration_seconds",
			Help:      "Air-quality service call duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 8},
		}, []string{"op"}),
		BreakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smog_map",
			Name:      "upstream_breaker_open",
			Help:      "1 while the circuit breaker to the air-quality service is open.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smog_map",
			Name:      "active_sessions",
			Help:      "Presenter sessions currently held in memory.",
		}),
		SessionsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smog_map",
			Name:      "sessions_evicted_total",
			Help:      "Sessions removed for age or capacity.",
		}),
	}
}

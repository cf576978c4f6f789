package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. All methods are safe on a
// nil receiver so components can run without metrics in tests.
type Metrics struct {
	gatherer prometheus.Gatherer

	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	rateLimitRejected prometheus.Counter
	timeoutsTotal     prometheus.Counter
	authFailures      *prometheus.CounterVec
	panicsRecovered   prometheus.Counter
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "community",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "community",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		rateLimitRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "community",
			Subsystem: "middleware",
			Name:      "rate_limit_rejected_total",
			Help:      "Total number of requests rejected by the rate limiter.",
		}),
		timeoutsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "community",
			Subsystem: "middleware",
			Name:      "request_timeouts_total",
			Help:      "Total number of requests answered by the timeout guard.",
		}),
		authFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "community",
				Subsystem: "auth",
				Name:      "failures_total",
				Help:      "Total number of rejected authentication attempts by reason.",
			},
			[]string{"reason"},
		),
		panicsRecovered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "community",
			Subsystem: "middleware",
			Name:      "panics_recovered_total",
			Help:      "Total number of recovered handler panics.",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, route, status).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(seconds)
}

func (m *Metrics) RateLimitRejected() {
	if m == nil {
		return
	}
	m.rateLimitRejected.Inc()
}

func (m *Metrics) RequestTimedOut() {
	if m == nil {
		return
	}
	m.timeoutsTotal.Inc()
}

func (m *Metrics) AuthFailed(reason string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) PanicRecovered() {
	if m == nil {
		return
	}
	m.panicsRecovered.Inc()
}

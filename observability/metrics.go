package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records JSON-RPC activity against the ledger surface.
type LedgerMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles prometheus.Counter
}

var (
	metricsOnce sync.Once
	registry    *LedgerMetrics
)

// Metrics returns the lazily-initialised ledger metrics registry.
func Metrics() *LedgerMetrics {
	metricsOnce.Do(func() {
		registry = &LedgerMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "streamvault",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "streamvault",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and HTTP status.",
			}, []string{"method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "streamvault",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			throttles: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "streamvault",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by the rate limiter.",
			}),
		}
		prometheus.MustRegister(
			registry.requests,
			registry.errors,
			registry.latency,
			registry.throttles,
		)
	})
	return registry
}

// ObserveRequest records the outcome of one JSON-RPC request. The status code
// is the HTTP status ultimately written to the response writer.
func (m *LedgerMetrics) ObserveRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "ok"
	if status >= http.StatusBadRequest {
		outcome = "error"
		m.errors.WithLabelValues(method, strconv.Itoa(status)).Inc()
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// ObserveThrottle records one rate-limited request.
func (m *LedgerMetrics) ObserveThrottle() {
	if m == nil {
		return
	}
	m.throttles.Inc()
}

package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OperationMetrics records the outcome and latency of vault operations served
// over RPC.
type OperationMetrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	operationOnce     sync.Once
	operationRegistry *OperationMetrics
)

// Operations returns the lazily-initialised metrics registry for vault
// operations.
func Operations() *OperationMetrics {
	operationOnce.Do(func() {
		m := &OperationMetrics{
			registry: prometheus.NewRegistry(),
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bondvault",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total vault operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "bondvault",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for vault operation handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
		}
		m.registry.MustRegister(m.requests, m.latency)
		operationRegistry = m
	})
	return operationRegistry
}

// Observe records one operation with its outcome and duration.
func (m *OperationMetrics) Observe(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// Handler exposes the registry in Prometheus exposition format.
func (m *OperationMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Package metrics holds the Prometheus collectors for the ledger.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a set of collectors registered on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	Transactions  *prometheus.CounterVec
	Imports       *prometheus.CounterVec
	Resets        prometheus.Counter
	StoreErrors   *prometheus.CounterVec
	Notifications prometheus.Counter
	HTTPDuration  *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Transactions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "transactions_total",
			Help:      "Transactions applied, by type.",
		}, []string{"type"}),
		Imports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "imports_total",
			Help:      "Bulk imports, by format and outcome.",
		}, []string{"format", "outcome"}),
		Resets: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "resets_total",
			Help:      "Full resets to the seed dataset.",
		}),
		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "store_errors_total",
			Help:      "Storage failures surfaced to callers, by operation.",
		}, []string{"op"}),
		Notifications: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "data_changed_total",
			Help:      "Data-changed signals broadcast.",
		}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveHTTP records one request. route should be the router pattern, not
// the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

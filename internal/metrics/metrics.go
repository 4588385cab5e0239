// Package metrics exposes Prometheus instrumentation for the sales service.
//
// Collectors are registered on an explicit registry passed in by the caller
// rather than the package-global default, so tests can construct isolated
// instances and main owns the registry it serves at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all collectors for the service.
type Metrics struct {
	ImportsStarted   prometheus.Counter
	ImportsCompleted *prometheus.CounterVec
	ImportsFailed    *prometheus.CounterVec
	ImportRows       *prometheus.CounterVec
	ImportBytes      prometheus.Counter
	ImportDuration   prometheus.Histogram
	QueryDuration    *prometheus.HistogramVec
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ImportsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "sales_imports_started_total",
			Help: "Number of import operations started.",
		}),
		ImportsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sales_imports_completed_total",
			Help: "Number of import operations committed, by update mode.",
		}, []string{"mode"}),
		ImportsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sales_imports_failed_total",
			Help: "Number of import operations rolled back, by pipeline stage.",
		}, []string{"stage"}),
		ImportRows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sales_import_rows_total",
			Help: "Rows processed by imports, by outcome (inserted, invalid, skipped_conflict, dup_in_file).",
		}, []string{"outcome"}),
		ImportBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "sales_import_bytes_total",
			Help: "Bytes streamed into the staging COPY.",
		}),
		ImportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sales_import_duration_seconds",
			Help:    "Wall-clock duration of import operations.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sales_query_duration_seconds",
			Help:    "Duration of read operations, by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

// NewNop returns a Metrics backed by a private registry that is never
// scraped. Useful for tests and one-shot CLI runs.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// ObserveQuery records a completed read operation.
func (m *Metrics) ObserveQuery(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(op).Observe(d.Seconds())
}

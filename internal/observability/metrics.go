package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Remote fetch metrics
	FetchesTotal   prometheus.Counter
	FetchesFailed  prometheus.Counter
	FetchDuration  prometheus.Histogram
	DefectsFetched prometheus.Counter
	CacheHits      prometheus.Counter

	// Directive metrics
	DirectivesProcessed prometheus.Counter
	DirectiveErrors     *prometheus.CounterVec
	TablesRendered      prometheus.Counter
	ChartsRendered      prometheus.Counter

	// Document metrics
	DocumentsBuilt  prometheus.Counter
	DocumentsFailed prometheus.Counter

	// Gate metrics
	GatePassed prometheus.Counter
	GateFailed prometheus.Counter
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			FetchesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "covdocs_fetches_total",
				Help: "Total number of remote defect fetches performed",
			}),
			FetchesFailed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "covdocs_fetches_failed_total",
				Help: "Total number of remote defect fetches that failed",
			}),
			FetchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "covdocs_fetch_duration_seconds",
				Help:    "Duration of remote defect fetches in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
			}),
			DefectsFetched: promauto.NewCounter(prometheus.CounterOpts{
				Name: "covdocs_defects_fetched_total",
				Help: "Total number of defect records received from the server",
			}),
			CacheHits: promauto.NewCounter(prometheus.CounterOpts{
				Name: "covdocs_cache_hits_total",
				Help: "Total number of defect cache hits",
			}),

			DirectivesProcessed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "covdocs_directives_processed_total",
				Help: "Total number of directive blocks processed",
			}),
			DirectiveErrors: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "covdocs_directive_errors_total",
					Help: "Total number of directive failures by kind",
				},
				[]string{"kind"}, // config, retrieval
			),
			TablesRendered: promauto.NewCounter(prometheus.CounterOpts{
				Name: "covdocs_tables_rendered_total",
				Help: "Total number of defect tables rendered",
			}),
			ChartsRendered: promauto.NewCounter(prometheus.CounterOpts{
				Name: "covdocs_charts_rendered_total",
				Help: "Total number of defect charts rendered",
			}),

			DocumentsBuilt: promauto.NewCounter(prometheus.CounterOpts{
				Name: "covdocs_documents_built_total",
				Help: "Total number of documents written",
			}),
			DocumentsFailed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "covdocs_documents_failed_total",
				Help: "Total number of documents that failed to build",
			}),

			GatePassed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "covdocs_gate_passed_total",
				Help: "Total number of builds that passed the defect gate",
			}),
			GateFailed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "covdocs_gate_failed_total",
				Help: "Total number of builds that failed the defect gate",
			}),
		}
	})
	return metricsInstance
}

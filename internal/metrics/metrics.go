package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPResponseSize      *prometheus.HistogramVec
	HTTPActiveConnections *prometheus.GaugeVec

	// Cache metrics
	CacheHitsTotal         *prometheus.CounterVec
	CacheMissesTotal       *prometheus.CounterVec
	CacheOperationsTotal   *prometheus.CounterVec
	CacheOperationDuration *prometheus.HistogramVec
	CacheEvictionsTotal    *prometheus.CounterVec
	CacheStaleServedTotal  *prometheus.CounterVec
	CacheSharedComputes    *prometheus.CounterVec
	CacheBackendErrors     *prometheus.CounterVec

	// Engagement store metrics
	StoreQueryDuration      *prometheus.HistogramVec
	StoreQueriesTotal       *prometheus.CounterVec
	DatabaseConnectionsOpen *prometheus.GaugeVec

	// Ranking metrics
	RankingDuration      *prometheus.HistogramVec
	RankingResultSize    *prometheus.HistogramVec
	RefreshRunsTotal     *prometheus.CounterVec
	RefreshLastCompleted prometheus.Gauge

	// Social engagement and invalidation
	MutationsTotal          *prometheus.CounterVec
	InvalidationEventsTotal *prometheus.CounterVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			// HTTP metrics
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPResponseSize: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_response_size_bytes",
					Help:    "HTTP response size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveConnections: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "http_active_connections",
					Help: "Number of currently active HTTP connections",
				},
				[]string{"method", "path"},
			),

			// Cache metrics
			CacheHitsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_hits_total",
					Help: "Total number of cache hits",
				},
				[]string{"cache_name"},
			),
			CacheMissesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_misses_total",
					Help: "Total number of cache misses",
				},
				[]string{"cache_name"},
			),
			CacheOperationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_operations_total",
					Help: "Total number of cache operations",
				},
				[]string{"operation", "cache_name"},
			),
			CacheOperationDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "cache_operation_duration_seconds",
					Help:    "Cache operation latency in seconds",
					Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
				},
				[]string{"operation", "cache_name"},
			),
			CacheEvictionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_evictions_total",
					Help: "Total number of keys removed by invalidation",
				},
				[]string{"cache_name"},
			),
			CacheStaleServedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_stale_served_total",
					Help: "Responses served from a stale copy while the store was unavailable",
				},
				[]string{"cache_name"},
			),
			CacheSharedComputes: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_shared_computes_total",
					Help: "Callers that waited on an in-flight computation instead of starting one",
				},
				[]string{"cache_name"},
			),
			CacheBackendErrors: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_backend_errors_total",
					Help: "Cache backend failures treated as misses",
				},
				[]string{"backend", "operation"},
			),

			// Engagement store metrics
			StoreQueryDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "store_query_duration_seconds",
					Help:    "Engagement store query latency in seconds",
					Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"operation"},
			),
			StoreQueriesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "store_queries_total",
					Help: "Total number of engagement store queries",
				},
				[]string{"operation", "status"},
			),
			DatabaseConnectionsOpen: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "database_connections_open",
					Help: "Number of currently open database connections",
				},
				[]string{"database"},
			),

			// Ranking metrics
			RankingDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "ranking_compute_duration_seconds",
					Help:    "Time to compute a ranked list on a cache miss",
					Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"kind"},
			),
			RankingResultSize: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "ranking_result_size",
					Help:    "Entities surviving thresholds per ranked list",
					Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
				},
				[]string{"kind"},
			),
			RefreshRunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "trending_refresh_runs_total",
					Help: "Trending warmup runs by outcome",
				},
				[]string{"status"},
			),
			RefreshLastCompleted: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "trending_refresh_last_completed_timestamp_seconds",
					Help: "Unix time of the last successful trending warmup",
				},
			),

			// Social engagement and invalidation
			MutationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "social_mutations_total",
					Help: "Content mutations by kind and whether they changed state",
				},
				[]string{"kind", "changed"},
			),
			InvalidationEventsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_invalidation_events_total",
					Help: "Invalidation events applied by trigger",
				},
				[]string{"trigger"},
			),

			// Error metrics
			ErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Total number of errors by type",
				},
				[]string{"error_type", "endpoint"},
			),
		}
	})
	return instance
}

// Get returns the global metrics instance
func Get() *Metrics {
	return Initialize()
}

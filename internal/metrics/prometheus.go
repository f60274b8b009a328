package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the data access core
type Metrics struct {
	// Query metrics
	QueriesTotal  *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Routing metrics
	ReplicaFallbacks  prometheus.Counter
	ScatterShardFails prometheus.Counter

	// Backend liveness, updated by health checks
	BackendUp *prometheus.GaugeVec
}

// NewMetrics creates and registers Prometheus metrics on the given
// registerer. Pass prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datacore_queries_total",
				Help: "Total number of queries executed, by backend role",
			},
			[]string{"role"},
		),

		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "datacore_query_duration_seconds",
				Help:    "Duration of backend queries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"role"},
		),

		QueryErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datacore_query_errors_total",
				Help: "Total number of failed queries, by backend role",
			},
			[]string{"role"},
		),

		CacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "datacore_cache_hits_total",
				Help: "Total number of cache hits",
			},
		),

		CacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "datacore_cache_misses_total",
				Help: "Total number of cache misses",
			},
		),

		ReplicaFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "datacore_replica_fallbacks_total",
				Help: "Total number of reads that fell back from a replica to the primary",
			},
		),

		ScatterShardFails: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "datacore_scatter_shard_failures_total",
				Help: "Total number of per-shard failures during scatter-gather",
			},
		),

		BackendUp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "datacore_backend_up",
				Help: "Whether the last liveness probe of a backend succeeded (1) or failed (0)",
			},
			[]string{"backend"},
		),
	}
}

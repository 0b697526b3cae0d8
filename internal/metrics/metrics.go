// Package metrics defines the Prometheus metrics for formtrack. A nil
// *Metrics is valid and records nothing, so components can take metrics as
// an optional dependency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the cache, source, and mutation instruments.
type Metrics struct {
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	CacheStaleServed *prometheus.CounterVec
	FetchErrors      *prometheus.CounterVec
	FetchDuration    *prometheus.HistogramVec
	Mutations        *prometheus.CounterVec
}

// New creates the metrics and registers them on reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics
// handler, or a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "formtrack_cache_hits_total",
			Help: "Table reads served from the freshness cache",
		}, []string{"table"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "formtrack_cache_misses_total",
			Help: "Table reads that went to the source because the entry was absent or expired",
		}, []string{"table"}),
		CacheStaleServed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "formtrack_cache_stale_served_total",
			Help: "Expired entries served because the source refetch failed",
		}, []string{"table"}),
		FetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "formtrack_cache_fetch_errors_total",
			Help: "Source fetches that failed",
		}, []string{"table"}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formtrack_source_fetch_duration_seconds",
			Help:    "Duration of full-table source fetches",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"table"}),
		Mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "formtrack_mutations_total",
			Help: "Status log mutations by operation and result",
		}, []string{"op", "result"}),
	}
}

// IncCacheHit records a cache hit for table.
func (m *Metrics) IncCacheHit(table string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(table).Inc()
}

// IncCacheMiss records a cache miss for table.
func (m *Metrics) IncCacheMiss(table string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(table).Inc()
}

// IncStaleServed records a stale entry served after a failed refetch.
func (m *Metrics) IncStaleServed(table string) {
	if m == nil {
		return
	}
	m.CacheStaleServed.WithLabelValues(table).Inc()
}

// IncFetchError records a failed source fetch.
func (m *Metrics) IncFetchError(table string) {
	if m == nil {
		return
	}
	m.FetchErrors.WithLabelValues(table).Inc()
}

// ObserveFetch records the duration of a source fetch.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveFetch(table string, start time.Time) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(table).Observe(time.Since(start).Seconds())
}

// IncMutation records a mutation outcome. result is the MutationResult
// string or "error".
func (m *Metrics) IncMutation(op, result string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(op, result).Inc()
}

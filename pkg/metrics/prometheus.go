// Package metrics provides Prometheus metrics for the arena rating service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the arena service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Vote Recorder
	votesRecorded  *prometheus.CounterVec
	votesRejected  *prometheus.CounterVec
	votesFailed    *prometheus.CounterVec
	voteConflicts  prometheus.Counter
	voteRetries    prometheus.Counter
	voteLatency    prometheus.Histogram
	ratingDelta    prometheus.Histogram
	duplicateVotes prometheus.Counter

	// Matchmaker and Leaderboard
	pairsServed        *prometheus.CounterVec
	pairsEmpty         *prometheus.CounterVec
	leaderboardQueries *prometheus.CounterVec
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	cacheErrors        prometheus.Counter

	// Store
	storeLatency  *prometheus.HistogramVec
	storeErrors   *prometheus.CounterVec
	profilesTotal prometheus.Gauge
	votesTotal    prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "arena",
		subsystem:        "rating",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.votesRecorded = m.counterVec("votes_recorded_total",
		"Total number of outcomes committed, by category", "category")
	m.votesRejected = m.counterVec("votes_rejected_total",
		"Total number of outcomes refused before any mutation, by reason", "reason")
	m.votesFailed = m.counterVec("votes_failed_total",
		"Total number of outcomes that failed at the store, by reason", "reason")
	m.voteConflicts = m.counter("vote_conflicts_total",
		"Total number of optimistic write conflicts observed by the recorder")
	m.voteRetries = m.counter("vote_retries_total",
		"Total number of recorder retries after a conflict")
	m.voteLatency = m.histogram("vote_latency_milliseconds",
		"End to end vote recording latency in milliseconds", m.histogramBuckets)
	// Delta is bounded by K, which defaults to 32.
	m.ratingDelta = m.histogram("rating_delta_points",
		"Absolute rating change applied to the winner per vote",
		[]float64{1, 2, 4, 8, 12, 16, 20, 24, 28, 32, 48, 64})
	m.duplicateVotes = m.counter("duplicate_submissions_total",
		"Total number of vote submissions dropped as duplicates")

	m.pairsServed = m.counterVec("pairs_served_total",
		"Total number of match pairs served, by category", "category")
	m.pairsEmpty = m.counterVec("pairs_empty_total",
		"Total number of pair requests with fewer than two eligible profiles", "category")
	m.leaderboardQueries = m.counterVec("leaderboard_queries_total",
		"Total number of leaderboard queries, by category", "category")
	m.cacheHits = m.counter("leaderboard_cache_hits_total", "Leaderboard cache hits")
	m.cacheMisses = m.counter("leaderboard_cache_misses_total", "Leaderboard cache misses")
	m.cacheErrors = m.counter("leaderboard_cache_errors_total", "Leaderboard cache errors (served from store)")

	m.storeLatency = m.histogramVec("store_latency_milliseconds",
		"Store operation latency in milliseconds", "op")
	m.storeErrors = m.counterVec("store_errors_total",
		"Store operation errors by operation and kind", "op", "kind")
	m.profilesTotal = m.gauge("profiles_total", "Number of profiles known to the store")
	m.votesTotal = m.gauge("votes_total", "Number of votes in the append-only log")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Total number of errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordVoteRecorded counts a committed outcome and the winner's rating delta.
func RecordVoteRecorded(category string, delta int) {
	globalManager.votesRecorded.WithLabelValues(category).Inc()
	if delta < 0 {
		delta = -delta
	}
	globalManager.ratingDelta.Observe(float64(delta))
}

// RecordVoteRejected counts an outcome refused by validation.
func RecordVoteRejected(reason string) {
	globalManager.votesRejected.WithLabelValues(reason).Inc()
}

// RecordVoteFailed counts an outcome that could not be committed.
func RecordVoteFailed(reason string) {
	globalManager.votesFailed.WithLabelValues(reason).Inc()
}

// RecordVoteConflict counts a version conflict on the conditional write.
func RecordVoteConflict() {
	globalManager.voteConflicts.Inc()
}

// RecordVoteRetry counts a retry of the read-compute-write cycle.
func RecordVoteRetry() {
	globalManager.voteRetries.Inc()
}

// RecordVoteLatency records vote latency in milliseconds.
func RecordVoteLatency(latencyMs float64) {
	globalManager.voteLatency.Observe(latencyMs)
}

// RecordDuplicateSubmission counts a submission dropped by the guard.
func RecordDuplicateSubmission() {
	globalManager.duplicateVotes.Inc()
}

// RecordPairServed counts a served pair.
func RecordPairServed(category string) {
	globalManager.pairsServed.WithLabelValues(category).Inc()
}

// RecordPairEmpty counts a pair request that had no eligible pair.
func RecordPairEmpty(category string) {
	globalManager.pairsEmpty.WithLabelValues(category).Inc()
}

// RecordLeaderboardQuery counts a leaderboard read.
func RecordLeaderboardQuery(category string) {
	globalManager.leaderboardQueries.WithLabelValues(category).Inc()
}

// RecordCacheHit counts a leaderboard cache hit.
func RecordCacheHit() { globalManager.cacheHits.Inc() }

// RecordCacheMiss counts a leaderboard cache miss.
func RecordCacheMiss() { globalManager.cacheMisses.Inc() }

// RecordCacheError counts a cache failure.
func RecordCacheError() { globalManager.cacheErrors.Inc() }

// RecordStoreLatency records store latency in milliseconds for one operation.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStoreError counts a store failure for one operation.
func RecordStoreError(op, kind string) {
	globalManager.storeErrors.WithLabelValues(op, kind).Inc()
}

// UpdateStoreTotals sets the profile and vote gauges.
func UpdateStoreTotals(profiles, votes int64) {
	globalManager.profilesTotal.Set(float64(profiles))
	globalManager.votesTotal.Set(float64(votes))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

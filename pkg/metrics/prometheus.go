// Package metrics provides Prometheus metrics for the churn batch pipeline.
//
// Every Record*/Update* function is fire-and-forget: recording a metric never
// fails and never blocks the caller.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	scoringBuckets   []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Job lifecycle
	jobsSubmitted prometheus.Counter
	jobsFinished  *prometheus.CounterVec
	jobsTracked   prometheus.Gauge
	jobsEvicted   prometheus.Counter
	jobDuration   prometheus.Histogram

	// Decoding
	recordsDecoded prometheus.Counter
	rowErrors      *prometheus.CounterVec

	// Batches and backpressure
	batchesDispatched prometheus.Counter
	batchesInFlight   prometheus.Gauge
	permitWait        prometheus.Histogram
	batchLatency      prometheus.Histogram
	batchRecords      *prometheus.CounterVec

	// Scoring
	scoringLatency prometheus.Histogram
	scoringErrors  *prometheus.CounterVec
	predictions    *prometheus.CounterVec
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheErrors    *prometheus.CounterVec

	// Persistence
	chunksWritten      prometheus.Counter
	recordsPersisted   prometheus.Counter
	persistenceErrors  prometheus.Counter
	persistenceLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors by component
	errorRateByComponent *prometheus.CounterVec

	// System
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
		namespace:        "churn",
		subsystem:        "batch",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		scoringBuckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.jobsSubmitted = m.counter("jobs_submitted_total", "Total number of batch jobs accepted")
	m.jobsFinished = m.counterVec("jobs_finished_total", "Total number of batch jobs that reached a terminal status", "status")
	m.jobsTracked = m.gauge("jobs_tracked", "Number of jobs currently held by the job registry")
	m.jobsEvicted = m.counter("jobs_evicted_total", "Total number of terminal jobs evicted by the retention sweep")
	m.jobDuration = m.histogram("job_duration_milliseconds", "Wall-clock duration of finished jobs", m.histogramBuckets)

	m.recordsDecoded = m.counter("records_decoded_total", "Total number of rows decoded into profiles")
	m.rowErrors = m.counterVec("row_errors_total", "Total number of rows skipped by the decoder", "reason")

	m.batchesDispatched = m.counter("batches_dispatched_total", "Total number of batches handed to the worker pool")
	m.batchesInFlight = m.gauge("batches_in_flight", "Batches currently holding a permit (queued, scoring or persisting)")
	m.permitWait = m.histogram("permit_wait_milliseconds", "Time the decoder spent blocked waiting for a batch permit", m.histogramBuckets)
	m.batchLatency = m.histogram("batch_latency_milliseconds", "Scoring plus persistence time per batch", m.histogramBuckets)
	m.batchRecords = m.counterVec("batch_records_total", "Records leaving the batch stage by outcome", "outcome")

	m.scoringLatency = m.histogram("scoring_latency_milliseconds", "Inference engine latency per record", m.scoringBuckets)
	m.scoringErrors = m.counterVec("scoring_errors_total", "Scoring failures by reason", "reason")
	m.predictions = m.counterVec("predictions_total", "Predictions produced by label", "label")
	m.cacheHits = m.counter("cache_hits_total", "Prediction cache hits")
	m.cacheMisses = m.counter("cache_misses_total", "Prediction cache misses")
	m.cacheErrors = m.counterVec("cache_errors_total", "Prediction cache failures (never surfaced to callers)", "op")

	m.chunksWritten = m.counter("chunks_written_total", "Bulk-insert chunks committed")
	m.recordsPersisted = m.counter("records_persisted_total", "Scored records committed to the store")
	m.persistenceErrors = m.counter("persistence_errors_total", "Bulk-insert chunks that failed")
	m.persistenceLatency = m.histogram("persistence_latency_milliseconds", "Latency of a single bulk-insert chunk", m.histogramBuckets)

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_request_duration_milliseconds"),
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: m.customLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Job lifecycle.

// RecordJobSubmitted increments the accepted jobs counter.
func RecordJobSubmitted() {
	if !globalManager.enabled {
		return
	}
	globalManager.jobsSubmitted.Inc()
}

// RecordJobFinished records a job reaching a terminal status.
func RecordJobFinished(status string, duration time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.jobsFinished.WithLabelValues(status).Inc()
	globalManager.jobDuration.Observe(float64(duration.Milliseconds()))
}

// UpdateJobsTracked sets the number of jobs held by the registry.
func UpdateJobsTracked(count int) {
	globalManager.jobsTracked.Set(float64(count))
}

// RecordJobsEvicted adds evicted jobs to the eviction counter.
func RecordJobsEvicted(count int) {
	globalManager.jobsEvicted.Add(float64(count))
}

// Decoding.

// RecordRecordDecoded increments the decoded records counter.
func RecordRecordDecoded() {
	globalManager.recordsDecoded.Inc()
}

// RecordRowError increments the skipped rows counter for reason.
func RecordRowError(reason string) {
	globalManager.rowErrors.WithLabelValues(reason).Inc()
}

// Batches.

// RecordBatchDispatched increments the dispatched batches counter.
func RecordBatchDispatched() {
	globalManager.batchesDispatched.Inc()
}

// UpdateBatchesInFlight sets the number of batches holding a permit.
func UpdateBatchesInFlight(count int) {
	globalManager.batchesInFlight.Set(float64(count))
}

// RecordPermitWait records how long the decoder waited for a permit.
func RecordPermitWait(latencyMs float64) {
	globalManager.permitWait.Observe(latencyMs)
}

// RecordBatchLatency records scoring plus persistence time of a batch.
func RecordBatchLatency(latencyMs float64) {
	globalManager.batchLatency.Observe(latencyMs)
}

// RecordBatchRecords adds records with the given outcome (persisted, dropped, failed).
func RecordBatchRecords(outcome string, count int) {
	if count <= 0 {
		return
	}
	globalManager.batchRecords.WithLabelValues(outcome).Add(float64(count))
}

// Scoring.

// RecordScoringLatency records engine latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordScoringError increments the scoring errors counter for reason.
func RecordScoringError(reason string) {
	globalManager.scoringErrors.WithLabelValues(reason).Inc()
}

// RecordPrediction increments the predictions counter for label.
func RecordPrediction(label string) {
	globalManager.predictions.WithLabelValues(label).Inc()
}

// RecordCacheHit increments the cache hits counter.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the cache misses counter.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// RecordCacheError counts a swallowed cache failure for op (get, put).
func RecordCacheError(op string) {
	globalManager.cacheErrors.WithLabelValues(op).Inc()
}

// Persistence.

// RecordChunkWritten records a committed chunk of n records.
func RecordChunkWritten(n int, latencyMs float64) {
	globalManager.chunksWritten.Inc()
	globalManager.recordsPersisted.Add(float64(n))
	globalManager.persistenceLatency.Observe(latencyMs)
}

// RecordPersistenceError increments the failed chunks counter.
func RecordPersistenceError() {
	globalManager.persistenceErrors.Inc()
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// System Performance Metrics Functions.

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

// Package metrics provides Prometheus metrics for the raid report service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the raid report service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ingestion metrics
	linesRead       prometheus.Counter
	linesSkipped    *prometheus.CounterVec
	eventsParsed    *prometheus.CounterVec
	raidRuns        *prometheus.CounterVec
	usageIntervals  prometheus.Counter
	ingestLatency   prometheus.Histogram
	reportsByStatus *prometheus.CounterVec
	reportDuplicate prometheus.Counter

	// Aggregation metrics
	aggregateLatency prometheus.Histogram
	reportWarnings   prometheus.Counter
	standingsPlayers prometheus.Gauge
	standingsQuery   prometheus.Histogram

	// Queue metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueue       prometheus.Counter
	queueDequeue       prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker metrics
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
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
		namespace:        "raidep",
		subsystem:        "reports",
		histogramBuckets: prometheus.DefBuckets,
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
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() {
	m.linesRead = m.counter("log_lines_read_total", "Total number of combat log lines read")
	m.linesSkipped = m.counterVec("log_lines_skipped_total", "Combat log lines skipped by reason", "reason")
	m.eventsParsed = m.counterVec("events_parsed_total", "Parsed combat log events by kind", "kind")
	m.raidRuns = m.counterVec("raid_runs_total", "Raid runs closed by outcome", "outcome")
	m.usageIntervals = m.counter("usage_intervals_total", "Total number of consumable usage intervals recorded")
	m.ingestLatency = m.histogram("ingest_latency_milliseconds", "Time to ingest one combat log in milliseconds")
	m.reportsByStatus = m.counterVec("reports_total", "Reports by final ingestion status", "status")
	m.reportDuplicate = m.counter("reports_duplicate_total", "Submissions rejected as duplicate logs")

	m.aggregateLatency = m.histogram("aggregate_latency_milliseconds", "Time to score and aggregate one report in milliseconds")
	m.reportWarnings = m.counter("report_warnings_total", "Warnings produced while aggregating reports")
	m.standingsPlayers = m.gauge("standings_players", "Players present in the flushed standings")
	m.standingsQuery = m.histogram("standings_query_latency_milliseconds", "Standings rank lookup latency in milliseconds")

	m.queueSize = m.gauge("queue_size", "Current number of pending ingestion jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of pending ingestion jobs")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Total number of ingestion jobs enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Total number of ingestion jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of rejected enqueue attempts")

	m.workerCount = m.gauge("worker_count", "Current number of running ingestion workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker job latency in milliseconds")
	m.workerErrors = m.counter("worker_errors_total", "Total number of failed ingestion jobs")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component",
		"component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// Ingestion.

// RecordLineRead increments the lines read counter.
func RecordLineRead() { globalManager.linesRead.Inc() }

// RecordLineSkipped counts a line dropped for reason.
func RecordLineSkipped(reason string) { globalManager.linesSkipped.WithLabelValues(reason).Inc() }

// RecordEventParsed counts a parsed event of the given kind.
func RecordEventParsed(kind string) { globalManager.eventsParsed.WithLabelValues(kind).Inc() }

// RecordRaidRun counts a closed raid run; outcome is "kept" or "discarded".
func RecordRaidRun(outcome string) { globalManager.raidRuns.WithLabelValues(outcome).Inc() }

// RecordUsageIntervals adds n recorded usage intervals.
func RecordUsageIntervals(n int) { globalManager.usageIntervals.Add(float64(n)) }

// RecordIngestLatency records the ingest latency in milliseconds.
func RecordIngestLatency(latencyMs float64) { globalManager.ingestLatency.Observe(latencyMs) }

// RecordReportStatus counts a report reaching status.
func RecordReportStatus(status string) { globalManager.reportsByStatus.WithLabelValues(status).Inc() }

// RecordReportDuplicate counts a duplicate submission.
func RecordReportDuplicate() { globalManager.reportDuplicate.Inc() }

// Aggregation.

// RecordAggregateLatency records the aggregation latency in milliseconds.
func RecordAggregateLatency(latencyMs float64) { globalManager.aggregateLatency.Observe(latencyMs) }

// RecordReportWarnings adds n aggregation warnings.
func RecordReportWarnings(n int) { globalManager.reportWarnings.Add(float64(n)) }

// UpdateStandingsPlayers sets the number of players in the standings.
func UpdateStandingsPlayers(count int) { globalManager.standingsPlayers.Set(float64(count)) }

// RecordStandingsQueryLatency records a standings lookup latency in milliseconds.
func RecordStandingsQueryLatency(latencyMs float64) { globalManager.standingsQuery.Observe(latencyMs) }

// Queue.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueue.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeue.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// Workers.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

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
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

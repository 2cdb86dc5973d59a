// Package metrics provides Prometheus metrics for the farmwatch alert service.
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

// Score distributions live in [0, 1]; certainty in [0.6, 0.99].
var (
	riskScoreBuckets = prometheus.LinearBuckets(0.1, 0.1, 10)           //nolint:gochecknoglobals // fixed bucket layout
	certaintyBuckets = []float64{0.6, 0.65, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 0.99} //nolint:gochecknoglobals // fixed bucket layout
	latencyBucketsMs = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 15000} //nolint:gochecknoglobals // fixed bucket layout
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Assessment Metrics
	assessmentsTotal  prometheus.Counter
	assessmentErrors  prometheus.Counter
	alertDecisions    *prometheus.CounterVec
	riskScore         prometheus.Histogram
	certainty         prometheus.Histogram
	certaintySources  *prometheus.CounterVec
	assessmentLatency prometheus.Histogram

	// Reasoner Metrics - remote certainty service
	reasonerLatency  prometheus.Histogram
	reasonerFailures *prometheus.CounterVec

	// Notification Metrics - SMS webhook delivery
	smsSent     prometheus.Counter
	smsFailures *prometheus.CounterVec
	smsLatency  prometheus.Histogram

	// Queue Metrics
	queueCapacity    prometheus.Gauge
	queueSize        prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueue     prometheus.Counter
	queueDequeue     prometheus.Counter
	queueRejects     *prometheus.CounterVec

	// Worker Metrics
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByType     *prometheus.CounterVec
	errorRateByEndpoint *prometheus.CounterVec
	errorLatency        *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "farmwatch",
		subsystem:        "alerts",
		histogramBuckets: latencyBucketsMs,
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

// name applies the optional metric prefix.
func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	counter := func(n, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: labels,
		})
	}
	counterVec := func(n, help string, l ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: labels,
		}, l)
	}
	gauge := func(n, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: labels,
		})
	}
	histogram := func(n, help string, buckets []float64) prometheus.Histogram {
		return auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: labels, Buckets: buckets,
		})
	}

	// Assessment Metrics
	m.assessmentsTotal = counter("assessments_total", "Total number of risk assessments computed")
	m.assessmentErrors = counter("assessment_errors_total", "Total number of assessments that failed internally")
	m.alertDecisions = counterVec("alert_decisions_total", "Alert gate outcomes", "decision")
	m.riskScore = histogram("risk_score", "Distribution of computed risk scores", riskScoreBuckets)
	m.certainty = histogram("certainty", "Distribution of certainty values", certaintyBuckets)
	m.certaintySources = counterVec("certainty_source_total", "Certainty values by producing path", "source")
	m.assessmentLatency = histogram("assessment_latency_milliseconds", "End-to-end assessment latency in milliseconds", m.histogramBuckets)

	// Reasoner Metrics
	m.reasonerLatency = histogram("reasoner_latency_milliseconds", "Remote reasoner call latency in milliseconds", m.histogramBuckets)
	m.reasonerFailures = counterVec("reasoner_failures_total", "Remote reasoner failures that fell back to the local estimator", "reason")

	// Notification Metrics
	m.smsSent = counter("sms_sent_total", "SMS alerts accepted by the webhook")
	m.smsFailures = counterVec("sms_failures_total", "SMS alerts that failed delivery", "reason")
	m.smsLatency = histogram("sms_latency_milliseconds", "SMS webhook call latency in milliseconds", m.histogramBuckets)

	// Queue Metrics
	m.queueCapacity = gauge("queue_capacity", "Maximum capacity of the notification queue")
	m.queueSize = gauge("queue_size", "Current number of queued notifications")
	m.queueUtilization = gauge("queue_utilization_ratio", "Notification queue utilization (size / capacity)")
	m.queueEnqueue = counter("queue_enqueue_total", "Notifications accepted by the queue")
	m.queueDequeue = counter("queue_dequeue_total", "Notifications handed to workers")
	m.queueRejects = counterVec("queue_rejects_total", "Notifications rejected by the queue", "reason")

	// Worker Metrics
	m.workerCount = gauge("worker_count", "Number of notification workers")
	m.workerProcessingLatency = histogram("worker_processing_latency_milliseconds", "Per-notification worker latency in milliseconds", m.histogramBuckets)
	m.workerErrors = counter("worker_errors_total", "Notifications a worker could not deliver")

	// HTTP Performance Metrics
	m.httpRequests = counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("http_request_duration_milliseconds"),
		Help: "HTTP request duration in milliseconds", ConstLabels: labels, Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorRateByType = counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = counterVec("errors_by_endpoint_total", "Errors by endpoint, method and type", "endpoint", "method", "error_type")
	m.errorLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("error_latency_milliseconds"),
		Help: "Latency of operations that ended in an error", ConstLabels: labels, Buckets: m.histogramBuckets,
	}, []string{"component", "error_type"})

	// System Performance Metrics
	m.systemMemoryUsage = gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = histogram("system_gc_pause_milliseconds", "Average GC pause time in milliseconds", prometheus.DefBuckets)
}

// Assessment Metrics Functions.

// RecordAssessment records one completed assessment.
func RecordAssessment(riskScore, certainty float64, source string, alert bool, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.assessmentsTotal.Inc()
	globalManager.riskScore.Observe(riskScore)
	globalManager.certainty.Observe(certainty)
	globalManager.certaintySources.WithLabelValues(source).Inc()
	globalManager.assessmentLatency.Observe(latencyMs)
	decision := "no_alert"
	if alert {
		decision = "alert"
	}
	globalManager.alertDecisions.WithLabelValues(decision).Inc()
}

// RecordAssessmentError increments the internal assessment failure counter.
func RecordAssessmentError() {
	globalManager.assessmentErrors.Inc()
}

// Reasoner Metrics Functions.

// RecordReasonerLatency records the latency of one remote reasoner call.
func RecordReasonerLatency(latencyMs float64) {
	globalManager.reasonerLatency.Observe(latencyMs)
}

// RecordReasonerFailure counts a remote failure by reason.
func RecordReasonerFailure(reason string) {
	globalManager.reasonerFailures.WithLabelValues(reason).Inc()
}

// Notification Metrics Functions.

// RecordSMSSent counts a delivered SMS.
func RecordSMSSent() {
	globalManager.smsSent.Inc()
}

// RecordSMSFailure counts a failed SMS by reason.
func RecordSMSFailure(reason string) {
	globalManager.smsFailures.WithLabelValues(reason).Inc()
}

// RecordSMSLatency records the webhook call latency.
func RecordSMSLatency(latencyMs float64) {
	globalManager.smsLatency.Observe(latencyMs)
}

// Queue Metrics Functions.

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the current queue size and derived utilization.
func UpdateQueueSize(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeue.Inc()
}

// RecordQueueReject counts an enqueue rejection by reason.
func RecordQueueReject(reason string) {
	globalManager.queueRejects.WithLabelValues(reason).Inc()
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
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

// RefreshInterval returns how often gauges should be refreshed by pollers.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

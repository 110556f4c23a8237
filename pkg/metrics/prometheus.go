// Package metrics provides Prometheus metrics for the readcoach service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// scoreBuckets covers the 0..100 aggregate score range.
var scoreBuckets = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100} //nolint:gochecknoglobals // fixed bucket layout

// Manager manages all Prometheus metrics for the readcoach service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Practice sessions
	sessionsStarted   prometheus.Counter
	sessionsFinished  prometheus.Counter
	activeSessions    prometheus.Gauge
	slotsUnanswered   prometheus.Counter
	answersAssessed   *prometheus.CounterVec
	assessmentScore   prometheus.Histogram
	generationErrors  *prometheus.CounterVec
	transcriptionErrs prometheus.Counter

	// Vocabulary
	vocabularyAdded    prometheus.Counter
	vocabularyReviewed *prometheus.CounterVec
	vocabularyDue      prometheus.Gauge
	reminderRuns       prometheus.Counter

	// Accounts
	usersRegistered prometheus.Counter
	loginFailures   prometheus.Counter

	// Store
	storeLatency *prometheus.HistogramVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorRateByComponent *prometheus.CounterVec

	// System Performance Metrics
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

// Configure rebuilds the global manager on a fresh registry with opts applied.
// Call it once at startup, before metrics are recorded or GetRegistry is read.
func Configure(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(customRegistry)}, opts...)...)
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "readcoach",
		subsystem:        "practice",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
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

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.sessionsStarted = m.counter("sessions_started_total", "Total number of practice sessions started")
	m.sessionsFinished = m.counter("sessions_finished_total", "Total number of practice sessions persisted")
	m.activeSessions = m.gauge("sessions_active", "Number of sessions currently held in memory")
	m.slotsUnanswered = m.counter("slots_unanswered_total", "Question slots persisted without an answer")
	m.answersAssessed = m.counterVec("answers_assessed_total", "Answers assessed, by band", "band")
	m.assessmentScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "assessment_aggregate_score",
		Help:        "Distribution of aggregate assessment scores",
		Buckets:     scoreBuckets,
		ConstLabels: m.constLabels,
	})
	m.generationErrors = m.counterVec("generation_errors_total", "Generation service failures, by operation", "operation")
	m.transcriptionErrs = m.counter("transcription_errors_total", "Transcription service failures")

	m.vocabularyAdded = m.counter("vocabulary_added_total", "Vocabulary entries added or re-encountered")
	m.vocabularyReviewed = m.counterVec("vocabulary_reviewed_total", "Vocabulary reviews, by outcome", "outcome")
	m.vocabularyDue = m.gauge("vocabulary_due", "Vocabulary entries due for review at the last reminder run")
	m.reminderRuns = m.counter("reminder_runs_total", "Completed due-review reminder runs")

	m.usersRegistered = m.counter("users_registered_total", "Users registered")
	m.loginFailures = m.counter("login_failures_total", "Rejected login attempts")

	m.storeLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "store_latency_milliseconds",
			Help:        "Document store operation latency in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: m.constLabels,
		},
		[]string{"operation"},
	)

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_request_duration_milliseconds",
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: m.constLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component",
		"component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordSessionStarted increments the sessions started counter.
func RecordSessionStarted() {
	globalManager.sessionsStarted.Inc()
}

// RecordSessionFinished counts a persisted session and its unanswered slots.
func RecordSessionFinished(unanswered int) {
	globalManager.sessionsFinished.Inc()
	globalManager.slotsUnanswered.Add(float64(unanswered))
}

// UpdateActiveSessions sets the number of in-memory sessions.
func UpdateActiveSessions(count int) {
	globalManager.activeSessions.Set(float64(count))
}

// RecordAnswerAssessed records one scored answer.
func RecordAnswerAssessed(band string, aggregate int) {
	globalManager.answersAssessed.WithLabelValues(band).Inc()
	globalManager.assessmentScore.Observe(float64(aggregate))
}

// RecordGenerationError increments generation failures for operation.
func RecordGenerationError(operation string) {
	globalManager.generationErrors.WithLabelValues(operation).Inc()
}

// RecordTranscriptionError increments the transcription failures counter.
func RecordTranscriptionError() {
	globalManager.transcriptionErrs.Inc()
}

// RecordVocabularyAdded increments the vocabulary added counter.
func RecordVocabularyAdded() {
	globalManager.vocabularyAdded.Inc()
}

// RecordVocabularyReviewed counts a review by outcome.
func RecordVocabularyReviewed(outcome string) {
	globalManager.vocabularyReviewed.WithLabelValues(outcome).Inc()
}

// UpdateVocabularyDue sets the number of due entries across users.
func UpdateVocabularyDue(count int) {
	globalManager.vocabularyDue.Set(float64(count))
}

// RecordReminderRun increments the reminder runs counter.
func RecordReminderRun() {
	globalManager.reminderRuns.Inc()
}

// RecordUserRegistered increments the registrations counter.
func RecordUserRegistered() {
	globalManager.usersRegistered.Inc()
}

// RecordLoginFailure increments the login failures counter.
func RecordLoginFailure() {
	globalManager.loginFailures.Inc()
}

// RecordStoreLatency records a store operation latency in milliseconds.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

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

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

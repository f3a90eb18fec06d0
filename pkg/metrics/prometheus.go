// Package metrics provides Prometheus metrics for the Unravel game backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// latencyBuckets are in milliseconds; ranking reads are expected well under 50ms.
var latencyBuckets = []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Write path
	runsSubmitted *prometheus.CounterVec
	runsRejected  *prometheus.CounterVec
	runsDuplicate prometheus.Counter

	// Ranking engines
	rankingRequests *prometheus.CounterVec
	rankingLatency  *prometheus.HistogramVec
	rankingPlayers  *prometheus.GaugeVec

	// Store
	storeQueryLatency *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec

	// Identity and sandbox
	authEvents         *prometheus.CounterVec
	sandboxValidations *prometheus.CounterVec
	dedupeEntries      prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by package-level recorders

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "unravel",
		subsystem:        "game",
		histogramBuckets: latencyBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
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

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
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

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.runsSubmitted = m.counterVec("runs_submitted_total", "Run records appended, by difficulty", "difficulty")
	m.runsRejected = m.counterVec("runs_rejected_total", "Run submissions rejected, by reason", "reason")
	m.runsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "runs_duplicate_total",
		Help:        "Run submissions skipped because their submission id was already seen",
		ConstLabels: m.constLabels,
	})

	m.rankingRequests = m.counterVec("ranking_requests_total", "Ranking computations by kind and outcome", "kind", "outcome")
	m.rankingLatency = m.histogramVec("ranking_latency_milliseconds", "Ranking computation latency in milliseconds", "kind")
	m.rankingPlayers = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "ranking_players",
		Help:        "Players in the most recently computed ranking, by kind and difficulty",
		ConstLabels: m.constLabels,
	}, []string{"kind", "difficulty"})

	m.storeQueryLatency = m.histogramVec("store_query_latency_milliseconds", "Store operation latency in milliseconds", "driver", "operation")
	m.storeErrors = m.counterVec("store_errors_total", "Store operations that failed", "driver", "operation")

	m.authEvents = m.counterVec("auth_events_total", "Identity provider events by outcome", "event", "outcome")
	m.sandboxValidations = m.counterVec("sandbox_validations_total", "SQL sandbox validations by mode and outcome", "mode", "outcome")
	m.dedupeEntries = m.gauge("dedupe_entries", "Submission ids currently held by the deduper")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds", "Latency of operations that resulted in errors", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_gc_pause_time_milliseconds",
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: m.constLabels,
	})
}

// RecordRunSubmitted counts an appended run record.
func RecordRunSubmitted(difficulty string) {
	globalManager.runsSubmitted.WithLabelValues(difficulty).Inc()
}

// RecordRunRejected counts a rejected submission (validation, forbidden, store).
func RecordRunRejected(reason string) {
	globalManager.runsRejected.WithLabelValues(reason).Inc()
}

// RecordRunDuplicate counts a submission skipped by the deduper.
func RecordRunDuplicate() {
	globalManager.runsDuplicate.Inc()
}

// RecordRanking records one ranking computation. kind is "level" or "global".
func RecordRanking(kind, outcome string, latencyMs float64) {
	globalManager.rankingRequests.WithLabelValues(kind, outcome).Inc()
	globalManager.rankingLatency.WithLabelValues(kind).Observe(latencyMs)
}

// UpdateRankingPlayers sets the player count of the last computed ranking.
func UpdateRankingPlayers(kind, difficulty string, players int) {
	globalManager.rankingPlayers.WithLabelValues(kind, difficulty).Set(float64(players))
}

// RecordStoreQuery records a store operation latency and, when failed, an error.
func RecordStoreQuery(driver, operation string, latencyMs float64, failed bool) {
	globalManager.storeQueryLatency.WithLabelValues(driver, operation).Observe(latencyMs)
	if failed {
		globalManager.storeErrors.WithLabelValues(driver, operation).Inc()
	}
}

// RecordAuthEvent counts register/login/logout/refresh/authenticate outcomes.
func RecordAuthEvent(event, outcome string) {
	globalManager.authEvents.WithLabelValues(event, outcome).Inc()
}

// RecordSandboxValidation counts a sandbox validation. mode is "pattern" or "query".
func RecordSandboxValidation(mode, outcome string) {
	globalManager.sandboxValidations.WithLabelValues(mode, outcome).Inc()
}

// UpdateDedupeEntries sets the number of submission ids held by the deduper.
func UpdateDedupeEntries(n int64) {
	globalManager.dedupeEntries.Set(float64(n))
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

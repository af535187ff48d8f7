// Package metrics provides Prometheus metrics for the allocation engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus metrics for the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Allocation pipeline
	proposalsComputed   prometheus.Counter
	proposalConfidence  prometheus.Histogram
	concentrationFlags  prometheus.Counter
	allocationsExecuted prometheus.Counter
	allocationVolume    prometheus.Counter
	commitSkips         prometheus.Counter
	commitLatency       prometheus.Histogram

	// Council lifecycle
	councilsConvened    prometheus.Counter
	councilsSynthesized prometheus.Counter
	councilsExpired     prometheus.Counter
	councilsOpen        prometheus.Gauge
	insightsReceived    prometheus.Counter
	councilDuration     prometheus.Histogram

	// Intake queue
	intakeEnqueued    prometheus.Counter
	intakeDequeued    prometheus.Counter
	intakeDropped     prometheus.Counter
	intakeQueueSize   prometheus.Gauge
	intakeUtilization prometheus.Gauge

	// Trust and audit
	trustDenials prometheus.Counter
	auditEntries prometheus.Counter

	// Participants
	activeDonors prometheus.Gauge
	activeCauses prometheus.Gauge

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Component error tracking
	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid the default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rc",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // metric registration is one long block
	auto := promauto.With(m.registry)

	m.proposalsComputed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "proposals_computed_total",
		Help:      "Total number of allocation proposals computed",
	})

	m.proposalConfidence = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "proposal_confidence",
		Help:      "Confidence score distribution of computed proposals",
		Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	})

	m.concentrationFlags = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "concentration_flags_total",
		Help:      "Total number of proposals flagged for concentration risk",
	})

	m.allocationsExecuted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "allocations_executed_total",
		Help:      "Total number of donor-to-cause transfers committed",
	})

	m.allocationVolume = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "allocation_volume_total",
		Help:      "Total volume of tokens moved by committed allocations",
	})

	m.commitSkips = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "commit_skips_total",
		Help:      "Total allocation cells skipped at commit (entity gone or capped to zero)",
	})

	m.commitLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "commit_latency_milliseconds",
		Help:      "Latency of commit batches in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.councilsConvened = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "councils_convened_total",
		Help:      "Total number of council sessions opened",
	})

	m.councilsSynthesized = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "councils_synthesized_total",
		Help:      "Total number of council sessions that reached quorum and blended",
	})

	m.councilsExpired = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "councils_expired_total",
		Help:      "Total number of council sessions that hit their deadline",
	})

	m.councilsOpen = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "councils_open",
		Help:      "Number of council sessions currently awaiting insights",
	})

	m.insightsReceived = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "insights_received_total",
		Help:      "Total number of advisor insights accepted into sessions",
	})

	m.councilDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "council_duration_milliseconds",
		Help:      "Time from council convened to synthesis or expiry",
		Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000, 30000, 60000},
	})

	m.intakeEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "intake_enqueued_total",
		Help:      "Total messages accepted by the intake queue",
	})

	m.intakeDequeued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "intake_dequeued_total",
		Help:      "Total messages consumed from the intake queue",
	})

	m.intakeDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "intake_dropped_total",
		Help:      "Total messages rejected by the intake queue (backpressure or closed)",
	})

	m.intakeQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "intake_queue_size",
		Help:      "Current depth of the intake queue",
	})

	m.intakeUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "intake_queue_utilization",
		Help:      "Intake queue depth as a fraction of capacity",
	})

	m.trustDenials = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "trust_denials_total",
		Help:      "Total whispers rejected by trust gating",
	})

	m.auditEntries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "audit_entries_total",
		Help:      "Total entries appended to the audit log",
	})

	m.activeDonors = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_donors",
		Help:      "Number of donor profiles currently tracked",
	})

	m.activeCauses = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_causes",
		Help:      "Number of cause profiles currently tracked",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_total",
			Help:      "Errors by component and error type",
		},
		[]string{"component", "error_type"},
	)
}

// RecordProposalComputed increments the proposal counter and observes confidence.
func RecordProposalComputed(confidence float64) {
	globalManager.proposalsComputed.Inc()
	globalManager.proposalConfidence.Observe(confidence)
}

// RecordConcentrationFlag increments the concentration-risk counter.
func RecordConcentrationFlag() {
	globalManager.concentrationFlags.Inc()
}

// RecordAllocationExecuted records one committed transfer and its volume.
func RecordAllocationExecuted(amount float64) {
	globalManager.allocationsExecuted.Inc()
	globalManager.allocationVolume.Add(amount)
}

// RecordCommitSkip increments the commit-skip counter.
func RecordCommitSkip() {
	globalManager.commitSkips.Inc()
}

// RecordCommitLatency records commit batch latency in milliseconds.
func RecordCommitLatency(latencyMs float64) {
	globalManager.commitLatency.Observe(latencyMs)
}

// RecordCouncilConvened increments convened councils and the open gauge.
func RecordCouncilConvened() {
	globalManager.councilsConvened.Inc()
	globalManager.councilsOpen.Inc()
}

// RecordCouncilSynthesized marks a session closed by synthesis.
func RecordCouncilSynthesized(durationMs float64) {
	globalManager.councilsSynthesized.Inc()
	globalManager.councilsOpen.Dec()
	globalManager.councilDuration.Observe(durationMs)
}

// RecordCouncilExpired marks a session closed by deadline.
func RecordCouncilExpired(durationMs float64) {
	globalManager.councilsExpired.Inc()
	globalManager.councilsOpen.Dec()
	globalManager.councilDuration.Observe(durationMs)
}

// RecordInsightReceived increments the accepted-insight counter.
func RecordInsightReceived() {
	globalManager.insightsReceived.Inc()
}

// RecordIntakeEnqueue increments the intake enqueue counter.
func RecordIntakeEnqueue() {
	globalManager.intakeEnqueued.Inc()
}

// RecordIntakeDequeue increments the intake dequeue counter.
func RecordIntakeDequeue() {
	globalManager.intakeDequeued.Inc()
}

// RecordIntakeDrop increments the intake drop counter.
func RecordIntakeDrop() {
	globalManager.intakeDropped.Inc()
}

// UpdateIntakeQueueSize sets the intake queue depth and utilization.
func UpdateIntakeQueueSize(size, capacity int) {
	globalManager.intakeQueueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.intakeUtilization.Set(float64(size) / float64(capacity))
	}
}

// RecordTrustDenial increments the trust denial counter.
func RecordTrustDenial() {
	globalManager.trustDenials.Inc()
}

// RecordAuditEntry increments the audit entry counter.
func RecordAuditEntry() {
	globalManager.auditEntries.Inc()
}

// UpdateActiveDonors sets the tracked donor gauge.
func UpdateActiveDonors(count int) {
	globalManager.activeDonors.Set(float64(count))
}

// UpdateActiveCauses sets the tracked cause gauge.
func UpdateActiveCauses(count int) {
	globalManager.activeCauses.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by the engine.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

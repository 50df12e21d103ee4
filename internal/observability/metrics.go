package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the citation graph service.
// Metrics are organized by subsystem: extractions, sources, citations, jobs,
// and LLM operations. All counters and histograms are registered via promauto
// for automatic registration with the default Prometheus registry.
type Metrics struct {
	// ExtractionsStarted counts citation extraction runs initiated.
	ExtractionsStarted prometheus.Counter

	// ExtractionsCompleted counts extraction runs that finished successfully.
	ExtractionsCompleted prometheus.Counter

	// ExtractionsFailed counts extraction runs that ended in failure.
	ExtractionsFailed prometheus.Counter

	// ExtractionDuration observes the end-to-end duration of extraction runs in seconds.
	ExtractionDuration prometheus.Histogram

	// ReferencesPerExtraction observes the distribution of merged references per run.
	ReferencesPerExtraction prometheus.Histogram

	// SourceRequestsTotal counts HTTP requests to reference source APIs, labeled by source and endpoint.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed HTTP requests to reference source APIs, labeled by source, endpoint, and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes HTTP request duration to reference source APIs in seconds.
	SourceRequestDuration *prometheus.HistogramVec

	// SourceRateLimited counts rate-limited responses from reference source APIs, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// ReferencesBySource counts raw references returned, labeled by source.
	ReferencesBySource *prometheus.CounterVec

	// CitationsUpserted counts citation rows written, labeled by status.
	CitationsUpserted *prometheus.CounterVec

	// CitationsResolved counts citations linked to a catalog paper, labeled by
	// match kind (doi, fuzzy, manual).
	CitationsResolved *prometheus.CounterVec

	// JobsSubmitted counts jobs accepted into the queue, labeled by type.
	JobsSubmitted *prometheus.CounterVec

	// JobsCompleted counts jobs that reached completed, labeled by type.
	JobsCompleted *prometheus.CounterVec

	// JobsFailed counts jobs that reached failed, labeled by type.
	JobsFailed *prometheus.CounterVec

	// JobsRejected counts submissions rejected because a job was already active, labeled by type.
	JobsRejected *prometheus.CounterVec

	// JobDuration observes job run duration in seconds, labeled by type.
	JobDuration *prometheus.HistogramVec

	// JobQueueDepth tracks the number of jobs waiting for a worker.
	JobQueueDepth prometheus.Gauge

	// LLMRequestsTotal counts LLM API requests, labeled by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by operation, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds, labeled by operation and model.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed counts tokens consumed by LLM operations, labeled by operation, model, and token type.
	LLMTokensUsed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Extractions
		ExtractionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_started_total",
			Help:      "Total number of citation extraction runs started",
		}),
		ExtractionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_completed_total",
			Help:      "Total number of citation extraction runs completed successfully",
		}),
		ExtractionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_failed_total",
			Help:      "Total number of citation extraction runs that failed",
		}),
		ExtractionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Duration of citation extraction runs in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		ReferencesPerExtraction: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "references_per_extraction",
			Help:      "Number of merged references per extraction run",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200, 500},
		}),

		// Sources
		SourceRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of requests to reference sources",
		}, []string{"source", "endpoint"}),
		SourceRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed requests to reference sources",
		}, []string{"source", "endpoint", "error_type"}),
		SourceRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of requests to reference sources in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source", "endpoint"}),
		SourceRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate limit responses from reference sources",
		}, []string{"source"}),
		ReferencesBySource: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "references_by_source_total",
			Help:      "Total number of raw references returned by source",
		}, []string{"source"}),

		// Citations
		CitationsUpserted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "citations_upserted_total",
			Help:      "Total number of citation rows written by status",
		}, []string{"status"}),
		CitationsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "citations_resolved_total",
			Help:      "Total number of citations linked to catalog papers by match kind",
		}, []string{"match"}),

		// Jobs
		JobsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Total number of jobs accepted by type",
		}, []string{"type"}),
		JobsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Total number of jobs completed by type",
		}, []string{"type"}),
		JobsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failed_total",
			Help:      "Total number of jobs failed by type",
		}, []string{"type"}),
		JobsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_rejected_total",
			Help:      "Total number of job submissions rejected as duplicates by type",
		}, []string{"type"}),
		JobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of job runs in seconds by type",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"type"}),
		JobQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_queue_depth",
			Help:      "Number of jobs waiting for a worker",
		}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests by operation",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM requests by operation",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"operation", "model"}),
		LLMTokensUsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used by LLM operations",
		}, []string{"operation", "model", "token_type"}),
	}
}

// RecordExtractionStarted records that an extraction run has started.
func (m *Metrics) RecordExtractionStarted() {
	m.ExtractionsStarted.Inc()
}

// RecordExtractionCompleted records a successful extraction run.
func (m *Metrics) RecordExtractionCompleted(referenceCount int, durationSeconds float64) {
	m.ExtractionsCompleted.Inc()
	m.ExtractionDuration.Observe(durationSeconds)
	m.ReferencesPerExtraction.Observe(float64(referenceCount))
}

// RecordExtractionFailed records a failed extraction run.
func (m *Metrics) RecordExtractionFailed(durationSeconds float64) {
	m.ExtractionsFailed.Inc()
	m.ExtractionDuration.Observe(durationSeconds)
}

// RecordSourceRequest records a request to a reference source API.
func (m *Metrics) RecordSourceRequest(source, endpoint string, durationSeconds float64) {
	m.SourceRequestsTotal.WithLabelValues(source, endpoint).Inc()
	m.SourceRequestDuration.WithLabelValues(source, endpoint).Observe(durationSeconds)
}

// RecordSourceRequestFailed records a failed request to a reference source API.
func (m *Metrics) RecordSourceRequestFailed(source, endpoint, errorType string) {
	m.SourceRequestsFailed.WithLabelValues(source, endpoint, errorType).Inc()
}

// RecordSourceRateLimited records a rate limit response from a source.
func (m *Metrics) RecordSourceRateLimited(source string) {
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

// RecordReferences records raw references returned by a source.
func (m *Metrics) RecordReferences(source string, count int) {
	m.ReferencesBySource.WithLabelValues(source).Add(float64(count))
}

// RecordCitationUpserted records a citation row write.
func (m *Metrics) RecordCitationUpserted(status string) {
	m.CitationsUpserted.WithLabelValues(status).Inc()
}

// RecordCitationResolved records a citation linked to a catalog paper.
func (m *Metrics) RecordCitationResolved(match string) {
	m.CitationsResolved.WithLabelValues(match).Inc()
}

// RecordJobSubmitted records a job accepted into the queue.
func (m *Metrics) RecordJobSubmitted(jobType string) {
	m.JobsSubmitted.WithLabelValues(jobType).Inc()
}

// RecordJobCompleted records a completed job.
func (m *Metrics) RecordJobCompleted(jobType string, durationSeconds float64) {
	m.JobsCompleted.WithLabelValues(jobType).Inc()
	m.JobDuration.WithLabelValues(jobType).Observe(durationSeconds)
}

// RecordJobFailed records a failed job.
func (m *Metrics) RecordJobFailed(jobType string, durationSeconds float64) {
	m.JobsFailed.WithLabelValues(jobType).Inc()
	m.JobDuration.WithLabelValues(jobType).Observe(durationSeconds)
}

// RecordJobRejected records a submission rejected as a duplicate.
func (m *Metrics) RecordJobRejected(jobType string) {
	m.JobsRejected.WithLabelValues(jobType).Inc()
}

// RecordLLMRequest records a successful LLM request with token usage.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64, inputTokens, outputTokens int) {
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(durationSeconds)
	m.LLMTokensUsed.WithLabelValues(operation, model, "input").Add(float64(inputTokens))
	m.LLMTokensUsed.WithLabelValues(operation, model, "output").Add(float64(outputTokens))
}

// RecordLLMRequestFailed records a failed LLM request.
func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}

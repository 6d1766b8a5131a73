// Package observability exposes Prometheus metrics for the job pipeline and
// the HTTP surface.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics covering the golden signals:
// latency, traffic, errors, and saturation.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec

	// Job metrics
	JobsSubmittedTotal prometheus.Counter
	JobsCompletedTotal prometheus.Counter
	JobsFailedTotal    *prometheus.CounterVec
	JobsProcessing     prometheus.Gauge
	QueueDepth         prometheus.Gauge
	StageDuration      *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{registry: reg}

	m.HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "path", "status"})

	m.HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	m.JobsSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobs_submitted_total",
		Help: "Total number of jobs accepted for processing.",
	})

	m.JobsCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobs_completed_total",
		Help: "Total number of jobs that finished successfully.",
	})

	m.JobsFailedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobs_failed_total",
		Help: "Total number of jobs that ended in failure, by reason.",
	}, []string{"reason"})

	m.JobsProcessing = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "jobs_processing",
		Help: "Number of jobs currently being processed (saturation).",
	})

	m.QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "jobs_queue_depth",
		Help: "Number of jobs waiting for a worker.",
	})

	m.StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_stage_duration_seconds",
		Help:    "Per-stage processing duration in seconds.",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 900, 1800},
	}, []string{"stage"})

	reg.MustRegister(
		m.HTTPRequestDuration,
		m.HTTPRequestsTotal,
		m.JobsSubmittedTotal,
		m.JobsCompletedTotal,
		m.JobsFailedTotal,
		m.JobsProcessing,
		m.QueueDepth,
		m.StageDuration,
	)
	return m
}

// Handler returns the scrape endpoint handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Failure reason labels for JobsFailedTotal.
const (
	ReasonCancelled = "cancelled"
	ReasonError     = "error"
	ReasonTimeout   = "timeout"
)

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, durationSeconds float64) {
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordJobSubmitted records a job entering the queue.
func (m *Metrics) RecordJobSubmitted() {
	m.JobsSubmittedTotal.Inc()
}

// RecordJobStarted marks a job moving from queued to processing.
func (m *Metrics) RecordJobStarted() {
	m.JobsProcessing.Inc()
}

// RecordJobCompleted records a successful job finishing.
func (m *Metrics) RecordJobCompleted() {
	m.JobsProcessing.Dec()
	m.JobsCompletedTotal.Inc()
}

// RecordJobFailed records a failed job with the reason it failed.
func (m *Metrics) RecordJobFailed(reason string) {
	m.JobsProcessing.Dec()
	m.JobsFailedTotal.WithLabelValues(reason).Inc()
}

// RecordStaleJobFailed records a job force-failed by the reaper. The job is
// no longer counted as processing by the worker that abandoned it.
func (m *Metrics) RecordStaleJobFailed() {
	m.JobsFailedTotal.WithLabelValues(ReasonTimeout).Inc()
}

// RecordStageDuration records how long one pipeline stage took.
func (m *Metrics) RecordStageDuration(stage string, durationSeconds float64) {
	m.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// SetQueueDepth records the current number of queued jobs.
func (m *Metrics) SetQueueDepth(n int) {
	m.QueueDepth.Set(float64(n))
}

// Package metrics provides Prometheus metrics for the annotator
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the annotator.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP request metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Annotation engine metrics
	OpenUnits            prometheus.Gauge
	UnitsOpenedTotal     prometheus.Counter
	TogglesTotal         *prometheus.CounterVec
	ImportedAnnotations  prometheus.Counter
	SubmissionsTotal     *prometheus.CounterVec
	CodebookCompileTotal *prometheus.CounterVec

	// Worker metrics
	TasksProcessedTotal *prometheus.CounterVec
	TaskDuration        *prometheus.HistogramVec
	DraftsPurgedTotal   prometheus.Counter
}

// NewMetrics creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotator_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "annotator_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.HTTPRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "annotator_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)

	m.OpenUnits = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "annotator_open_units",
			Help: "Number of units currently open by coders",
		},
	)

	m.UnitsOpenedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "annotator_units_opened_total",
			Help: "Total number of units opened",
		},
	)

	m.TogglesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotator_toggles_total",
			Help: "Total number of annotation toggles",
		},
		[]string{"action"},
	)

	m.ImportedAnnotations = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "annotator_imported_annotations_total",
			Help: "Total number of offset annotations imported into open units",
		},
	)

	m.SubmissionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotator_submissions_total",
			Help: "Total number of submissions enqueued",
		},
		[]string{"status"},
	)

	m.CodebookCompileTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotator_codebook_compile_total",
			Help: "Total number of codebook compilations",
		},
		[]string{"result"},
	)

	m.TasksProcessedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotator_tasks_processed_total",
			Help: "Total number of queue tasks processed",
		},
		[]string{"type", "result"},
	)

	m.TaskDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "annotator_task_duration_seconds",
			Help:    "Duration of queue task processing in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"type"},
	)

	m.DraftsPurgedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "annotator_drafts_purged_total",
			Help: "Total number of expired drafts deleted",
		},
	)

	return m
}

// RecordHTTPRequest records a served HTTP request
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// UnitOpened records a coder opening a unit; replaced is true when the
// coder's previous unit was discarded
func (m *Metrics) UnitOpened(replaced bool) {
	if m == nil {
		return
	}
	m.UnitsOpenedTotal.Inc()
	if !replaced {
		m.OpenUnits.Inc()
	}
}

// UnitClosed records a coder closing a unit
func (m *Metrics) UnitClosed() {
	if m == nil {
		return
	}
	m.OpenUnits.Dec()
}

// RecordToggle records an annotation edit: "add", "remove" or "replace"
func (m *Metrics) RecordToggle(action string) {
	if m == nil {
		return
	}
	m.TogglesTotal.WithLabelValues(action).Inc()
}

// RecordImport records imported offset annotations
func (m *Metrics) RecordImport(count int) {
	if m == nil {
		return
	}
	m.ImportedAnnotations.Add(float64(count))
}

// RecordSubmission records an enqueued submission
func (m *Metrics) RecordSubmission(status string) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(status).Inc()
}

// RecordCompile records a codebook compilation
func (m *Metrics) RecordCompile(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CodebookCompileTotal.WithLabelValues(result).Inc()
}

// RecordTask records a processed queue task
func (m *Metrics) RecordTask(taskType string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.TasksProcessedTotal.WithLabelValues(taskType, result).Inc()
	m.TaskDuration.WithLabelValues(taskType).Observe(duration.Seconds())
}

// RecordDraftsPurged records deleted drafts
func (m *Metrics) RecordDraftsPurged(count int) {
	if m == nil {
		return
	}
	m.DraftsPurgedTotal.Add(float64(count))
}

package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	reportsIngestedTotal  *prometheus.CounterVec
	reportsResolvedTotal  *prometheus.CounterVec
	attemptsAppendedTotal *prometheus.CounterVec
	gradesWrittenTotal    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classboard_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "classboard_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		reportsIngestedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classboard_reports_ingested_total",
			Help: "Completion reports ingested, labelled by immediate outcome.",
		}, []string{"outcome"})

		reportsResolvedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classboard_reports_resolved_total",
			Help: "Pending reports resolved by a teacher, labelled by resolution.",
		}, []string{"resolution"})

		attemptsAppendedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classboard_attempts_appended_total",
			Help: "Exercise attempts appended to submissions, labelled by category.",
		}, []string{"category"})

		gradesWrittenTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classboard_grades_written_total",
			Help: "Grading operations applied, labelled by redo flag.",
		}, []string{"redo_required"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			reportsIngestedTotal,
			reportsResolvedTotal,
			attemptsAppendedTotal,
			gradesWrittenTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// ReportsIngested exposes the counter for ingested completion reports.
func ReportsIngested() *prometheus.CounterVec {
	RegisterMetrics()
	return reportsIngestedTotal
}

// ReportsResolved exposes the counter for manually resolved reports.
func ReportsResolved() *prometheus.CounterVec {
	RegisterMetrics()
	return reportsResolvedTotal
}

// AttemptsAppended exposes the counter for appended attempts.
func AttemptsAppended() *prometheus.CounterVec {
	RegisterMetrics()
	return attemptsAppendedTotal
}

// GradesWritten exposes the counter for grading operations.
func GradesWritten() *prometheus.CounterVec {
	RegisterMetrics()
	return gradesWrittenTotal
}

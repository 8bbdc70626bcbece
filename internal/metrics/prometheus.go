// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LockAttempts tracks guarded lock attempts by outcome.
	// The lock label is not a dimension; it appears in the guard logs.
	LockAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lock_attempts_total",
			Help: "Total advisory lock attempts by outcome",
		},
		[]string{"outcome"},
	)

	// LockReleaseFailures tracks failed lock releases after guarded work ran.
	LockReleaseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lock_release_failures_total",
			Help: "Total failed advisory lock releases",
		},
	)

	// LockWorkDuration tracks how long guarded work held the lock.
	LockWorkDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lock_work_duration_seconds",
			Help:    "Duration of work executed under an advisory lock in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
		},
	)

	// JobRuns tracks recurring job runs by job name and status.
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_runs_total",
			Help: "Total recurring job runs by job and status",
		},
		[]string{"job", "status"},
	)

	// LogsReturned tracks the number of log entries returned per query.
	LogsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logs_returned",
			Help:    "Number of log entries returned per query",
			Buckets: []float64{0, 1, 10, 50, 100, 250, 500, 1000},
		},
	)

	// HTTPRequestsTotal tracks total HTTP requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request duration.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// DatabaseQueryDuration tracks database query duration.
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// DefaultPath is where the metrics endpoint is served unless configured otherwise.
const DefaultPath = "/metrics"

// RegisterMetricsEndpoint registers the /metrics endpoint on a Gin router.
func RegisterMetricsEndpoint(router *gin.Engine) {
	RegisterMetricsEndpointWithPath(router, DefaultPath)
}

// RegisterMetricsEndpointWithPath registers the metrics endpoint at a custom path.
func RegisterMetricsEndpointWithPath(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// RecordLockAttempt records the outcome of a guarded lock attempt.
func RecordLockAttempt(outcome string) {
	LockAttempts.WithLabelValues(outcome).Inc()
}

// RecordLockReleaseFailure records a failed release.
func RecordLockReleaseFailure() {
	LockReleaseFailures.Inc()
}

// RecordLockWorkDuration records how long guarded work ran.
func RecordLockWorkDuration(seconds float64) {
	LockWorkDuration.Observe(seconds)
}

// RecordJobRun records a recurring job run.
func RecordJobRun(job, status string) {
	JobRuns.WithLabelValues(job, status).Inc()
}

// RecordLogsReturned records the size of a log query result.
func RecordLogsReturned(count int) {
	LogsReturned.Observe(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(method, path, status string) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(method, path string, seconds float64) {
	HTTPRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

// RecordDatabaseQuery records a database query duration.
func RecordDatabaseQuery(operation string, seconds float64) {
	DatabaseQueryDuration.WithLabelValues(operation).Observe(seconds)
}

package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Lifecycle transition counter by edge and outcome
	TransitionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_transitions_total",
			Help: "Total number of lifecycle transition requests",
		},
		[]string{"target", "outcome"}, // outcome: "applied", "illegal", "conflict", "denied", "error"
	)

	// Checklist operation counter
	ChecklistOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_checklist_operations_total",
			Help: "Total number of checklist operations",
		},
		[]string{"operation"}, // "instantiate", "complete_item", "skip_item", "reopen_item", "cancel_instance"
	)

	// Dormancy scan counter
	DormancyScanCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lifecycle_dormancy_scans_total",
			Help: "Total number of dormancy scans",
		},
	)

	// Dormancy candidates found in the last scans
	DormancyCandidateCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lifecycle_dormancy_candidates_total",
			Help: "Total number of dormancy candidates reported",
		},
	)

	// Retention check counter
	RetentionCheckCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lifecycle_retention_checks_total",
			Help: "Total number of retention check runs",
		},
	)

	// Retention flagged records counter
	RetentionFlaggedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lifecycle_retention_flagged_total",
			Help: "Total number of records flagged by retention checks",
		},
	)

	// Retention execution counter by action and outcome
	RetentionExecutionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_retention_executions_total",
			Help: "Total number of retention record executions",
		},
		[]string{"record_type", "outcome"}, // outcome: "succeeded", "failed"
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lifecycle_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)
)

func init() {
	prometheus.MustRegister(TransitionCounter)
	prometheus.MustRegister(ChecklistOperationCounter)
	prometheus.MustRegister(DormancyScanCounter)
	prometheus.MustRegister(DormancyCandidateCounter)
	prometheus.MustRegister(RetentionCheckCounter)
	prometheus.MustRegister(RetentionFlaggedCounter)
	prometheus.MustRegister(RetentionExecutionCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(RequestDuration)
}

// RecordTransition increments the transition counter for one request.
func RecordTransition(target, outcome string) {
	TransitionCounter.WithLabelValues(target, outcome).Inc()
}

// RecordChecklistOperation increments the checklist operation counter.
func RecordChecklistOperation(operation string) {
	ChecklistOperationCounter.WithLabelValues(operation).Inc()
}

// RecordDormancyScan records one scan and how many candidates it reported.
func RecordDormancyScan(candidates int) {
	DormancyScanCounter.Inc()
	DormancyCandidateCounter.Add(float64(candidates))
}

// RecordRetentionCheck records one check run and its flagged total.
func RecordRetentionCheck(flagged int) {
	RetentionCheckCounter.Inc()
	RetentionFlaggedCounter.Add(float64(flagged))
}

// RecordRetentionExecution records the per-record outcomes of one execution.
func RecordRetentionExecution(recordType string, succeeded, failed int) {
	RetentionExecutionCounter.WithLabelValues(recordType, "succeeded").Add(float64(succeeded))
	RetentionExecutionCounter.WithLabelValues(recordType, "failed").Add(float64(failed))
}

// MetricsMiddleware returns an Echo middleware that records request metrics
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			endpoint := c.Path()
			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status)

			HTTPRequestCounter.WithLabelValues(endpoint, method, status).Inc()
			RequestDuration.WithLabelValues(endpoint, method).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// GetPrometheusHandler returns an HTTP handler for exposing Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// Package observability provides Prometheus metrics for the execution
// endpoint and the execution engine.
package observability

import "github.com/prometheus/client_golang/prometheus"

// ExecutionBuckets covers short scripts up to long-running notebooks,
// ranging from 50ms to the default notebook cell timeout.
var ExecutionBuckets = []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600}

// Execution kinds
const (
	KindCode     = "code"
	KindNotebook = "notebook"
)

var (
	// RequestsTotal counts HTTP requests by route, method and status code.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbexec_http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nbexec_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: ExecutionBuckets,
		},
		[]string{"route", "method"},
	)

	// ExecutionsTotal counts executions by kind (code/notebook) and outcome.
	ExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbexec_executions_total",
			Help: "Executions",
		},
		[]string{"kind", "status"},
	)

	// ExecutionDuration records the time spent in the execution engine.
	ExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nbexec_execution_duration_seconds",
			Help:    "Execution duration",
			Buckets: ExecutionBuckets,
		},
		[]string{"kind"},
	)

	// ExecutionsInFlight tracks executions currently running.
	ExecutionsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nbexec_executions_in_flight",
			Help: "Executions in flight",
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nbexec_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		ExecutionsTotal,
		ExecutionDuration,
		ExecutionsInFlight,
		RateLimitRejectedTotal,
	)
}

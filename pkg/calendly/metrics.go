package calendly

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts logical requests by operation and outcome.
	// Status is the final HTTP status code, or "network_error".
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calendly_requests_total",
		Help: "Total Calendly API requests by operation and status",
	}, []string{"operation", "status"})

	// requestDuration observes wall-clock latency of logical requests,
	// including retries and backoff sleeps.
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "calendly_request_duration_seconds",
		Help:    "Calendly API request duration in seconds by operation",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"operation"})

	// errorsTotal counts failed attempts by error class.
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calendly_errors_total",
		Help: "Total Calendly API errors by class",
	}, []string{"class"})

	// retriesTotal counts retry attempts by error class.
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calendly_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	// retryExhaustedTotal counts requests that failed every attempt.
	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calendly_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

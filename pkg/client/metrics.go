package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for request execution.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqt_requests_total",
		Help: "Total requests sent by method and status",
	}, []string{"method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reqt_request_duration_seconds",
		Help:    "Request duration in seconds by method",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"method"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqt_errors_total",
		Help: "Total failed requests by error class",
	}, []string{"class"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqt_retries_total",
		Help: "Total retried attempts by reason",
	}, []string{"reason"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reqt_retry_backoff_seconds",
		Help:    "Wait before a throttled request is retried, by delay source",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"source"})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reqt_retry_exhausted_total",
		Help: "Total requests that stayed throttled on every attempt",
	})

	pagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reqt_pages_total",
		Help: "Total pages fetched by paginated requests",
	})
)

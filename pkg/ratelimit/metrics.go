package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for request admission.
var (
	admittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqt_ratelimit_admitted_total",
		Help: "Total requests admitted by the rate limiter, by mode",
	}, []string{"mode"})

	rejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reqt_ratelimit_rejected_total",
		Help: "Total manual-mode requests rejected because no token was available",
	})

	waitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reqt_ratelimit_wait_seconds",
		Help:    "Time automatic-mode callers spent waiting for a token",
		Buckets: []float64{0, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60},
	})

	suspensionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reqt_ratelimit_suspensions_total",
		Help: "Total admission suspensions triggered by throttling responses",
	})

	capacityGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reqt_ratelimit_capacity",
		Help: "Capacity of the most recently configured or adapted limiter",
	})
)

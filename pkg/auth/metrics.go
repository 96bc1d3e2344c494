package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqt_auth_refresh_total",
		Help: "Total token refreshes by scheme and result",
	}, []string{"scheme", "result"})

	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reqt_auth_refresh_duration_seconds",
		Help:    "Duration of successful token exchanges",
		Buckets: prometheus.DefBuckets,
	})
)

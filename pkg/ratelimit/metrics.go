package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	AcquiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_ratelimit_acquired_total",
		Help: "Total number of tokens acquired per category",
	}, []string{"category"})

	AcquireCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_ratelimit_cancelled_total",
		Help: "Total number of acquire waits abandoned before a token was granted",
	}, []string{"category"})

	AcquireWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skinarb_ratelimit_wait_seconds",
		Help:    "Time spent waiting for a rate limit token",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"category"})
)

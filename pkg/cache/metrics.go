package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	HitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skinarb_cache_hits_total",
		Help: "Total number of snapshot cache hits",
	})

	MissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skinarb_cache_misses_total",
		Help: "Total number of snapshot cache misses",
	})

	SetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skinarb_cache_sets_total",
		Help: "Total number of snapshot cache sets",
	})

	DeletesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skinarb_cache_deletes_total",
		Help: "Total number of snapshot cache deletes",
	})
)

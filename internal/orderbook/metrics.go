package orderbook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	UpdatesAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skinarb_orderbook_updates_applied_total",
		Help: "Total bid updates applied to the book",
	})

	TrackedQueries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skinarb_orderbook_tracked_queries",
		Help: "Number of item queries currently tracked",
	})
)

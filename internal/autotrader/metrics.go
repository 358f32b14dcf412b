package autotrader

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skinarb_autotrader_cycles_total",
		Help: "Total trading cycles executed",
	})

	CycleDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "skinarb_autotrader_cycle_duration_seconds",
		Help:    "Duration of one full scan-and-place cycle",
		Buckets: prometheus.DefBuckets,
	})

	PlacementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_autotrader_placements_total",
		Help: "Total targets placed by the automated loop",
	}, []string{"game_id", "tier"})

	PlacementsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_autotrader_placements_skipped_total",
		Help: "Total placements skipped by reason",
	}, []string{"reason"})
)

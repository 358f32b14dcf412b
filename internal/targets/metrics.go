package targets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_targets_transitions_total",
		Help: "Total target lifecycle transitions by from/to status",
	}, []string{"from", "to"})

	RepricesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skinarb_targets_reprices_total",
		Help: "Total successful target reprices",
	})

	CancelledBelowROITotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skinarb_targets_cancelled_below_roi_total",
		Help: "Total targets withdrawn because the capped bid fell below the tier's minimum ROI",
	})

	OpenTargets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skinarb_targets_open",
		Help: "Number of targets currently tracked",
	})
)

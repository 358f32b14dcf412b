package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_scans_total",
		Help: "Total completed scans per game",
	}, []string{"game"})

	ScanDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "skinarb_scan_duration_seconds",
		Help:    "Scan duration including the market fetch",
		Buckets: prometheus.DefBuckets,
	})

	OpportunitiesFoundTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_opportunities_found_total",
		Help: "Total opportunities surviving tier filters",
	}, []string{"game", "tier"})

	ListingsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_scan_listings_skipped_total",
		Help: "Total listings dropped from a scan by reason",
	}, []string{"reason"})
)

package marketdata

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	FetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_market_fetches_total",
		Help: "Total listing fetches by result (ok, cache, error, circuit_open, rate_limit_timeout, parse_error)",
	}, []string{"result"})

	FetchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "skinarb_market_fetch_duration_seconds",
		Help:    "Network fetch duration including retries",
		Buckets: prometheus.DefBuckets,
	})

	RetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skinarb_market_fetch_retries_total",
		Help: "Total fetch retry attempts",
	})

	ListingsParsedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skinarb_market_listings_parsed_total",
		Help: "Total listings successfully normalized",
	})

	ListingsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_market_listings_dropped_total",
		Help: "Total listings dropped during normalization by reason",
	}, []string{"reason"})
)

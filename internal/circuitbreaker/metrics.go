package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	StateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "skinarb_breaker_state",
		Help: "Current breaker state (0=closed, 1=open, 2=half_open)",
	}, []string{"breaker"})

	FailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_breaker_failures_total",
		Help: "Total failures recorded per breaker",
	}, []string{"breaker"})

	RejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_breaker_rejected_total",
		Help: "Total calls rejected without a network attempt",
	}, []string{"breaker"})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_breaker_transitions_total",
		Help: "Total state transitions per breaker and destination state",
	}, []string{"breaker", "to"})
)

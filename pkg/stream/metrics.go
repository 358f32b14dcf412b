package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	ConnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skinarb_stream_connects_total",
		Help: "Total successful stream connections",
	})

	DisconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skinarb_stream_disconnects_total",
		Help: "Total stream disconnections",
	})

	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skinarb_stream_reconnect_attempts_total",
		Help: "Total reconnection attempts",
	})

	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skinarb_stream_reconnect_failures_total",
		Help: "Total failed reconnection attempts",
	})

	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_stream_messages_total",
		Help: "Total stream messages by disposition (ok, malformed, dropped)",
	}, []string{"disposition"})
)

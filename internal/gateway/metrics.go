package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// callsTotal counts tool calls by outcome.
	// Labels: provider, operation, outcome (ok, provider_unavailable,
	// timeout, connection_failed, provider_error)
	callsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trendd",
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "Total number of tool calls by outcome",
		},
		[]string{"provider", "operation", "outcome"},
	)

	// callDuration tracks tool call round-trip time.
	callDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trendd",
			Subsystem: "gateway",
			Name:      "call_duration_seconds",
			Help:      "Duration of tool calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)
)

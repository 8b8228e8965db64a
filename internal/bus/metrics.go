package bus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// messagesTotal counts delegation messages by outcome.
// Labels: recipient, outcome (ok, error, recipient_unknown, depth_exceeded)
var messagesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "trendd",
		Subsystem: "bus",
		Name:      "messages_total",
		Help:      "Total number of delegation messages by outcome",
	},
	[]string{"recipient", "outcome"},
)

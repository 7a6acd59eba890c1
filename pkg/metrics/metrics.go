// Package metrics provides Prometheus metrics for the Sage service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsStartedTotal tracks sessions opened
	SessionsStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "sessions",
			Name:      "started_total",
			Help:      "Total number of sessions opened",
		},
	)

	// SessionsClosedTotal tracks sessions closed
	SessionsClosedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "sessions",
			Name:      "closed_total",
			Help:      "Total number of sessions closed",
		},
	)

	// EntryMutationsTotal tracks box entry mutations by action
	EntryMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "ledger",
			Name:      "entry_mutations_total",
			Help:      "Total number of box entry mutations by action",
		},
		[]string{"action"},
	)

	// TotalsRecomputeDuration tracks how long session totals recomputes take
	TotalsRecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sage",
			Subsystem: "ledger",
			Name:      "totals_recompute_seconds",
			Help:      "Duration of session totals recomputes in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	// ReadingsIngestedTotal tracks scale readings by outcome (cached or dropped)
	ReadingsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "telemetry",
			Name:      "readings_ingested_total",
			Help:      "Total number of scale readings processed by outcome",
		},
		[]string{"outcome"},
	)

	// LatestReadingRequestsTotal tracks snapshot lookups by result (hit or miss)
	LatestReadingRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "telemetry",
			Name:      "latest_reading_requests_total",
			Help:      "Total number of latest reading lookups by result",
		},
		[]string{"result"},
	)
)

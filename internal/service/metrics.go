package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gateOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_verification_outcomes_total",
		Help: "Verification gate checks, labeled by outcome",
	}, []string{"outcome"})

	searchStale = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_search_stale_responses_total",
		Help: "Recipient search responses discarded because a newer query had started",
	})

	transferOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_transfer_outcomes_total",
		Help: "Transfer submissions, labeled by outcome",
	}, []string{"outcome"})

	transferDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wallet_transfer_duration_seconds",
		Help:    "Time from submit to receipt, both phases included",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
)

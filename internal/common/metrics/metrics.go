// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OffersIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_offers_issued_total",
			Help: "Total number of offers recorded and pushed to workers",
		},
		[]string{"category"},
	)

	AcceptAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_accept_attempts_total",
			Help: "Total number of accept attempts by outcome",
		},
		[]string{"result"},
	)

	ScoringFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_scoring_fallback_total",
			Help: "Total number of scoring calls routed to the heuristic fallback",
		},
		[]string{"reason"},
	)

	ReplenishmentRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_replenishment_runs_total",
			Help: "Total number of replenishment executions by trigger",
		},
		[]string{"trigger"},
	)

	CandidatePoolSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_candidate_pool_size",
			Help:    "Number of eligible candidates per selection round",
			Buckets: prometheus.LinearBuckets(0, 2, 10),
		},
	)

	SelectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "dispatch_selection_duration_seconds",
			Help: "Duration of candidate selection including scoring",
		},
		[]string{"category"},
	)
)

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hotcold"

var (
	// GuessesTotal counts guess submissions by mode and outcome reason ("ok", "solved", or an error reason).
	GuessesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guesses_total",
		Help:      "Guess submissions by mode and outcome.",
	}, []string{"mode", "outcome"})

	HintsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hints_total",
		Help:      "Hint requests by mode and outcome.",
	}, []string{"mode", "outcome"})

	SimilarityCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "similarity_cache_total",
		Help:      "Similarity cache lookups by kind (config, compare) and result (hit, miss, corrupt).",
	}, []string{"kind", "result"})

	SimilarityRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "similarity_request_duration_seconds",
		Help:      "Latency of calls to the similarity service.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	FaucetRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "faucet_rejections_total",
		Help:      "Actions refused because the player had no tokens left.",
	}, []string{"mode"})

	SweepItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_items_total",
		Help:      "Items processed by scheduled sweeps by sweep and result.",
	}, []string{"sweep", "result"})
)

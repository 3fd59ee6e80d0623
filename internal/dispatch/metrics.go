package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_requests_created_total",
		Help: "Total number of pooling requests accepted for matching",
	})

	matchCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_match_cycles_total",
		Help: "Total number of matching cycles run, labeled by whether any pool was formed",
	}, []string{"result"})

	poolsFormedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_pools_formed_total",
		Help: "Total number of pools successfully formed",
	})

	poolsAugmentedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_pools_augmented_total",
		Help: "Total number of times a forming pool gained a passenger instead of a new pool being formed",
	})

	cancellationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_cancellations_total",
		Help: "Total number of cancel requests, labeled by outcome",
	}, []string{"outcome"})

	matchCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_match_cycle_duration_seconds",
		Help:    "Duration of a full matching cycle",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
	})
)

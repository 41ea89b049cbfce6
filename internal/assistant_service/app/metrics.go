package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	provisioningRunsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assistant",
			Name:      "provisioning_runs_total",
			Help:      "Total provisioning runs by terminal outcome.",
		},
		[]string{"outcome"}, // "active", "client_error", "dependency_error"
	)

	provisioningDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "assistant",
			Name:      "provisioning_duration_seconds",
			Help:      "Duration of full provisioning runs.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 90, 120},
		},
		[]string{"outcome"},
	)

	enrichmentOutcomeCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assistant",
			Name:      "enrichment_polls_total",
			Help:      "Enrichment poll outcomes.",
		},
		[]string{"outcome"}, // "arrived", "timeout", "skipped"
	)

	notificationCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assistant",
			Name:      "welcome_notifications_total",
			Help:      "Welcome notification attempts.",
		},
		[]string{"channel", "status"},
	)
)

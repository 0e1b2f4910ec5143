package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "avocatel",
		Name:      "reconciliations_total",
		Help:      "Payment confirmations processed, by source and outcome.",
	}, []string{"source", "outcome"})

	reconcileDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "avocatel",
		Name:      "reconciliation_duration_seconds",
		Help:      "Time spent applying a payment confirmation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})

	notifyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "avocatel",
		Name:      "reconciliation_alerts_failed_total",
		Help:      "Failure events that could not be published.",
	})
)

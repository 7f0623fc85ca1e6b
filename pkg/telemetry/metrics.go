package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ─── Monitor ─────────────────────────────────────────────────────────────

	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "floorstate",
		Subsystem: "monitor",
		Name:      "refresh_total",
		Help:      "Refresh cycles, labelled by view and outcome (ok, degraded, discarded).",
	}, []string{"view", "outcome"})

	RefreshDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "floorstate",
		Subsystem: "monitor",
		Name:      "refresh_duration_seconds",
		Help:      "End-to-end refresh cycle time (fetch plus derivation) in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"view"})

	SnapshotDegraded = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "floorstate",
		Subsystem: "monitor",
		Name:      "snapshot_degraded",
		Help:      "1 when the view is serving a stale snapshot after a fetch failure.",
	}, []string{"view"})

	FetchRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "floorstate",
		Subsystem: "monitor",
		Name:      "fetch_retries_total",
		Help:      "Retry attempts at the fact-fetch boundary.",
	}, []string{"view"})

	MachinesByReadiness = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "floorstate",
		Subsystem: "monitor",
		Name:      "machines_by_readiness",
		Help:      "Machine count per readiness state in the latest snapshot.",
	}, []string{"readiness"})

	// ─── Alerts ──────────────────────────────────────────────────────────────

	AlertsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "floorstate",
		Subsystem: "alerts",
		Name:      "published_total",
		Help:      "Alert events published to Kafka, labelled by alert kind.",
	}, []string{"kind"})

	AlertPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "floorstate",
		Subsystem: "alerts",
		Name:      "publish_errors_total",
		Help:      "Alert publishes that failed after producer retries.",
	})
)

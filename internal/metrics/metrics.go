package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_runs_started_total",
		Help: "Total number of recompute runs started, labelled by scorer.",
	}, []string{"scorer"})

	EntitiesScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_entities_scored_total",
		Help: "Total number of entities scored, labelled by scorer and status.",
	}, []string{"scorer", "status"})

	AnomaliesFlagged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_anomalies_flagged_total",
		Help: "Total number of anomaly flags raised, labelled by scorer.",
	}, []string{"scorer"})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "signal_run_duration_ms",
		Help:    "Recompute run duration in milliseconds, labelled by scorer.",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	}, []string{"scorer"})

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_enrichment_jobs_processed_total",
		Help: "Total enrichment jobs processed, labelled by kind and outcome.",
	}, []string{"kind", "outcome"})

	JobBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signal_enrichment_backlog",
		Help: "Pending enrichment jobs at the end of the last sweep.",
	})

	DeadLetters = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signal_enrichment_dead_letters",
		Help: "Dead-lettered enrichment jobs awaiting manual requeue.",
	})

	NotificationsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_notifications_emitted_total",
		Help: "Total handoff events emitted, labelled by kind and status.",
	}, []string{"kind", "status"})
)

package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	outcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdgauge_pipeline_outcomes_total",
			Help: "Total number of processed submissions by terminal state",
		},
		[]string{"state"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crowdgauge_pipeline_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"}, // stage: fetch, detect, preprocess, read, validate
	)

	waterlineMissing = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crowdgauge_pipeline_waterline_not_found_total",
			Help: "Gauges whose mask held no waterline candidate",
		},
	)

	broadcastDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crowdgauge_outcome_broadcast_dropped_total",
			Help: "Outcomes not delivered to a slow live subscriber",
		},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crowdgauge_dispatcher_queue_depth",
			Help: "Submissions waiting for a worker",
		},
	)
)

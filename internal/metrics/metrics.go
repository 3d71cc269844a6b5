package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_sessions_active",
		Help: "Currently active media sessions",
	})

	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_sessions_total",
		Help: "Total media sessions accepted",
	})

	FramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_frames_total",
		Help: "Decoded inbound frames by kind",
	}, []string{"kind"})

	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_frames_dropped_total",
		Help: "Inbound frames dropped as malformed",
	})

	TurnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_turns_total",
		Help: "Conversation turns started",
	})

	RunPolls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_run_polls_total",
		Help: "Assistant run status polls issued",
	})

	ChunksEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_response_chunks_total",
		Help: "Assistant response chunks harvested",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bridge_stage_duration_seconds",
		Help:    "Per-stage latency",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 2.0, 5.0},
	}, []string{"stage"})

	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bridge_turn_duration_seconds",
		Help:    "End-to-end latency from utterance finalize to turn teardown",
		Buckets: []float64{0.1, 0.2, 0.5, 0.8, 1.0, 1.5, 2.0, 3.0, 5.0, 10.0},
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_errors_total",
		Help: "Error counts by stage",
	}, []string{"stage", "error_type"})
)

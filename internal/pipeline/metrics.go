package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_frames_total",
			Help: "Frames handed to the pipeline, by outcome",
		},
		[]string{"outcome"},
	)

	frameDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codescan_frame_duration_seconds",
			Help:    "Time spent on the frame path per processed frame",
			Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025},
		},
	)

	detectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_detections_total",
			Help: "Detections seen per stage",
		},
		[]string{"stage"},
	)

	scanEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_scan_events_total",
			Help: "Scan events dispatched, by kind",
		},
		[]string{"kind"},
	)

	eventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "codescan_events_dropped_total",
			Help: "Scan events dropped because the host fell behind",
		},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codescan_active_sessions",
			Help: "Number of open scanner sessions",
		},
	)
)

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codescan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_rate_limit_hits_total",
			Help: "Total number of rejected session starts",
		},
		[]string{"window"}, // window: minute, hour
	)

	// Scanning session metrics
	scanSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_server_sessions_total",
			Help: "Scanning sessions by how they started",
		},
		[]string{"result"}, // result: opened, rejected, failed
	)

	scanSessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codescan_server_session_duration_seconds",
			Help:    "Lifetime of scanning sessions",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codescan_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codescan_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction", "type"}, // direction: sent, received
	)
)

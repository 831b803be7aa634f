package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inpaint_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inpaint_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Inpainting metrics
	inpaintRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inpaint_requests_total",
			Help: "Total number of inpainting requests",
		},
		[]string{"endpoint", "status"}, // endpoint: inpaint, debug, visualize, websocket
	)

	inpaintProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inpaint_processing_duration_seconds",
			Help:    "End-to-end inpainting duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 25, 50},
		},
		[]string{"endpoint"},
	)

	inpaintPolygonsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inpaint_polygons_total",
			Help: "Total number of regions inpainted after polygon preprocessing",
		},
	)

	inpaintRegionsPerRequest = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inpaint_regions_per_request",
			Help:    "Number of regions inpainted per request",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	inpaintInferenceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inpaint_inference_duration_seconds",
			Help:    "Model inference duration per region in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inpaint_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, hour, requests, data
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inpaint_upload_size_bytes",
			Help:    "Size of uploaded images in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inpaint_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inpaint_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

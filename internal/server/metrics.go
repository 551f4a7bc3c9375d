package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrengine_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qrengine_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Engine metrics
	generateRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrengine_generate_requests_total",
			Help: "Total number of generate requests",
		},
		[]string{"format", "status"},
	)

	generateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qrengine_generate_duration_seconds",
			Help:    "Symbol generation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	scanRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrengine_scan_requests_total",
			Help: "Total number of scan requests",
		},
		[]string{"type", "status"}, // type: image, pdf, websocket
	)

	scanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qrengine_scan_duration_seconds",
			Help:    "Scan duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 25},
		},
		[]string{"type"},
	)

	symbolsDecoded = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qrengine_symbols_decoded",
			Help:    "Number of symbols decoded per scan",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 25, 50},
		},
		[]string{"type"},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrengine_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, hour, requests, data
	)

	// Upload metrics
	uploadSizeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qrengine_upload_size_bytes",
			Help:    "Size of uploaded images and documents in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
		[]string{"type"},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qrengine_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrengine_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

func metricsHandler() http.Handler { return promhttp.Handler() }

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the ingestion/delivery pipelines.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	uploadsFinalized *prometheus.CounterVec
	uploadFailures   *prometheus.CounterVec
	chunksReceived   prometheus.Counter
	deliveries       *prometheus.CounterVec
	deliveriesDenied *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	uploadsFinalized := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uploads_finalized_total",
		Help: "Uploads committed to canonical storage and the database",
	}, []string{"item_type"})

	uploadFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upload_failures_total",
		Help: "Uploads rejected or rolled back, labelled by pipeline stage",
	}, []string{"stage"})

	chunksReceived := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "upload_chunks_received_total",
		Help: "Chunks accepted into the staging area",
	})

	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deliveries_total",
		Help: "Files streamed to clients",
	}, []string{"item_type"})

	deliveriesDenied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deliveries_denied_total",
		Help: "Downloads refused by an explicit permission rule",
	}, []string{"item_type"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, uploadsFinalized, uploadFailures, chunksReceived, deliveries, deliveriesDenied, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		uploadsFinalized: uploadsFinalized,
		uploadFailures:   uploadFailures,
		chunksReceived:   chunksReceived,
		deliveries:       deliveries,
		deliveriesDenied: deliveriesDenied,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one completed HTTP request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ChunkReceived counts one staged chunk.
func (m *MetricsService) ChunkReceived() {
	if m == nil {
		return
	}
	m.chunksReceived.Inc()
}

// UploadFinalized counts one committed upload.
func (m *MetricsService) UploadFinalized(itemType string) {
	if m == nil {
		return
	}
	m.uploadsFinalized.WithLabelValues(itemType).Inc()
}

// UploadFailed counts one rejected or rolled back upload by stage.
func (m *MetricsService) UploadFailed(stage string) {
	if m == nil {
		return
	}
	m.uploadFailures.WithLabelValues(stage).Inc()
}

// DeliverySucceeded counts one streamed file.
func (m *MetricsService) DeliverySucceeded(itemType string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(itemType).Inc()
}

// DeliveryDenied counts one permission-refused download.
func (m *MetricsService) DeliveryDenied(itemType string) {
	if m == nil {
		return
	}
	m.deliveriesDenied.WithLabelValues(itemType).Inc()
}

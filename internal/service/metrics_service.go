package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/media-moderation-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the moderation
// pipeline and provides lightweight snapshots for the ops endpoints.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	uploadsTotal    *prometheus.CounterVec
	verdictsTotal   *prometheus.CounterVec
	verdictLatency  prometheus.Observer
	retryAttempts   prometheus.Counter
	retryAbandoned  prometheus.Counter
	retryQueueDepth prometheus.Gauge
	notifsTotal     *prometheus.CounterVec
	notifsQueued    prometheus.Counter
	activeSessions  prometheus.Gauge
	storageMoves    *prometheus.CounterVec

	uploadCount    uint64
	verdictCount   uint64
	abandonedCount uint64
	notifCount     uint64
}

// NewMetricsService registers the pipeline collectors.
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

	uploadsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_uploads_total",
		Help: "Media submissions handed to the classifier",
	}, []string{"outcome"})

	verdictsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_verdicts_total",
		Help: "Classifier verdicts processed, by resulting state",
	}, []string{"state"})

	verdictLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "moderation_verdict_seconds",
		Help:    "Time spent applying one verdict end to end",
		Buckets: prometheus.DefBuckets,
	})

	retryAttempts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retry_attempts_total",
		Help: "Retry queue processing attempts",
	})

	retryAbandoned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retry_abandoned_total",
		Help: "Operations that exhausted their retry budget",
	})

	retryQueueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "retry_queue_depth",
		Help: "Pending operations in the retry queue",
	})

	notifsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Notifications accepted by the hub, by type",
	}, []string{"type"})

	notifsQueued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_queued_total",
		Help: "Notifications deferred by the hourly rate limit",
	})

	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "admin_sessions_active",
		Help: "Connected administrator consoles",
	})

	storageMoves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storage_moves_total",
		Help: "Tier moves performed, by target tier and outcome",
	}, []string{"tier", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, uploadsTotal, verdictsTotal,
		verdictLatency, retryAttempts, retryAbandoned, retryQueueDepth,
		notifsTotal, notifsQueued, activeSessions, storageMoves, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		uploadsTotal:    uploadsTotal,
		verdictsTotal:   verdictsTotal,
		verdictLatency:  verdictLatency,
		retryAttempts:   retryAttempts,
		retryAbandoned:  retryAbandoned,
		retryQueueDepth: retryQueueDepth,
		notifsTotal:     notifsTotal,
		notifsQueued:    notifsQueued,
		activeSessions:  activeSessions,
		storageMoves:    storageMoves,
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordUpload counts one classifier submission. Outcome is "submitted" when
// the classifier accepted it, "deferred" when it went to the retry queue.
func (m *MetricsService) RecordUpload(outcome string) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(outcome).Inc()
	atomic.AddUint64(&m.uploadCount, 1)
}

// RecordVerdict counts one processed verdict and its handling latency.
func (m *MetricsService) RecordVerdict(state models.ModerationState, duration time.Duration) {
	if m == nil {
		return
	}
	m.verdictsTotal.WithLabelValues(string(state)).Inc()
	if m.verdictLatency != nil {
		m.verdictLatency.Observe(duration.Seconds())
	}
	atomic.AddUint64(&m.verdictCount, 1)
}

// RecordRetryAttempt counts one retry-queue processing attempt.
func (m *MetricsService) RecordRetryAttempt() {
	if m == nil {
		return
	}
	m.retryAttempts.Inc()
}

// RecordRetryAbandoned counts an operation that exhausted its budget.
func (m *MetricsService) RecordRetryAbandoned() {
	if m == nil {
		return
	}
	m.retryAbandoned.Inc()
	atomic.AddUint64(&m.abandonedCount, 1)
}

// SetRetryQueueDepth updates the pending-operations gauge.
func (m *MetricsService) SetRetryQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.retryQueueDepth.Set(float64(depth))
}

// RecordNotification counts one notification accepted by the hub.
func (m *MetricsService) RecordNotification(t models.NotificationType) {
	if m == nil {
		return
	}
	m.notifsTotal.WithLabelValues(string(t)).Inc()
	atomic.AddUint64(&m.notifCount, 1)
}

// RecordNotificationQueued counts a rate-limited, deferred notification.
func (m *MetricsService) RecordNotificationQueued() {
	if m == nil {
		return
	}
	m.notifsQueued.Inc()
}

// SetActiveSessions updates the connected-console gauge.
func (m *MetricsService) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// RecordStorageMove counts a tier move by target tier and outcome.
func (m *MetricsService) RecordStorageMove(tier models.StorageTier, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.storageMoves.WithLabelValues(string(tier), outcome).Inc()
}

// PipelineSnapshot aggregates counters for the statistics endpoints.
type PipelineSnapshot struct {
	Uploads       uint64    `json:"uploads"`
	Verdicts      uint64    `json:"verdicts"`
	Abandoned     uint64    `json:"abandoned"`
	Notifications uint64    `json:"notifications"`
	Goroutines    int       `json:"goroutines"`
	GeneratedAt   time.Time `json:"generatedAt"`
}

// Snapshot returns aggregated metrics suitable for dashboards.
func (m *MetricsService) Snapshot() PipelineSnapshot {
	if m == nil {
		return PipelineSnapshot{}
	}
	return PipelineSnapshot{
		Uploads:       atomic.LoadUint64(&m.uploadCount),
		Verdicts:      atomic.LoadUint64(&m.verdictCount),
		Abandoned:     atomic.LoadUint64(&m.abandonedCount),
		Notifications: atomic.LoadUint64(&m.notifCount),
		Goroutines:    runtime.NumGoroutine(),
		GeneratedAt:   time.Now().UTC(),
	}
}

package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	webhookEvents        *prometheus.CounterVec
	checkoutSessions     *prometheus.CounterVec
	enrollmentsCreated   prometheus.Counter
	enrollmentsCompleted prometheus.Counter
	bookingsReaped       prometheus.Counter
	notificationsFailed  prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers core Prometheus collectors.
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_total",
		Help: "Payment provider notifications by kind and outcome",
	}, []string{"provider", "kind", "outcome"})

	checkoutSessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_checkout_sessions_total",
		Help: "Checkout session attempts by outcome",
	}, []string{"provider", "outcome"})

	enrollmentsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enrollments_created_total",
		Help: "Enrollments created after settled payments",
	})

	enrollmentsCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enrollments_completed_total",
		Help: "Enrollments that reached their target session count",
	})

	bookingsReaped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bookings_reaped_total",
		Help: "Pending bookings failed after exceeding their payment window",
	})

	notificationsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_failed_total",
		Help: "Notifications that could not be queued or stored",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		webhookEvents, checkoutSessions, enrollmentsCreated, enrollmentsCompleted, bookingsReaped, notificationsFailed, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:             registry,
		handler:              handler,
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		cacheLatency:         cacheLatency,
		cacheWrite:           cacheWrite,
		cacheHitRatio:        cacheHitRatio,
		cacheHits:            cacheHits,
		cacheMisses:          cacheMisses,
		webhookEvents:        webhookEvents,
		checkoutSessions:     checkoutSessions,
		enrollmentsCreated:   enrollmentsCreated,
		enrollmentsCompleted: enrollmentsCompleted,
		bookingsReaped:       bookingsReaped,
		notificationsFailed:  notificationsFailed,
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

// Registry exposes the collector registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordWebhookEvent counts a processed provider notification.
func (m *MetricsService) RecordWebhookEvent(provider, kind, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(provider, kind, outcome).Inc()
}

// RecordCheckoutSession counts a checkout session attempt.
func (m *MetricsService) RecordCheckoutSession(provider, outcome string) {
	if m == nil {
		return
	}
	m.checkoutSessions.WithLabelValues(provider, outcome).Inc()
}

// IncEnrollmentsCreated counts a newly created enrollment.
func (m *MetricsService) IncEnrollmentsCreated() {
	if m == nil {
		return
	}
	m.enrollmentsCreated.Inc()
}

// IncEnrollmentsCompleted counts an enrollment reaching completion.
func (m *MetricsService) IncEnrollmentsCompleted() {
	if m == nil {
		return
	}
	m.enrollmentsCompleted.Inc()
}

// AddBookingsReaped counts stale bookings failed by the reaper.
func (m *MetricsService) AddBookingsReaped(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bookingsReaped.Add(float64(n))
}

// IncNotificationsFailed counts a notification that was dropped.
func (m *MetricsService) IncNotificationsFailed() {
	if m == nil {
		return
	}
	m.notificationsFailed.Inc()
}

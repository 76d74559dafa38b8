package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceCountsDomainEvents(t *testing.T) {
	m := NewMetricsService()

	m.RecordWebhookEvent("midtrans", "succeeded", OutcomeApplied)
	m.RecordWebhookEvent("midtrans", "succeeded", OutcomeApplied)
	m.IncEnrollmentsCompleted()
	m.AddBookingsReaped(3)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.Contains(t, body, `payment_webhook_events_total{kind="succeeded",outcome="applied",provider="midtrans"} 2`)
	assert.Contains(t, body, "enrollments_completed_total 1")
	assert.Contains(t, body, "bookings_reaped_total 3")
}

func TestMetricsServiceHandlerExposesRegistry(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/courses", http.StatusOK, 20*time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, "enrollments_created_total 0")
	// labelled series appear only once a child has been recorded
	assert.NotContains(t, body, "payment_webhook_events_total")

	m.RecordWebhookEvent("mercadopago", "other", OutcomeIgnored)
	w = httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `payment_webhook_events_total{kind="other",outcome="ignored",provider="mercadopago"} 1`)
}

func TestMetricsServiceNilIsSafe(t *testing.T) {
	var m *MetricsService
	m.RecordWebhookEvent("midtrans", "failed", OutcomeMarkedFailed)
	m.IncEnrollmentsCreated()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// ABOUTME: Tests for the Prometheus metrics wrapper
// ABOUTME: Covers counter movement, HTTP instrumentation, and nil-receiver safety

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_SessionGauge(t *testing.T) {
	m := New()

	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.sessionsActive))
}

func TestMetrics_BroadcastCounters(t *testing.T) {
	m := New()

	m.RecordBroadcast(3)
	m.RecordBroadcast(2)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.broadcasts))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.deliveries))
}

func TestMetrics_RejectionReasons(t *testing.T) {
	m := New()

	m.RecordMessageRejected(ReasonRateLimited)
	m.RecordMessageRejected(ReasonRateLimited)
	m.RecordMessageRejected(ReasonNotMember)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.messagesRejected.WithLabelValues(ReasonRateLimited)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.messagesRejected.WithLabelValues(ReasonNotMember)))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.messagesRejected.WithLabelValues(ReasonInvalid)))
}

func TestMetrics_InstrumentHandler(t *testing.T) {
	m := New()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/conversations", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := m.InstrumentHandler(mux)
	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	counter := m.httpRequests.WithLabelValues("GET", "GET /api/conversations", "200")
	assert.Equal(t, float64(1), testutil.ToFloat64(counter))
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *Metrics

	m.SessionOpened()
	m.SessionClosed()
	m.RecordBroadcast(1)
	m.RecordSlowConsumerDrop()
	m.RecordMessageRejected(ReasonInvalid)
	m.RecordMessagePersisted()

	handler := m.InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code, "nil metrics must pass requests through")

	assert.NotNil(t, m.Handler(), "nil metrics still serves a handler")
	assert.Nil(t, m.Registry())
}

func TestMetrics_ScrapeEndpoint(t *testing.T) {
	m := New()
	m.SessionOpened()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chatd_hub_sessions_active 1")
}

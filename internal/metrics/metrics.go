// ABOUTME: Prometheus metrics for the chat backend
// ABOUTME: Counters and gauges for sessions, fan-out, rejections, and HTTP timing

package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Rejection reasons recorded by RecordMessageRejected.
const (
	ReasonRateLimited = "rate_limited"
	ReasonNotMember   = "not_member"
	ReasonInvalid     = "invalid"
)

// Metrics holds the process collectors. A nil *Metrics is valid and records
// nothing, so callers never need to branch on whether metrics are enabled.
type Metrics struct {
	registry *prometheus.Registry

	sessionsActive    prometheus.Gauge
	broadcasts        prometheus.Counter
	deliveries        prometheus.Counter
	slowConsumerDrops prometheus.Counter
	messagesRejected  *prometheus.CounterVec
	messagesPersisted prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatd",
		Subsystem: "hub",
		Name:      "sessions_active",
		Help:      "Number of connected WebSocket sessions",
	})

	m.broadcasts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chatd",
		Subsystem: "hub",
		Name:      "broadcasts_total",
		Help:      "Total events fanned out to conversation subscribers",
	})

	m.deliveries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chatd",
		Subsystem: "hub",
		Name:      "deliveries_total",
		Help:      "Total per-session deliveries across all broadcasts",
	})

	m.slowConsumerDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chatd",
		Subsystem: "hub",
		Name:      "slow_consumer_drops_total",
		Help:      "Sessions dropped because their outbound queue overflowed",
	})

	m.messagesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatd",
		Subsystem: "hub",
		Name:      "messages_rejected_total",
		Help:      "Inbound messages rejected before persistence",
	}, []string{"reason"})

	m.messagesPersisted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chatd",
		Subsystem: "store",
		Name:      "messages_persisted_total",
		Help:      "Messages written to the log",
	})

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatd",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chatd",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"method", "route"})

	m.registry.MustRegister(
		m.sessionsActive,
		m.broadcasts,
		m.deliveries,
		m.slowConsumerDrops,
		m.messagesRejected,
		m.messagesPersisted,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

// RecordBroadcast records one fan-out and how many sessions received it.
func (m *Metrics) RecordBroadcast(recipients int) {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
	m.deliveries.Add(float64(recipients))
}

// RecordSlowConsumerDrop records a session dropped for not keeping up.
func (m *Metrics) RecordSlowConsumerDrop() {
	if m == nil {
		return
	}
	m.slowConsumerDrops.Inc()
}

// RecordMessageRejected records an inbound message rejected for the reason.
func (m *Metrics) RecordMessageRejected(reason string) {
	if m == nil {
		return
	}
	m.messagesRejected.WithLabelValues(reason).Inc()
}

// RecordMessagePersisted records a message written to the log.
func (m *Metrics) RecordMessagePersisted() {
	if m == nil {
		return
	}
	m.messagesPersisted.Inc()
}

// Handler returns the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack forwards to the underlying writer. The WebSocket upgrade needs it
// when the endpoint sits behind instrumentation.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

// InstrumentHandler wraps an http.Handler and records request counts and
// latency labeled by the matched route pattern. With a nil receiver the
// handler passes through untouched.
func (m *Metrics) InstrumentHandler(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

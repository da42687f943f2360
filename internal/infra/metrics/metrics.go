// Package metrics defines the prometheus collectors exported by kbchat.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kbchat"

// Outcome labels shared by the credential and chat counters.
const (
	OutcomeSuccess     = "success"
	OutcomeDuplicate   = "duplicate"
	OutcomeDenied      = "denied"
	OutcomeInvalid     = "invalid"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// Metrics bundles all collectors. A nil *Metrics is valid and records nothing,
// so services can be built without a registry in tests.
type Metrics struct {
	registry *prometheus.Registry

	Registrations    *prometheus.CounterVec
	Logins           *prometheus.CounterVec
	SessionsStarted  prometheus.Counter
	SessionsEnded    prometheus.Counter
	ChatQuestions    *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPRequestTimes *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with the Go runtime and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credentials",
			Name:      "registrations_total",
			Help:      "User registrations by outcome.",
		}, []string{"outcome"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credentials",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "started_total",
			Help:      "Sessions started.",
		}),
		SessionsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "ended_total",
			Help:      "Sessions ended by logout.",
		}),
		ChatQuestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "questions_total",
			Help:      "Questions forwarded to the knowledge service by outcome.",
		}, []string{"outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		HTTPRequestTimes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Registrations,
		m.Logins,
		m.SessionsStarted,
		m.SessionsEnded,
		m.ChatQuestions,
		m.HTTPRequests,
		m.HTTPRequestTimes,
	)

	return m
}

// Handler returns the /metrics exposition handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}

// Registration counts one registration outcome.
func (m *Metrics) Registration(outcome string) {
	if m == nil {
		return
	}

	m.Registrations.WithLabelValues(outcome).Inc()
}

// Login counts one login outcome.
func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}

	m.Logins.WithLabelValues(outcome).Inc()
}

// SessionStarted counts a new session.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}

	m.SessionsStarted.Inc()
}

// SessionEnded counts a session destroyed by logout.
func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}

	m.SessionsEnded.Inc()
}

// ChatQuestion counts one chat question outcome.
func (m *Metrics) ChatQuestion(outcome string) {
	if m == nil {
		return
	}

	m.ChatQuestions.WithLabelValues(outcome).Inc()
}

// HTTPRequest records one served HTTP request.
func (m *Metrics) HTTPRequest(method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.HTTPRequestTimes.WithLabelValues(method).Observe(elapsed.Seconds())
}

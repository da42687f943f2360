package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/kbchat/internal/infra/metrics"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	m := metrics.New()

	m.Registration(metrics.OutcomeSuccess)
	m.Registration(metrics.OutcomeDuplicate)
	m.Registration(metrics.OutcomeDuplicate)
	m.Login(metrics.OutcomeDenied)
	m.SessionStarted()
	m.SessionEnded()
	m.ChatQuestion(metrics.OutcomeSuccess)
	m.HTTPRequest(http.MethodPost, http.StatusCreated, 10*time.Millisecond)

	assert.InDelta(t, 1, testutil.ToFloat64(m.Registrations.WithLabelValues(metrics.OutcomeSuccess)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.Registrations.WithLabelValues(metrics.OutcomeDuplicate)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Logins.WithLabelValues(metrics.OutcomeDenied)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SessionsStarted), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SessionsEnded), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ChatQuestions.WithLabelValues(metrics.OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.HTTPRequests.WithLabelValues(http.MethodPost, "201")), 0)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.Registration(metrics.OutcomeSuccess)
		m.Login(metrics.OutcomeSuccess)
		m.SessionStarted()
		m.SessionEnded()
		m.ChatQuestion(metrics.OutcomeError)
		m.HTTPRequest(http.MethodGet, http.StatusOK, time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.Login(metrics.OutcomeSuccess)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `kbchat_credentials_logins_total{outcome="success"} 1`)
}

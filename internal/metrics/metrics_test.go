package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordExchange(t *testing.T) {
	m := New()
	m.RecordExchange("groq", "success")
	m.RecordExchange("groq", "success")
	m.RecordExchange("gemini", "quota_exceeded")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.exchanges.WithLabelValues("groq", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exchanges.WithLabelValues("gemini", "quota_exceeded")))
}

func TestActiveSessionsGauge(t *testing.T) {
	m := New()
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeSessions))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordExchange("groq", "success")
		m.ObserveProvider("groq", true, time.Second)
		m.RecordRateLimited("ws")
		m.SessionOpened()
		m.SessionClosed()
		m.ObserveHTTP("GET", "/health", 200, time.Millisecond)
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.RecordRateLimited("http")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `ai_chat_rate_limited_total{surface="http"} 1`)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RunStarted()
		m.RunFinished("complete", time.Second)
		m.ObserveCall("watcher", "ok", time.Second)
		m.ObserveUpload("video", time.Second)
		m.ParseFallback()
		m.CountContradiction("critical")
		m.HTTPRequest("/api/analyze", 200)
	})
}

func TestCounters(t *testing.T) {
	m := New()

	m.RunStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsInFlight))
	m.RunFinished("complete", 3*time.Second)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunsInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("complete")))

	m.ParseFallback()
	m.ParseFallback()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ParseFallbacks))

	m.HTTPRequest("/api/analyze", 400)
	m.HTTPRequest("/api/analyze", 413)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/analyze", "4xx")))
}

func TestHandlerExposesFallbackCounter(t *testing.T) {
	m := New()
	m.ParseFallback()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "veragate_audit_parse_fallbacks_total 1")
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics defines the Prometheus instruments exported on /metrics.
// All methods are safe on a nil *Metrics so components can run without a
// registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "veragate"

// Metrics holds the service instruments.
type Metrics struct {
	reg prometheus.Gatherer

	RunsTotal      *prometheus.CounterVec
	RunsInFlight   prometheus.Gauge
	RunDuration    prometheus.Histogram
	ProviderCalls  *prometheus.CounterVec
	ProviderTime   *prometheus.HistogramVec
	UploadWait     *prometheus.HistogramVec
	ParseFallbacks prometheus.Counter
	Contradictions *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
}

// New registers the instruments on a fresh registry that also carries the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWith(reg, reg)
}

// NewWith registers the instruments on r and serves them from g.
func NewWith(r prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	f := promauto.With(r)
	return &Metrics{
		reg: g,
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Completed audit runs by terminal status",
			},
			[]string{"status"},
		),
		RunsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "runs_in_flight",
				Help:      "Audit runs currently streaming",
			},
		),
		RunDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall-clock time of one audit run",
				Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
			},
		),
		ProviderCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_calls_total",
				Help:      "Inference calls by stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
		ProviderTime: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_call_duration_seconds",
				Help:      "Inference call latency by stage",
				Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"stage"},
		),
		UploadWait: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upload_ready_seconds",
				Help:      "Time from upload start until the provider reports the file ready",
				Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"kind"},
		),
		ParseFallbacks: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_parse_fallbacks_total",
				Help:      "Auditor responses replaced by the default result because they could not be parsed",
			},
		),
		Contradictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "contradictions_total",
				Help:      "Contradictions reported by severity",
			},
			[]string{"severity"},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.RunsInFlight.Inc()
}

func (m *Metrics) RunFinished(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RunsInFlight.Dec()
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCall(stage, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ProviderCalls.WithLabelValues(stage, outcome).Inc()
	m.ProviderTime.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveUpload(kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.UploadWait.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) ParseFallback() {
	if m == nil {
		return
	}
	m.ParseFallbacks.Inc()
}

func (m *Metrics) CountContradiction(severity string) {
	if m == nil {
		return
	}
	m.Contradictions.WithLabelValues(severity).Inc()
}

func (m *Metrics) HTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, statusText(code)).Inc()
}

func statusText(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "flipbook"

// PrometheusMetrics exposes pipeline and API counters on /metrics
type PrometheusMetrics struct {
	registry *prometheus.Registry

	generations        *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	tokens             *prometheus.CounterVec
	aborts             prometheus.Counter
	frameRenders       *prometheus.CounterVec
	apiRequests        *prometheus.CounterVec
}

// NewPrometheusMetrics creates the collectors on a dedicated registry
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		registry: registry,
		generations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "generations_total",
			Help:      "Storyboard generation calls by model and outcome.",
		}, []string{"model", "outcome"}),
		generationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: promNamespace,
			Name:      "generation_duration_seconds",
			Help:      "Duration of storyboard generation calls.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 60, 90, 120},
		}, []string{"outcome"}),
		tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "generation_tokens_total",
			Help:      "Tokens reported by the generation service.",
		}, []string{"model", "direction"}),
		aborts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "generation_aborts_total",
			Help:      "Explicit abort requests that cancelled an in-flight call.",
		}),
		frameRenders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "frame_renders_total",
			Help:      "Frame image renders by status.",
		}, []string{"status"}),
		apiRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "api_requests_total",
			Help:      "API requests by route and status code.",
		}, []string{"method", "route", "status"}),
	}
}

// RecordGeneration counts a generation outcome and observes its duration
func (m *PrometheusMetrics) RecordGeneration(model, outcome string, duration time.Duration) {
	m.generations.WithLabelValues(model, outcome).Inc()
	m.generationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordTokenUsage adds reported tokens
func (m *PrometheusMetrics) RecordTokenUsage(model string, inputTokens, outputTokens int) {
	m.tokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	m.tokens.WithLabelValues(model, "output").Add(float64(outputTokens))
}

// RecordAbort counts an abort that hit an in-flight call
func (m *PrometheusMetrics) RecordAbort() {
	m.aborts.Inc()
}

// RecordFrameRenders counts rendered and failed frames
func (m *PrometheusMetrics) RecordFrameRenders(rendered, failed int) {
	m.frameRenders.WithLabelValues("ok").Add(float64(rendered))
	m.frameRenders.WithLabelValues("error").Add(float64(failed))
}

// RecordAPIRequest counts an API request
func (m *PrometheusMetrics) RecordAPIRequest(method, route string, statusCode int) {
	m.apiRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry for tests and embedding
func (m *PrometheusMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

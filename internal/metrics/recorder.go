package metrics

import (
	"context"
	"time"
)

// Recorder fans metrics out to every configured backend. Nil backends are skipped.
type Recorder struct {
	cloudwatch *Client
	sentry     *SentryMetrics
	prometheus *PrometheusMetrics
}

// NewRecorder creates a recorder over the given backends
func NewRecorder(cloudwatch *Client, sentry *SentryMetrics, prometheus *PrometheusMetrics) *Recorder {
	return &Recorder{
		cloudwatch: cloudwatch,
		sentry:     sentry,
		prometheus: prometheus,
	}
}

// RecordGeneration records one storyboard generation call
func (r *Recorder) RecordGeneration(ctx context.Context, model, outcome string, duration time.Duration, inputTokens, outputTokens int) {
	if r == nil {
		return
	}
	if r.cloudwatch != nil {
		r.cloudwatch.RecordGeneration(outcome, duration)
		if outcome == outcomeSuccess {
			r.cloudwatch.RecordTokenUsage(model, inputTokens, outputTokens)
		}
	}
	if r.sentry != nil {
		r.sentry.RecordGeneration(ctx, outcome, duration)
		if outcome == outcomeSuccess {
			r.sentry.RecordTokenUsage(ctx, model, inputTokens, outputTokens)
		}
	}
	if r.prometheus != nil {
		r.prometheus.RecordGeneration(model, outcome, duration)
		if outcome == outcomeSuccess {
			r.prometheus.RecordTokenUsage(model, inputTokens, outputTokens)
		}
	}
}

// RecordAbort records an abort that cancelled an in-flight call
func (r *Recorder) RecordAbort() {
	if r == nil || r.prometheus == nil {
		return
	}
	r.prometheus.RecordAbort()
}

// RecordFrameRenders records a batch of frame renders
func (r *Recorder) RecordFrameRenders(ctx context.Context, rendered, failed int, duration time.Duration) {
	if r == nil {
		return
	}
	if r.cloudwatch != nil {
		r.cloudwatch.RecordFrameRenders(rendered, failed)
	}
	if r.sentry != nil {
		r.sentry.RecordPerformanceMetric(ctx, "frames.render", duration, map[string]interface{}{
			"rendered": rendered,
			"failed":   failed,
		})
	}
	if r.prometheus != nil {
		r.prometheus.RecordFrameRenders(rendered, failed)
	}
}

// RecordAPIRequest records a completed API request
func (r *Recorder) RecordAPIRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	if r == nil {
		return
	}
	if r.cloudwatch != nil {
		r.cloudwatch.RecordAPIRequest(route, statusCode, duration)
	}
	if r.sentry != nil {
		r.sentry.RecordAPIRequest(ctx, route, statusCode, duration)
	}
	if r.prometheus != nil {
		r.prometheus.RecordAPIRequest(method, route, statusCode)
	}
}

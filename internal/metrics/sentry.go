package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	// HTTP status code threshold for considering a request successful
	successStatusCodeThreshold = http.StatusBadRequest

	outcomeSuccess = "success"
)

// SentryMetrics handles custom metrics for Sentry
type SentryMetrics struct {
	enabled bool
}

// NewSentryMetrics creates a new Sentry metrics client
func NewSentryMetrics() *SentryMetrics {
	return &SentryMetrics{
		enabled: true, // Always enabled if Sentry is configured
	}
}

// RecordAPIRequest records API request metrics
func (m *SentryMetrics) RecordAPIRequest(ctx context.Context, endpoint string, statusCode int, duration time.Duration) {
	if !m.enabled {
		return
	}

	span := sentry.StartSpan(ctx, "api.request")
	defer span.Finish()

	span.SetTag("endpoint", endpoint)
	span.SetTag("status_code", fmt.Sprintf("%d", statusCode))
	span.SetTag("success", fmt.Sprintf("%t", statusCode < successStatusCodeThreshold))

	span.SetData("duration_ms", duration.Milliseconds())
	span.SetData("endpoint", endpoint)
	span.SetData("status_code", statusCode)

	if statusCode < successStatusCodeThreshold {
		span.Status = sentry.SpanStatusOK
	} else {
		span.Status = sentry.SpanStatusInternalError
	}

	span.Description = fmt.Sprintf("API Request: %s", endpoint)
}

// RecordTokenUsage attaches token usage to the current transaction
func (m *SentryMetrics) RecordTokenUsage(ctx context.Context, model string, inputTokens, outputTokens int) {
	if !m.enabled {
		return
	}

	total := inputTokens + outputTokens
	if transaction := sentry.TransactionFromContext(ctx); transaction != nil {
		transaction.SetTag("generation.model", model)
		transaction.SetData("generation.total_tokens", total)
		transaction.SetData("generation.input_tokens", inputTokens)
		transaction.SetData("generation.output_tokens", outputTokens)
	}

	span := sentry.StartSpan(ctx, "generation.token_usage")
	defer span.Finish()

	span.SetTag("model", model)
	span.SetData("total_tokens", total)
	span.SetData("input_tokens", inputTokens)
	span.SetData("output_tokens", outputTokens)

	span.Status = sentry.SpanStatusOK
	span.Description = fmt.Sprintf("Token Usage: %s", model)
}

// RecordGeneration records a storyboard generation outcome
func (m *SentryMetrics) RecordGeneration(ctx context.Context, outcome string, duration time.Duration) {
	if !m.enabled {
		return
	}

	span := sentry.StartSpan(ctx, "generation.request")
	defer span.Finish()

	span.SetTag("outcome", outcome)
	span.SetData("duration_ms", duration.Milliseconds())

	if outcome == outcomeSuccess {
		span.Status = sentry.SpanStatusOK
	} else {
		span.Status = sentry.SpanStatusInternalError
	}

	span.Description = fmt.Sprintf("Generation Request: %s", outcome)
}

// RecordPerformanceMetric records performance data
func (m *SentryMetrics) RecordPerformanceMetric(ctx context.Context, operation string, duration time.Duration, metadata map[string]interface{}) {
	if !m.enabled {
		return
	}

	span := sentry.StartSpan(ctx, operation)
	span.Description = operation
	span.SetData("duration_ms", duration.Milliseconds())

	for key, value := range metadata {
		span.SetData(key, value)
	}

	span.Finish()
}

package storyboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Conceptual-Machines/flipbook-api/internal/logger"
	"github.com/Conceptual-Machines/flipbook-api/internal/prompt"
	"github.com/getsentry/sentry-go"
	"github.com/tidwall/gjson"
)

const (
	// maxErrorBodyBytes caps how much of a failed response body is kept
	maxErrorBodyBytes = 64 << 10
	maxPreviewChars   = 200
)

var errTimeout = errors.New("generation request timed out")

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config is the explicit configuration of a pipeline. Nothing is read from the environment at call time.
type Config struct {
	Endpoint       string
	Model          string
	APIKey         string
	Temperature    float64
	MaxTokens      int
	AttachmentPath string
	// Timeout bounds a single call; zero means no pipeline-level timeout.
	Timeout time.Duration
	// Strict enables deep validation of the parsed result for every call.
	Strict bool
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithHTTPClient replaces the HTTP client used to reach the generation service
func WithHTTPClient(client Doer) Option {
	return func(p *Pipeline) {
		p.client = client
	}
}

// WithLocators replaces the envelope strategies
func WithLocators(locators ...TextLocator) Option {
	return func(p *Pipeline) {
		p.locators = locators
	}
}

// Pipeline turns a story idea into a storyboard through the remote generation service.
//
// A pipeline allows at most one call in flight: starting a call cancels the previous one, and only
// the newest call updates the observable State. Use separate pipelines for independent concurrent calls.
type Pipeline struct {
	cfg      Config
	client   Doer
	prompts  *prompt.Builder
	locators []TextLocator

	mu     sync.Mutex
	epoch  uint64
	cancel context.CancelCauseFunc
	state  State
}

// NewPipeline creates a pipeline with the given configuration
func NewPipeline(cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		client:   http.DefaultClient,
		prompts:  prompt.NewPromptBuilder(),
		locators: DefaultLocators(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns a snapshot of the observable state
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Abort cancels the in-flight call, which then resolves with FailureAborted.
// It reports whether a call was in flight.
func (p *Pipeline) Abort() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel == nil {
		return false
	}
	p.cancel(ErrAborted)
	p.cancel = nil
	return true
}

// Generate runs one generation call. The caller must not pass an empty StoryIdea.
// Every failure is returned as a *Failure; nothing is retried.
func (p *Pipeline) Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	if p.cfg.APIKey == "" {
		f := newFailure(FailureMissingCredential, "generation API key is required")
		p.mu.Lock()
		p.state = State{Error: f}
		p.mu.Unlock()
		return nil, f
	}

	callCtx, epoch, release := p.begin(ctx)
	defer release()

	result, failure := p.run(callCtx, req)
	return p.finish(callCtx, epoch, result, failure)
}

// begin takes over the cancellation slot, superseding any call still in flight
func (p *Pipeline) begin(ctx context.Context) (context.Context, uint64, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel(ErrSuperseded)
	}
	p.epoch++

	callCtx, cancel := context.WithCancelCause(ctx)
	p.cancel = cancel
	p.state = State{Loading: true}

	release := func() { cancel(nil) }
	if p.cfg.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		callCtx, cancelTimeout = context.WithTimeoutCause(callCtx, p.cfg.Timeout, errTimeout)
		release = func() {
			cancelTimeout()
			cancel(nil)
		}
	}
	return callCtx, p.epoch, release
}

// finish publishes the outcome if this call still owns the slot
func (p *Pipeline) finish(ctx context.Context, epoch uint64, result *GenerationResult, failure *Failure) (*GenerationResult, error) {
	// A call whose slot was taken away resolves as aborted even if the response already arrived.
	if cause := context.Cause(ctx); failure == nil && ctx.Err() != nil && isAbort(cause) {
		result = nil
		failure = abortedFailure(cause)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if epoch == p.epoch {
		p.cancel = nil
		if failure != nil {
			p.state = State{Error: failure}
		} else {
			p.state = State{Data: result}
		}
	}

	if failure != nil {
		return nil, failure
	}
	return result, nil
}

// run performs the request and turns the response into a result
func (p *Pipeline) run(ctx context.Context, req *GenerationRequest) (*GenerationResult, *Failure) {
	startTime := time.Now()

	span := sentry.StartSpan(ctx, "storyboard.generate")
	span.SetTag("model", p.cfg.Model)
	defer span.Finish()

	body, err := p.buildRequestBody(req)
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, &Failure{Kind: FailureUnknown, Message: "failed to build request", Err: err}
	}

	logger.Info("Storyboard generation started", logger.Fields{
		"model":                p.cfg.Model,
		"previous_images":      len(req.PreviousImages),
		"max_frames_per_event": effectiveMaxFrames(req.MaxFramesPerEvent),
	})

	envelope, failure := p.send(ctx, body)
	if failure != nil {
		span.Status = sentry.SpanStatusInternalError
		span.SetTag("failure", string(failure.Kind))
		logger.Warn("Storyboard generation failed", logger.Fields{
			"model":       p.cfg.Model,
			"kind":        string(failure.Kind),
			"status_code": failure.StatusCode,
			"duration_ms": time.Since(startTime).Milliseconds(),
		})
		return nil, failure
	}

	result, failure := p.parse(envelope, req)
	if failure != nil {
		span.Status = sentry.SpanStatusInternalError
		span.SetTag("failure", string(failure.Kind))
		logger.Warn("Storyboard output rejected", logger.Fields{
			"model":       p.cfg.Model,
			"kind":        string(failure.Kind),
			"raw_preview": truncate(failure.RawText, maxPreviewChars),
		})
		return nil, failure
	}

	span.Status = sentry.SpanStatusOK
	logger.Info("Storyboard generation completed", logger.Fields{
		"model":         p.cfg.Model,
		"duration_ms":   time.Since(startTime).Milliseconds(),
		"events":        len(result.Events),
		"frames":        len(result.Frames),
		"input_tokens":  result.Usage.InputTokens,
		"output_tokens": result.Usage.OutputTokens,
	})
	return result, nil
}

// send posts the request and returns the parsed envelope
func (p *Pipeline) send(ctx context.Context, body *requestBody) (gjson.Result, *Failure) {
	payload, err := json.Marshal(body)
	if err != nil {
		return gjson.Result{}, &Failure{Kind: FailureUnknown, Message: "failed to encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, &Failure{Kind: FailureUnknown, Message: "failed to create request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.cfg.APIKey))

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return gjson.Result{}, transportFailure(ctx, err)
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil {
			logger.Debug("Failed to close response body", logger.Fields{"error": closeErr.Error()})
		}
	}()

	if httpResp.StatusCode < http.StatusOK || httpResp.StatusCode >= http.StatusMultipleChoices {
		text, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBodyBytes))
		return gjson.Result{}, &Failure{
			Kind:       FailureTransport,
			Message:    fmt.Sprintf("generation API error %d", httpResp.StatusCode),
			StatusCode: httpResp.StatusCode,
			Body:       string(text),
		}
	}

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return gjson.Result{}, transportFailure(ctx, err)
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, &Failure{
			Kind:    FailureUnknown,
			Message: "generation API returned a body that is not JSON",
			RawText: string(data),
		}
	}
	return gjson.ParseBytes(data), nil
}

// parse locates the assistant text and decodes the storyboard out of it
func (p *Pipeline) parse(envelope gjson.Result, req *GenerationRequest) (*GenerationResult, *Failure) {
	text, strategy, ok := locateAssistantText(envelope, p.locators)
	if !ok {
		f := newFailure(FailureNoAssistantText, "could not locate assistant text in response")
		f.RawText = envelope.Raw
		return nil, f
	}
	logger.Debug("Located assistant text", logger.Fields{"strategy": strategy, "length": len(text)})

	parsed, failure := extractJSON(text)
	if failure != nil {
		return nil, failure
	}
	obj, failure := asObject(parsed)
	if failure != nil {
		return nil, failure
	}

	result, decodeErr := decodeResult(obj)
	strict := p.cfg.Strict || req.Strict
	if decodeErr != nil {
		if strict {
			return nil, &Failure{Kind: FailureMalformedOutput, Message: "assistant output does not match the storyboard shape", Parsed: obj, Err: decodeErr}
		}
		logger.Warn("Storyboard output kept untyped", logger.Fields{"error": decodeErr.Error()})
	}

	if strict {
		if err := validateStrict(result, effectiveMaxFrames(req.MaxFramesPerEvent)); err != nil {
			return nil, &Failure{Kind: FailureMalformedOutput, Message: "assistant output failed strict validation", Parsed: obj, Err: err}
		}
	}

	result.Usage = extractUsage(envelope)
	return result, nil
}

// transportFailure classifies an error raised while talking to the service
func transportFailure(ctx context.Context, err error) *Failure {
	if ctx.Err() != nil {
		cause := context.Cause(ctx)
		if errors.Is(cause, errTimeout) || errors.Is(cause, context.DeadlineExceeded) {
			return &Failure{Kind: FailureTimeout, Message: "request timed out", Err: cause}
		}
		return abortedFailure(cause)
	}
	return &Failure{Kind: FailureUnknown, Message: "request failed", Err: err}
}

func isAbort(cause error) bool {
	return errors.Is(cause, ErrAborted) || errors.Is(cause, ErrSuperseded)
}

func abortedFailure(cause error) *Failure {
	return &Failure{Kind: FailureAborted, Message: "request aborted", Err: cause}
}

func effectiveMaxFrames(n int) int {
	if n < 1 {
		return DefaultMaxFramesPerEvent
	}
	return n
}

// truncate shortens s to at most maxLen bytes without splitting a rune
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

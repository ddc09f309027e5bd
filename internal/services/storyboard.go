package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Conceptual-Machines/flipbook-api/internal/logger"
	"github.com/Conceptual-Machines/flipbook-api/internal/metrics"
	"github.com/Conceptual-Machines/flipbook-api/internal/models"
	"github.com/Conceptual-Machines/flipbook-api/internal/observability"
	"github.com/Conceptual-Machines/flipbook-api/internal/storyboard"
)

const outcomeSuccess = "success"

// ErrEmptyStoryIdea is returned before any pipeline call when the story idea is blank
var ErrEmptyStoryIdea = errors.New("story_idea is required")

// PreviousImageSource loads continuity references from the page registry
type PreviousImageSource interface {
	PreviousImages(ctx context.Context, ownerID string, n int) ([]storyboard.PreviousImage, error)
}

// GenerationRecorder persists generation records
type GenerationRecorder interface {
	Log(ctx context.Context, entry *models.GenerationLog) error
}

// GenerateInput is one storyboard request on behalf of a user
type GenerateInput struct {
	OwnerID   string
	RequestID string
	Request   storyboard.GenerationRequest
	// UsePages fills PreviousImages from the last n pages when the request carries none
	UsePages int
}

// StoryboardService runs generation calls through the caller's session pipeline and records the outcome
type StoryboardService struct {
	sessions *SessionService
	pages    PreviousImageSource
	logs     GenerationRecorder
	recorder *metrics.Recorder
	langfuse *observability.LangfuseClient
	model    string
}

// NewStoryboardService wires the generation dependencies. pages, logs and recorder may be nil.
func NewStoryboardService(
	sessions *SessionService,
	pages PreviousImageSource,
	logs GenerationRecorder,
	recorder *metrics.Recorder,
	langfuse *observability.LangfuseClient,
	model string,
) *StoryboardService {
	if langfuse == nil {
		langfuse = observability.GetClient()
	}
	return &StoryboardService{
		sessions: sessions,
		pages:    pages,
		logs:     logs,
		recorder: recorder,
		langfuse: langfuse,
		model:    model,
	}
}

// Generate runs one call for the owner; a newer call by the same owner aborts this one
func (s *StoryboardService) Generate(ctx context.Context, in GenerateInput) (*storyboard.GenerationResult, error) {
	if strings.TrimSpace(in.Request.StoryIdea) == "" {
		return nil, ErrEmptyStoryIdea
	}

	req := in.Request
	if len(req.PreviousImages) == 0 && in.UsePages > 0 && s.pages != nil {
		refs, err := s.pages.PreviousImages(ctx, in.OwnerID, in.UsePages)
		if err != nil {
			return nil, err
		}
		req.PreviousImages = refs
	}

	trace := s.langfuse.StartTrace(ctx, "storyboard.generate", map[string]interface{}{
		"request_id": in.RequestID,
		"owner_id":   in.OwnerID,
	})
	generation := trace.Generation("storyboard", map[string]interface{}{
		"previous_images":      len(req.PreviousImages),
		"max_frames_per_event": req.MaxFramesPerEvent,
	})

	startTime := time.Now()
	result, err := s.sessions.Generate(ctx, in.OwnerID, &req)
	duration := time.Since(startTime)

	outcome := outcomeSuccess
	var usage storyboard.Usage
	if err != nil {
		outcome = string(storyboard.KindOf(err))
		generation.SetLevel("ERROR")
		generation.Metadata(map[string]interface{}{"failure_kind": outcome, "error": err.Error()})
	} else {
		usage = result.Usage
		generation.LogStoryboardGeneration(s.model, req.StoryIdea, result.Raw, usage.InputTokens, usage.OutputTokens, nil)
	}
	generation.Finish()
	trace.Finish()

	s.recorder.RecordGeneration(ctx, s.model, outcome, duration, usage.InputTokens, usage.OutputTokens)
	logger.LogGenerationOutcome(ctx, s.model, outcome, duration, usage.InputTokens, usage.OutputTokens, logger.Fields{
		"request_id": in.RequestID,
		"user_id":    in.OwnerID,
	})
	s.record(ctx, in, req.StoryIdea, outcome, duration, result)

	return result, err
}

// Abort aborts the owner's in-flight call
func (s *StoryboardService) Abort(ownerID string) bool {
	aborted := s.sessions.Abort(ownerID)
	if aborted {
		s.recorder.RecordAbort()
		logger.Info("Storyboard generation aborted", logger.Fields{"user_id": ownerID})
	}
	return aborted
}

// State returns the owner's observable state
func (s *StoryboardService) State(ownerID string) storyboard.State {
	return s.sessions.State(ownerID)
}

// record writes the generation log; failures are logged and not returned
func (s *StoryboardService) record(ctx context.Context, in GenerateInput, storyIdea, outcome string, duration time.Duration, result *storyboard.GenerationResult) {
	if s.logs == nil {
		return
	}

	entry := &models.GenerationLog{
		RequestID:  in.RequestID,
		OwnerID:    in.OwnerID,
		Model:      s.model,
		Status:     models.GenerationStatusSuccess,
		StoryIdea:  storyIdea,
		DurationMS: int(duration.Milliseconds()),
	}
	if outcome != outcomeSuccess {
		entry.Status = models.GenerationStatusFailed
		entry.FailureKind = outcome
	}
	if result != nil {
		entry.InputTokens = result.Usage.InputTokens
		entry.OutputTokens = result.Usage.OutputTokens
		entry.EstimatedCostUSD = observability.CalculateCost(s.model, result.Usage.InputTokens, result.Usage.OutputTokens)
		entry.Events = len(result.Events)
		entry.Frames = len(result.Frames)
	}

	// The request context may already be cancelled by an abort.
	if err := s.logs.Log(context.WithoutCancel(ctx), entry); err != nil {
		logger.Error("Failed to record generation", err, logger.Fields{"request_id": in.RequestID})
	}
}

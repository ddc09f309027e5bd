package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Conceptual-Machines/flipbook-api/internal/api/middleware"
	"github.com/Conceptual-Machines/flipbook-api/internal/models"
	"github.com/Conceptual-Machines/flipbook-api/internal/services"
	"github.com/Conceptual-Machines/flipbook-api/internal/storyboard"
	"github.com/gin-gonic/gin"
)

const maxHistoryPageSize = 100

// StoryboardGenerator runs and controls generation calls per user
type StoryboardGenerator interface {
	Generate(ctx context.Context, in services.GenerateInput) (*storyboard.GenerationResult, error)
	Abort(ownerID string) bool
	State(ownerID string) storyboard.State
}

// GenerationHistory lists past generation calls
type GenerationHistory interface {
	Recent(ctx context.Context, ownerID string, limit int) ([]models.GenerationLog, error)
}

type StoryboardHandler struct {
	generator StoryboardGenerator
	history   GenerationHistory
}

// NewStoryboardHandler creates the storyboard handler; history may be nil
func NewStoryboardHandler(generator StoryboardGenerator, history GenerationHistory) *StoryboardHandler {
	return &StoryboardHandler{generator: generator, history: history}
}

type GenerateStoryboardRequest struct {
	StoryIdea         string                     `json:"story_idea" binding:"required"`
	PreviousImages    []storyboard.PreviousImage `json:"previous_images" binding:"omitempty,dive"`
	UsePages          int                        `json:"use_pages" binding:"gte=0,lte=50"`
	MaxFramesPerEvent int                        `json:"max_frames_per_event" binding:"gte=0"`
	AttachmentPath    string                     `json:"attachment_path"`
	SystemOverride    string                     `json:"system_override"`
	Strict            bool                       `json:"strict"`
}

// StoryboardResponse is a generation result including the exact object the model returned
type StoryboardResponse struct {
	Story   string             `json:"story"`
	Events  []storyboard.Event `json:"events"`
	Frames  []storyboard.Frame `json:"frames"`
	Prompts []string           `json:"prompts"`
	Error   string             `json:"error,omitempty"`
	Raw     map[string]any     `json:"raw"`
	Usage   storyboard.Usage   `json:"usage"`
}

// StateResponse mirrors storyboard.State with full results
type StateResponse struct {
	Loading bool                `json:"loading"`
	Error   *storyboard.Failure `json:"error"`
	Data    *StoryboardResponse `json:"data"`
}

// Generate handles POST /api/v1/storyboard/generations
func (h *StoryboardHandler) Generate(c *gin.Context) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req GenerateStoryboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.generator.Generate(c.Request.Context(), services.GenerateInput{
		OwnerID:   ownerID,
		RequestID: c.GetString("request_id"),
		UsePages:  req.UsePages,
		Request: storyboard.GenerationRequest{
			StoryIdea:         req.StoryIdea,
			PreviousImages:    req.PreviousImages,
			MaxFramesPerEvent: req.MaxFramesPerEvent,
			AttachmentPath:    req.AttachmentPath,
			SystemOverride:    req.SystemOverride,
			Strict:            req.Strict,
		},
	})
	if err != nil {
		respondGenerationError(c, err)
		return
	}

	c.JSON(http.StatusOK, toStoryboardResponse(result))
}

// Abort handles POST /api/v1/storyboard/abort
func (h *StoryboardHandler) Abort(c *gin.Context) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"aborted": h.generator.Abort(ownerID)})
}

// State handles GET /api/v1/storyboard/state
func (h *StoryboardHandler) State(c *gin.Context) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	state := h.generator.State(ownerID)
	c.JSON(http.StatusOK, StateResponse{
		Loading: state.Loading,
		Error:   state.Error,
		Data:    toStoryboardResponse(state.Data),
	})
}

// History handles GET /api/v1/storyboard/history
func (h *StoryboardHandler) History(c *gin.Context) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Generation history requires a database"})
		return
	}

	var query struct {
		Limit int `form:"limit" binding:"gte=0"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if query.Limit == 0 || query.Limit > maxHistoryPageSize {
		query.Limit = maxHistoryPageSize
	}

	logs, err := h.history.Recent(c.Request.Context(), ownerID, query.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load generation history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"generations": logs})
}

func respondGenerationError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrEmptyStoryIdea) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	failure, ok := storyboard.AsFailure(err)
	if !ok {
		failure = &storyboard.Failure{Kind: storyboard.FailureUnknown, Message: "generation failed", Err: err}
	}
	c.JSON(failureStatus(failure.Kind), gin.H{"error": failure})
}

func failureStatus(kind storyboard.FailureKind) int {
	switch kind {
	case storyboard.FailureMissingCredential:
		return http.StatusServiceUnavailable
	case storyboard.FailureTransport:
		return http.StatusBadGateway
	case storyboard.FailureAborted:
		return http.StatusConflict
	case storyboard.FailureTimeout:
		return http.StatusGatewayTimeout
	case storyboard.FailureNoAssistantText, storyboard.FailureInvalidJSON,
		storyboard.FailureNoJSONFound, storyboard.FailureMalformedOutput:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func toStoryboardResponse(result *storyboard.GenerationResult) *StoryboardResponse {
	if result == nil {
		return nil
	}
	return &StoryboardResponse{
		Story:   result.Story,
		Events:  result.Events,
		Frames:  result.Frames,
		Prompts: result.Prompts,
		Error:   result.Error,
		Raw:     result.Raw,
		Usage:   result.Usage,
	}
}

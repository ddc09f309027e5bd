package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/Conceptual-Machines/flipbook-api/internal/models"
	"github.com/Conceptual-Machines/flipbook-api/internal/services"
	"github.com/Conceptual-Machines/flipbook-api/internal/storyboard"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storyboardRouter(gen StoryboardGenerator, history GenerationHistory) *gin.Engine {
	router := newTestRouter()
	h := NewStoryboardHandler(gen, history)
	router.POST("/api/v1/storyboard/generations", h.Generate)
	router.POST("/api/v1/storyboard/abort", h.Abort)
	router.GET("/api/v1/storyboard/state", h.State)
	router.GET("/api/v1/storyboard/history", h.History)
	return router
}

func TestGenerateStoryboardSuccess(t *testing.T) {
	gen := &fakeGenerator{result: &storyboard.GenerationResult{
		Story:   "A fox finds a lantern.",
		Prompts: []string{"fox, lantern"},
		Raw:     map[string]any{"story": "A fox finds a lantern.", "extra": true},
		Usage:   storyboard.Usage{InputTokens: 10, OutputTokens: 20},
	}}
	router := storyboardRouter(gen, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/storyboard/generations", gin.H{
		"story_idea":           "a fox and a lantern",
		"max_frames_per_event": 2,
		"use_pages":            3,
		"strict":               true,
	})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "A fox finds a lantern.", body["story"])
	assert.Equal(t, true, body["raw"].(map[string]any)["extra"])
	assert.InDelta(t, 20, body["usage"].(map[string]any)["output_tokens"], 0)

	require.Len(t, gen.inputs, 1)
	in := gen.inputs[0]
	assert.Equal(t, "anonymous", in.OwnerID)
	assert.Equal(t, 3, in.UsePages)
	assert.Equal(t, "a fox and a lantern", in.Request.StoryIdea)
	assert.Equal(t, 2, in.Request.MaxFramesPerEvent)
	assert.True(t, in.Request.Strict)
}

func TestGenerateStoryboardRejectsMissingIdea(t *testing.T) {
	gen := &fakeGenerator{}
	router := storyboardRouter(gen, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/storyboard/generations", gin.H{"max_frames_per_event": 2})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, gen.inputs)
}

func TestGenerateStoryboardBlankIdea(t *testing.T) {
	gen := &fakeGenerator{err: services.ErrEmptyStoryIdea}
	router := storyboardRouter(gen, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/storyboard/generations", gin.H{"story_idea": "   "})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "story_idea is required")
}

func TestGenerateStoryboardFailureStatus(t *testing.T) {
	tests := []struct {
		kind storyboard.FailureKind
		want int
	}{
		{storyboard.FailureMissingCredential, http.StatusServiceUnavailable},
		{storyboard.FailureTransport, http.StatusBadGateway},
		{storyboard.FailureAborted, http.StatusConflict},
		{storyboard.FailureTimeout, http.StatusGatewayTimeout},
		{storyboard.FailureNoAssistantText, http.StatusUnprocessableEntity},
		{storyboard.FailureInvalidJSON, http.StatusUnprocessableEntity},
		{storyboard.FailureNoJSONFound, http.StatusUnprocessableEntity},
		{storyboard.FailureMalformedOutput, http.StatusUnprocessableEntity},
		{storyboard.FailureUnknown, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			gen := &fakeGenerator{err: &storyboard.Failure{Kind: tt.kind, Message: "failed", RawText: "raw text"}}
			router := storyboardRouter(gen, nil)

			w := doJSON(t, router, http.MethodPost, "/api/v1/storyboard/generations", gin.H{"story_idea": "idea"})

			assert.Equal(t, tt.want, w.Code)
			failure := decodeBody(t, w)["error"].(map[string]any)
			assert.Equal(t, string(tt.kind), failure["kind"])
			assert.Equal(t, "raw text", failure["raw"])
		})
	}
}

func TestGenerateStoryboardTransportFailureCarriesStatus(t *testing.T) {
	gen := &fakeGenerator{err: &storyboard.Failure{Kind: storyboard.FailureTransport, Message: "generation API error 500", StatusCode: 500, Body: "server error"}}
	router := storyboardRouter(gen, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/storyboard/generations", gin.H{"story_idea": "idea"})

	require.Equal(t, http.StatusBadGateway, w.Code)
	failure := decodeBody(t, w)["error"].(map[string]any)
	assert.InDelta(t, 500, failure["status_code"], 0)
	assert.Equal(t, "server error", failure["body"])
}

func TestGenerateStoryboardForeignError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("database unavailable")}
	router := storyboardRouter(gen, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/storyboard/generations", gin.H{"story_idea": "idea"})

	require.Equal(t, http.StatusInternalServerError, w.Code)
	failure := decodeBody(t, w)["error"].(map[string]any)
	assert.Equal(t, "unknown", failure["kind"])
	assert.Equal(t, "database unavailable", failure["cause"])
}

func TestAbortStoryboard(t *testing.T) {
	for _, aborted := range []bool{true, false} {
		router := storyboardRouter(&fakeGenerator{aborted: aborted}, nil)

		w := doJSON(t, router, http.MethodPost, "/api/v1/storyboard/abort", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, aborted, decodeBody(t, w)["aborted"])
	}
}

func TestStoryboardState(t *testing.T) {
	t.Run("idle", func(t *testing.T) {
		router := storyboardRouter(&fakeGenerator{}, nil)

		w := doJSON(t, router, http.MethodGet, "/api/v1/storyboard/state", nil)

		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, false, body["loading"])
		assert.Nil(t, body["error"])
		assert.Nil(t, body["data"])
	})

	t.Run("loading", func(t *testing.T) {
		router := storyboardRouter(&fakeGenerator{state: storyboard.State{Loading: true}}, nil)

		w := doJSON(t, router, http.MethodGet, "/api/v1/storyboard/state", nil)

		assert.Equal(t, true, decodeBody(t, w)["loading"])
	})

	t.Run("data", func(t *testing.T) {
		state := storyboard.State{Data: &storyboard.GenerationResult{Story: "s", Raw: map[string]any{"story": "s"}}}
		router := storyboardRouter(&fakeGenerator{state: state}, nil)

		w := doJSON(t, router, http.MethodGet, "/api/v1/storyboard/state", nil)

		data := decodeBody(t, w)["data"].(map[string]any)
		assert.Equal(t, "s", data["story"])
		assert.Equal(t, "s", data["raw"].(map[string]any)["story"])
	})

	t.Run("error", func(t *testing.T) {
		state := storyboard.State{Error: &storyboard.Failure{Kind: storyboard.FailureAborted, Message: "request aborted"}}
		router := storyboardRouter(&fakeGenerator{state: state}, nil)

		w := doJSON(t, router, http.MethodGet, "/api/v1/storyboard/state", nil)

		failure := decodeBody(t, w)["error"].(map[string]any)
		assert.Equal(t, "aborted", failure["kind"])
	})
}

func TestStoryboardHistory(t *testing.T) {
	t.Run("without database", func(t *testing.T) {
		router := storyboardRouter(&fakeGenerator{}, nil)

		w := doJSON(t, router, http.MethodGet, "/api/v1/storyboard/history", nil)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("limit is capped", func(t *testing.T) {
		history := &fakeHistory{logs: []models.GenerationLog{{RequestID: "r1", Status: models.GenerationStatusSuccess}}}
		router := storyboardRouter(&fakeGenerator{}, history)

		w := doJSON(t, router, http.MethodGet, "/api/v1/storyboard/history?limit=500", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, maxHistoryPageSize, history.lastLimit)
		assert.Len(t, decodeBody(t, w)["generations"], 1)
	})
}

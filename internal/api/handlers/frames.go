package handlers

import (
	"context"
	"net/http"

	"github.com/Conceptual-Machines/flipbook-api/internal/images"
	"github.com/Conceptual-Machines/flipbook-api/internal/services"
	"github.com/gin-gonic/gin"
)

const maxFramesPerRender = 12

// FrameRenderer renders storyboard frames into images
type FrameRenderer interface {
	RenderFrames(ctx context.Context, frames []images.FrameSpec) ([]services.RenderedFrame, error)
}

type FrameHandler struct {
	renderer FrameRenderer
}

// NewFrameHandler creates the frame handler; a nil renderer disables rendering
func NewFrameHandler(renderer FrameRenderer) *FrameHandler {
	return &FrameHandler{renderer: renderer}
}

type RenderFramesRequest struct {
	Frames []images.FrameSpec `json:"frames" binding:"required,min=1,dive"`
}

// Render handles POST /api/v1/frames/render
func (h *FrameHandler) Render(c *gin.Context) {
	if h.renderer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Frame rendering is not configured"})
		return
	}

	var req RenderFramesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Frames) > maxFramesPerRender {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Too many frames in one render request"})
		return
	}

	frames, err := h.renderer.RenderFrames(c.Request.Context(), req.Frames)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"frames": frames})
}

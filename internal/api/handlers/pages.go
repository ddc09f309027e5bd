package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Conceptual-Machines/flipbook-api/internal/api/middleware"
	"github.com/Conceptual-Machines/flipbook-api/internal/models"
	"github.com/Conceptual-Machines/flipbook-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PageStore is the flipbook page registry
type PageStore interface {
	List(ctx context.Context, ownerID string) ([]models.Page, error)
	Add(ctx context.Context, ownerID, url, shortDescription string) (*models.Page, error)
	Reorder(ctx context.Context, ownerID string, ids []uuid.UUID) ([]models.Page, error)
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
	DeleteAll(ctx context.Context, ownerID string) (int64, error)
}

type PageHandler struct {
	pages PageStore
}

func NewPageHandler(pages PageStore) *PageHandler {
	return &PageHandler{pages: pages}
}

type AddPageRequest struct {
	URL              string `json:"url" binding:"required,url"`
	ShortDescription string `json:"short_description" binding:"max=500"`
}

type ReorderPagesRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required"`
}

// List handles GET /api/v1/pages
func (h *PageHandler) List(c *gin.Context) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	pages, err := h.pages.List(c.Request.Context(), ownerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list pages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pages": pages})
}

// Add handles POST /api/v1/pages
func (h *PageHandler) Add(c *gin.Context) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req AddPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	page, err := h.pages.Add(c.Request.Context(), ownerID, req.URL, req.ShortDescription)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add page"})
		return
	}
	c.JSON(http.StatusCreated, page)
}

// Reorder handles PUT /api/v1/pages/order
func (h *PageHandler) Reorder(c *gin.Context) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req ReorderPagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pages, err := h.pages.Reorder(c.Request.Context(), ownerID, req.IDs)
	if err != nil {
		if errors.Is(err, services.ErrInvalidOrder) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reorder pages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pages": pages})
}

// Delete handles DELETE /api/v1/pages/:id
func (h *PageHandler) Delete(c *gin.Context) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page ID"})
		return
	}

	if err := h.pages.Delete(c.Request.Context(), ownerID, id); err != nil {
		if errors.Is(err, services.ErrPageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Page not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete page"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Clear handles DELETE /api/v1/pages
func (h *PageHandler) Clear(c *gin.Context) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	deleted, err := h.pages.DeleteAll(c.Request.Context(), ownerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete pages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

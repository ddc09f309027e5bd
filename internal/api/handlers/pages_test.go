package handlers

import (
	"net/http"
	"testing"

	"github.com/Conceptual-Machines/flipbook-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pagesRouter(store PageStore) *gin.Engine {
	router := newTestRouter()
	h := NewPageHandler(store)
	router.GET("/api/v1/pages", h.List)
	router.POST("/api/v1/pages", h.Add)
	router.PUT("/api/v1/pages/order", h.Reorder)
	router.DELETE("/api/v1/pages/:id", h.Delete)
	router.DELETE("/api/v1/pages", h.Clear)
	return router
}

func TestAddAndListPages(t *testing.T) {
	store := &fakePageStore{}
	router := pagesRouter(store)

	w := doJSON(t, router, http.MethodPost, "/api/v1/pages", gin.H{
		"url":               "https://img.example.com/1.png",
		"short_description": "fox at dusk",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "anonymous", decodeBody(t, w)["owner_id"])

	w = doJSON(t, router, http.MethodGet, "/api/v1/pages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	pages := decodeBody(t, w)["pages"].([]any)
	require.Len(t, pages, 1)
	assert.Equal(t, "fox at dusk", pages[0].(map[string]any)["short_description"])
}

func TestAddPageValidation(t *testing.T) {
	tests := []struct {
		name string
		body gin.H
	}{
		{"missing url", gin.H{"short_description": "x"}},
		{"not a url", gin.H{"url": "not a url"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakePageStore{}
			w := doJSON(t, pagesRouter(store), http.MethodPost, "/api/v1/pages", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, store.pages)
		})
	}
}

func TestReorderPages(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	t.Run("ok", func(t *testing.T) {
		store := &fakePageStore{}
		w := doJSON(t, pagesRouter(store), http.MethodPut, "/api/v1/pages/order", gin.H{"ids": ids})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, ids, store.reordered)
	})

	t.Run("invalid order", func(t *testing.T) {
		store := &fakePageStore{orderErr: services.ErrInvalidOrder}
		w := doJSON(t, pagesRouter(store), http.MethodPut, "/api/v1/pages/order", gin.H{"ids": ids})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDeletePage(t *testing.T) {
	tests := []struct {
		name string
		path string
		err  error
		want int
	}{
		{"deleted", "/api/v1/pages/" + uuid.NewString(), nil, http.StatusNoContent},
		{"not found", "/api/v1/pages/" + uuid.NewString(), services.ErrPageNotFound, http.StatusNotFound},
		{"bad id", "/api/v1/pages/not-a-uuid", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, pagesRouter(&fakePageStore{deleteErr: tt.err}), http.MethodDelete, tt.path, nil)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestClearPages(t *testing.T) {
	store := &fakePageStore{}
	router := pagesRouter(store)
	doJSON(t, router, http.MethodPost, "/api/v1/pages", gin.H{"url": "https://img.example.com/1.png"})
	doJSON(t, router, http.MethodPost, "/api/v1/pages", gin.H{"url": "https://img.example.com/2.png"})

	w := doJSON(t, router, http.MethodDelete, "/api/v1/pages", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 2, decodeBody(t, w)["deleted"], 0)
	assert.Empty(t, store.pages)
}

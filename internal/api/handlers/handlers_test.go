package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/Conceptual-Machines/flipbook-api/internal/api/middleware"
	"github.com/Conceptual-Machines/flipbook-api/internal/images"
	"github.com/Conceptual-Machines/flipbook-api/internal/models"
	"github.com/Conceptual-Machines/flipbook-api/internal/services"
	"github.com/Conceptual-Machines/flipbook-api/internal/storyboard"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestRouter returns an engine whose requests run as the anonymous user
func newTestRouter() *gin.Engine {
	router := gin.New()
	router.Use(middleware.NoAuth())
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

type fakeGenerator struct {
	result  *storyboard.GenerationResult
	err     error
	aborted bool
	state   storyboard.State
	inputs  []services.GenerateInput
}

func (f *fakeGenerator) Generate(_ context.Context, in services.GenerateInput) (*storyboard.GenerationResult, error) {
	f.inputs = append(f.inputs, in)
	return f.result, f.err
}

func (f *fakeGenerator) Abort(string) bool { return f.aborted }

func (f *fakeGenerator) State(string) storyboard.State { return f.state }

type fakeHistory struct {
	logs      []models.GenerationLog
	lastLimit int
}

func (f *fakeHistory) Recent(_ context.Context, _ string, limit int) ([]models.GenerationLog, error) {
	f.lastLimit = limit
	return f.logs, nil
}

type fakePageStore struct {
	pages     []models.Page
	reordered []uuid.UUID
	deleteErr error
	orderErr  error
}

func (f *fakePageStore) List(context.Context, string) ([]models.Page, error) {
	return f.pages, nil
}

func (f *fakePageStore) Add(_ context.Context, ownerID, url, desc string) (*models.Page, error) {
	page := models.Page{ID: uuid.New(), OwnerID: ownerID, URL: url, ShortDescription: desc, Position: len(f.pages)}
	f.pages = append(f.pages, page)
	return &page, nil
}

func (f *fakePageStore) Reorder(_ context.Context, _ string, ids []uuid.UUID) ([]models.Page, error) {
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	f.reordered = ids
	return f.pages, nil
}

func (f *fakePageStore) Delete(context.Context, string, uuid.UUID) error {
	return f.deleteErr
}

func (f *fakePageStore) DeleteAll(context.Context, string) (int64, error) {
	n := int64(len(f.pages))
	f.pages = nil
	return n, nil
}

type fakeFrameRenderer struct {
	got []images.FrameSpec
}

func (f *fakeFrameRenderer) RenderFrames(_ context.Context, frames []images.FrameSpec) ([]services.RenderedFrame, error) {
	f.got = frames
	out := make([]services.RenderedFrame, len(frames))
	for i := range frames {
		out[i] = services.RenderedFrame{Index: i, MIMEType: "image/png", Data: "aW1n"}
	}
	return out, nil
}

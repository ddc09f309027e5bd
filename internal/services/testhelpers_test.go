package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/Conceptual-Machines/flipbook-api/internal/models"
	"github.com/Conceptual-Machines/flipbook-api/internal/storyboard"
	"github.com/stretchr/testify/require"
)

const storyPayload = `{"story":"A fox flies.","events":[{"id":"E1","title":"Kite","summary":"Fox finds kite.","frame_count":1}],"frames":[{"event_id":"E1","frame_index":0,"caption":"Up","prompt":"fox with kite, hand-drawn","negative_prompt":"blurry","style":"hand-drawn","references":[]}],"prompts":["fox with kite, hand-drawn"]}`

// stubDoer answers every request with the same envelope and keeps the last request body
type stubDoer struct {
	mu       sync.Mutex
	status   int
	envelope string
	bodies   []string
}

func (d *stubDoer) Do(req *http.Request) (*http.Response, error) {
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.bodies = append(d.bodies, string(data))
	d.mu.Unlock()

	return &http.Response{
		StatusCode: d.status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(d.envelope)),
	}, nil
}

func successEnvelope(t *testing.T) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"output": storyPayload,
		"usage":  map[string]any{"input_tokens": 1000, "output_tokens": 500},
	})
	require.NoError(t, err)
	return string(data)
}

func pipelineConfig() storyboard.Config {
	return storyboard.Config{
		Endpoint:       "https://generation.test/v1/responses",
		Model:          "claude-haiku-4-5",
		APIKey:         "test-key",
		Temperature:    0.3,
		MaxTokens:      3000,
		AttachmentPath: "/mnt/data/rules.html",
	}
}

type fakePages struct {
	refs  []storyboard.PreviousImage
	err   error
	asked int
}

func (f *fakePages) PreviousImages(_ context.Context, _ string, n int) ([]storyboard.PreviousImage, error) {
	f.asked = n
	return f.refs, f.err
}

type fakeLogs struct {
	mu      sync.Mutex
	entries []*models.GenerationLog
}

func (f *fakeLogs) Log(_ context.Context, entry *models.GenerationLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

package storyboard

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

const validPayload = `{"story":"A fox finds a kite and learns to fly.","events":[{"id":"E1","title":"The kite","summary":"The fox finds a kite.","frame_count":2}],"frames":[{"event_id":"E1","frame_index":0,"caption":"Found it","prompt":"a red fox finds a kite on a hill, hand-drawn","negative_prompt":"blurry","style":"hand-drawn","references":["p1"]},{"event_id":"E1","frame_index":1,"caption":"Lift off","prompt":"a red fox lifted by a kite, hand-drawn","negative_prompt":"blurry","style":"hand-drawn","references":["p1"]}],"prompts":["a red fox finds a kite on a hill, hand-drawn","a red fox lifted by a kite, hand-drawn"]}`

// doerFunc adapts a function to Doer and counts calls
type doerFunc struct {
	fn    func(*http.Request) (*http.Response, error)
	calls atomic.Int32
}

func (d *doerFunc) Do(req *http.Request) (*http.Response, error) {
	d.calls.Add(1)
	return d.fn(req)
}

func respondWith(status int, body string) *doerFunc {
	return &doerFunc{fn: func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Header:     make(http.Header),
			Body:       io.NopCloser(strings.NewReader(body)),
		}, nil
	}}
}

func testConfig() Config {
	return Config{
		Endpoint:       "https://generation.test/v1/responses",
		Model:          "test-model",
		APIKey:         "test-key",
		Temperature:    0.3,
		MaxTokens:      3000,
		AttachmentPath: "/mnt/data/rules.html",
	}
}

func testRequest() *GenerationRequest {
	return &GenerationRequest{
		StoryIdea: "A fox learns to fly",
		PreviousImages: []PreviousImage{
			{ID: "p1", URL: "https://img.test/p1.png", ShortDescription: "fox on a hill"},
		},
		MaxFramesPerEvent: 3,
	}
}

// envelope marshals v, failing the test on error
func envelope(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func decodeMap(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

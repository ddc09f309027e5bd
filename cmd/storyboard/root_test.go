package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const storyText = `{"story":"A fox finds a lantern.","events":[{"id":"E1","title":"Find","summary":"The fox finds it.","frame_count":1}],` +
	`"frames":[{"event_id":"E1","frame_index":0,"caption":"Found","prompt":"fox, lantern","negative_prompt":"text","style":"hand-drawn","references":[]}],` +
	`"prompts":["fox, lantern"]}`

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := run(cmd)
	return stdout.String(), stderr.String(), err
}

func generationServer(t *testing.T, status int, body string) (*httptest.Server, *[]byte) {
	t.Helper()
	var received []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &received
}

func completionBody(t *testing.T, text string) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"completion": text,
		"usage":      map[string]int{"input_tokens": 12, "output_tokens": 34},
	})
	require.NoError(t, err)
	return string(data)
}

func TestGenerateCommand(t *testing.T) {
	srv, received := generationServer(t, http.StatusOK, completionBody(t, "Here you go:\n"+storyText))
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("GENERATION_ENDPOINT", srv.URL)

	stdout, stderr, err := execute(t, "generate",
		"--idea", "a fox and a lantern",
		"--max-frames", "2",
		"--previous", "p1=https://img.example.com/1.png",
		"--strict",
	)

	require.NoError(t, err)
	assert.Equal(t, "A fox finds a lantern.", gjson.Get(stdout, "story").String())
	assert.Contains(t, stderr, "events=1 frames=1 input_tokens=12 output_tokens=34")

	user := gjson.GetBytes(*received, `messages.#(role=="user").content`).String()
	assert.Contains(t, user, "- max_frames_per_event: 2")
	assert.Contains(t, user, `"id":"p1"`)
}

func TestGenerateCommandFailures(t *testing.T) {
	t.Run("missing credential", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		_, stderr, err := execute(t, "generate", "--idea", "a fox")

		require.Error(t, err)
		assert.Equal(t, "missing_credential", gjson.Get(stderr, "error.kind").String())
	})

	t.Run("transport error", func(t *testing.T) {
		srv, _ := generationServer(t, http.StatusInternalServerError, "server error")
		t.Setenv("ANTHROPIC_API_KEY", "sk-test")
		t.Setenv("GENERATION_ENDPOINT", srv.URL)

		_, stderr, err := execute(t, "generate", "--idea", "a fox")

		require.Error(t, err)
		assert.Equal(t, "transport_error", gjson.Get(stderr, "error.kind").String())
		assert.Equal(t, int64(500), gjson.Get(stderr, "error.status_code").Int())
	})

	t.Run("blank idea", func(t *testing.T) {
		_, stderr, err := execute(t, "generate", "--idea", "  ")
		assert.EqualError(t, err, "story_idea is required")
		assert.Equal(t, "Error: story_idea is required\n", stderr)
	})

	t.Run("missing idea flag", func(t *testing.T) {
		_, stderr, err := execute(t, "generate")
		assert.Error(t, err)
		assert.Contains(t, stderr, `required flag(s) "idea" not set`)
	})

	t.Run("bad previous image", func(t *testing.T) {
		stdout, stderr, err := execute(t, "generate", "--idea", "a fox", "--previous", "no-url")
		assert.ErrorContains(t, err, "expected ID=URL")
		assert.Empty(t, stdout)
		assert.Contains(t, stderr, `Error: invalid --previous "no-url": expected ID=URL`)
	})

	t.Run("failure is not printed twice", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		_, stderr, err := execute(t, "generate", "--idea", "a fox")

		require.Error(t, err)
		assert.NotContains(t, stderr, "Error:")
	})
}

func TestPromptCommand(t *testing.T) {
	stdout, _, err := execute(t, "prompt", "--idea", "a fox", "--max-frames", "0")

	require.NoError(t, err)
	assert.Contains(t, stdout, `- story_idea: "a fox"`)
	assert.Contains(t, stdout, "- previous_images: []")
	assert.Contains(t, stdout, "- max_frames_per_event: 3")
}

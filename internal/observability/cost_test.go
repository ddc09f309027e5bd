package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateCost(t *testing.T) {
	tests := []struct {
		name   string
		model  string
		input  int
		output int
		want   float64
	}{
		{"haiku", "claude-haiku-4-5", 1000, 1000, 0.006},
		{"dated sonnet", "claude-sonnet-4-5-20250929", 2000, 1000, 0.021},
		{"unknown falls back to haiku", "some-other-model", 1000, 0, 0.001},
		{"no tokens", "claude-opus-4-1", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CalculateCost(tt.model, tt.input, tt.output), 1e-9)
		})
	}
}

func TestFormatCost(t *testing.T) {
	assert.Equal(t, "$0.006000", FormatCost(0.006))
}

func TestDisabledLangfuseIsNoop(t *testing.T) {
	client := GetClient()
	assert.False(t, client.IsEnabled())

	trace := client.StartTrace(t.Context(), "storyboard", nil)
	gen := trace.Generation("generate", nil)
	assert.NotPanics(t, func() {
		gen.LogStoryboardGeneration("claude-haiku-4-5", "a fox", map[string]any{"story": "s"}, 10, 20, nil)
		gen.SetLevel("ERROR")
		gen.Finish()
		trace.Finish()
	})
}

package storyboard

import (
	"github.com/tidwall/gjson"
)

// TextLocator finds the assistant text in one known envelope shape.
type TextLocator interface {
	// Name identifies the strategy in logs
	Name() string
	// Locate returns the assistant text and true if this shape matched with a non-empty string
	Locate(envelope gjson.Result) (string, bool)
}

// pathLocator matches the first of its paths that holds a non-empty string
type pathLocator struct {
	name  string
	paths []string
}

func (l pathLocator) Name() string {
	return l.name
}

func (l pathLocator) Locate(envelope gjson.Result) (string, bool) {
	for _, p := range l.paths {
		v := envelope.Get(p)
		if v.Type == gjson.String && v.Str != "" {
			return v.Str, true
		}
	}
	return "", false
}

// Envelope shapes seen across versions of the generation service, in priority order.
var (
	// OutputStringLocator reads a top-level "output" string
	OutputStringLocator TextLocator = pathLocator{name: "output", paths: []string{"output"}}
	// CompletionLocator reads a top-level "completion" string
	CompletionLocator TextLocator = pathLocator{name: "completion", paths: []string{"completion"}}
	// ResultOutputTextLocator reads result.output_text
	ResultOutputTextLocator TextLocator = pathLocator{name: "result.output_text", paths: []string{"result.output_text"}}
	// ChoicesLocator reads the first choice, as text or as message content
	ChoicesLocator TextLocator = pathLocator{name: "choices", paths: []string{"choices.0.text", "choices.0.message.content"}}
	// OutputContentLocator reads output[0].content[0].text
	OutputContentLocator TextLocator = pathLocator{name: "output.content", paths: []string{"output.0.content.0.text"}}
	// ContentBlockLocator reads the first text block of a messages-style "content" array
	ContentBlockLocator TextLocator = pathLocator{name: "content.text", paths: []string{`content.#(type=="text").text`}}
)

// DefaultLocators returns the strategies in the order they are tried.
func DefaultLocators() []TextLocator {
	return []TextLocator{
		OutputStringLocator,
		CompletionLocator,
		ResultOutputTextLocator,
		ChoicesLocator,
		OutputContentLocator,
		ContentBlockLocator,
	}
}

// locateAssistantText runs the locators in order and returns the first match
func locateAssistantText(envelope gjson.Result, locators []TextLocator) (string, string, bool) {
	for _, l := range locators {
		if text, ok := l.Locate(envelope); ok {
			return text, l.Name(), true
		}
	}
	return "", "", false
}

// extractUsage reads token counts from the envelope when the service reports them
func extractUsage(envelope gjson.Result) Usage {
	usage := envelope.Get("usage")
	if !usage.Exists() {
		return Usage{}
	}
	return Usage{
		InputTokens:  int(firstInt(usage, "input_tokens", "prompt_tokens")),
		OutputTokens: int(firstInt(usage, "output_tokens", "completion_tokens")),
	}
}

func firstInt(r gjson.Result, paths ...string) int64 {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() {
			return v.Int()
		}
	}
	return 0
}

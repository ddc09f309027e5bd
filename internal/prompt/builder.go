package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ImageRef is a continuity reference as it is shown to the model.
type ImageRef struct {
	ID               string `json:"id"`
	URL              string `json:"url"`
	ShortDescription string `json:"short_description,omitempty"`
}

// Builder builds the storyboard prompts
type Builder struct {
	loader *Loader
}

// NewPromptBuilder creates a new prompt builder
func NewPromptBuilder() *Builder {
	return &Builder{loader: NewPromptLoader()}
}

// SystemPrompt returns override when set, otherwise the embedded default instruction
func (b *Builder) SystemPrompt(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	return b.loader.GetSystemPrompt()
}

// UserPrompt composes the user instruction with the story idea and previous images serialized as JSON.
func (b *Builder) UserPrompt(storyIdea string, previous []ImageRef, maxFramesPerEvent int) (string, error) {
	if previous == nil {
		previous = []ImageRef{}
	}

	idea, err := marshalInline(storyIdea)
	if err != nil {
		return "", fmt.Errorf("failed to encode story idea: %w", err)
	}
	images, err := marshalInline(previous)
	if err != nil {
		return "", fmt.Errorf("failed to encode previous images: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Task: Turn this story idea into a flipbook-ready sequence of frame prompts.\n\n")
	sb.WriteString("Inputs:\n")
	fmt.Fprintf(&sb, "- story_idea: %s\n", idea)
	fmt.Fprintf(&sb, "- previous_images: %s\n", images)
	fmt.Fprintf(&sb, "- max_frames_per_event: %d\n", maxFramesPerEvent)
	sb.WriteString("- next_in_sequence: true\n\n")
	sb.WriteString("Requirements:\n")
	sb.WriteString("1. Produce a short full story (1–3 paragraphs).\n")
	sb.WriteString("2. Break the story into main events and assign an id to each event (E1, E2, ...).\n")
	sb.WriteString("3. For each event, create up to max_frames_per_event frames that animate the event.\n")
	sb.WriteString("4. For each frame include: caption, prompt, negative_prompt, style, references.\n")
	sb.WriteString("5. Follow the image-generation rules in the attached HTML. Use style \"hand-drawn\".\n")
	sb.WriteString("6. Output only JSON following the schema described in the system message.\n")

	return sb.String(), nil
}

// marshalInline encodes v on a single line without HTML escaping
func marshalInline(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

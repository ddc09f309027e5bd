package storyboard

import (
	"fmt"
	"path"

	"github.com/Conceptual-Machines/flipbook-api/internal/prompt"
)

const (
	roleSystem = "system"
	roleUser   = "user"

	attachmentContentType = "text/html"

	// DefaultMaxFramesPerEvent is used when a request does not set a positive cap.
	DefaultMaxFramesPerEvent = 3
)

// requestBody is the JSON body posted to the generation service
type requestBody struct {
	Model       string       `json:"model"`
	Messages    []message    `json:"messages"`
	Attachments []attachment `json:"attachments"`
	Temperature float64      `json:"temperature"`
	MaxTokens   int          `json:"max_tokens"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// attachment references a document by path; its content is never uploaded.
type attachment struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

// buildRequestBody converts a GenerationRequest into the service request body
func (p *Pipeline) buildRequestBody(req *GenerationRequest) (*requestBody, error) {
	system, err := p.prompts.SystemPrompt(req.SystemOverride)
	if err != nil {
		return nil, fmt.Errorf("failed to load system prompt: %w", err)
	}

	refs := make([]prompt.ImageRef, 0, len(req.PreviousImages))
	for _, img := range req.PreviousImages {
		refs = append(refs, prompt.ImageRef{
			ID:               img.ID,
			URL:              img.URL,
			ShortDescription: img.ShortDescription,
		})
	}

	user, err := p.prompts.UserPrompt(req.StoryIdea, refs, effectiveMaxFrames(req.MaxFramesPerEvent))
	if err != nil {
		return nil, fmt.Errorf("failed to build user prompt: %w", err)
	}

	attachmentPath := req.AttachmentPath
	if attachmentPath == "" {
		attachmentPath = p.cfg.AttachmentPath
	}

	return &requestBody{
		Model: p.cfg.Model,
		Messages: []message{
			{Role: roleSystem, Content: system},
			{Role: roleUser, Content: user},
		},
		Attachments: []attachment{
			{
				Filename:    path.Base(attachmentPath),
				URL:         attachmentPath,
				ContentType: attachmentContentType,
			},
		},
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	}, nil
}

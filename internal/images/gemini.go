package images

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"google.golang.org/genai"
)

const (
	defaultAspectRatio = "1:1"
	defaultMIMEType    = "image/png"
)

// ErrNoImage is returned when the model filtered or produced no image
var ErrNoImage = errors.New("no image returned")

// FrameSpec is the image instruction of one storyboard frame
type FrameSpec struct {
	Prompt         string `json:"prompt" binding:"required"`
	NegativePrompt string `json:"negative_prompt"`
	Style          string `json:"style"`
}

// Image is a rendered frame
type Image struct {
	Data     []byte
	MIMEType string
}

// imageModel is the part of the genai client used for rendering
type imageModel interface {
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// GeminiRenderer renders frames with Google's image models
type GeminiRenderer struct {
	models imageModel
	model  string
}

// NewGeminiRenderer creates a renderer backed by the Gemini API
func NewGeminiRenderer(ctx context.Context, apiKey, model string) (*GeminiRenderer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiRenderer{
		models: client.Models,
		model:  model,
	}, nil
}

// Render renders a single frame
func (r *GeminiRenderer) Render(ctx context.Context, frame FrameSpec) (*Image, error) {
	span := sentry.StartSpan(ctx, "gemini.generate_images")
	span.SetTag("model", r.model)
	defer span.Finish()

	startTime := time.Now()
	resp, err := r.models.GenerateImages(ctx, r.model, framePrompt(frame), &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		NegativePrompt: frame.NegativePrompt,
		AspectRatio:    defaultAspectRatio,
		OutputMIMEType: defaultMIMEType,
	})
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, fmt.Errorf("gemini image request failed: %w", err)
	}
	log.Printf("🖼️  Frame rendered in %v", time.Since(startTime))

	for _, generated := range resp.GeneratedImages {
		if generated == nil || generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
			continue
		}
		mimeType := generated.Image.MIMEType
		if mimeType == "" {
			mimeType = defaultMIMEType
		}
		span.Status = sentry.SpanStatusOK
		return &Image{Data: generated.Image.ImageBytes, MIMEType: mimeType}, nil
	}

	span.Status = sentry.SpanStatusInternalError
	if len(resp.GeneratedImages) > 0 && resp.GeneratedImages[0] != nil && resp.GeneratedImages[0].RAIFilteredReason != "" {
		return nil, fmt.Errorf("%w: %s", ErrNoImage, resp.GeneratedImages[0].RAIFilteredReason)
	}
	return nil, ErrNoImage
}

// framePrompt appends the style tag unless the prompt already carries it
func framePrompt(frame FrameSpec) string {
	prompt := strings.TrimSpace(frame.Prompt)
	style := strings.TrimSpace(frame.Style)
	if style == "" || strings.Contains(strings.ToLower(prompt), strings.ToLower(style)) {
		return prompt
	}
	return prompt + ", " + style + " style"
}

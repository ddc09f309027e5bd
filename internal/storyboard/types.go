package storyboard

// GenerationRequest contains everything needed to ask the remote model for a flipbook storyboard.
// A request is built per call and never reused.
type GenerationRequest struct {
	StoryIdea         string
	PreviousImages    []PreviousImage
	MaxFramesPerEvent int
	// AttachmentPath is sent to the remote service as the attachment URL; the file is never read.
	AttachmentPath string
	SystemOverride string
	// Strict requests deep validation for this call even if the pipeline is lenient.
	Strict bool
}

// PreviousImage is a continuity reference to a page that already exists in the flipbook.
type PreviousImage struct {
	ID               string `json:"id"`
	URL              string `json:"url"`
	ShortDescription string `json:"short_description,omitempty"`
}

// GenerationResult is the parsed assistant output.
// Raw holds the object exactly as parsed; the typed fields are decoded from it on a best-effort basis.
type GenerationResult struct {
	Story   string   `json:"story" validate:"required"`
	Events  []Event  `json:"events" validate:"required,min=1,dive"`
	Frames  []Frame  `json:"frames" validate:"required,min=1,dive"`
	Prompts []string `json:"prompts" validate:"required,min=1,dive,required"`
	// Error is set when the model used its escape hatch and returned {"error": "..."}.
	Error string `json:"error,omitempty"`

	Raw   map[string]any `json:"-"`
	Usage Usage          `json:"-"`
}

// Event is a narrative beat of the story.
type Event struct {
	ID         string `json:"id" validate:"required"`
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	FrameCount int    `json:"frame_count" validate:"gte=0"`
}

// Frame is a single image-generation instruction, one flipbook page.
type Frame struct {
	EventID        string   `json:"event_id" validate:"required"`
	FrameIndex     int      `json:"frame_index" validate:"gte=0"`
	Caption        string   `json:"caption"`
	Prompt         string   `json:"prompt" validate:"required"`
	NegativePrompt string   `json:"negative_prompt"`
	Style          string   `json:"style"`
	References     []string `json:"references"`
}

// Usage is the token accounting reported in the response envelope, when present.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// TotalTokens returns input plus output tokens
func (u Usage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}

// State is the observable status of a pipeline. It is replaced wholesale at every lifecycle transition.
type State struct {
	Loading bool              `json:"loading"`
	Error   *Failure          `json:"error"`
	Data    *GenerationResult `json:"data"`
}

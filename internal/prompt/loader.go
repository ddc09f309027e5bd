package prompt

import (
	"strings"

	"github.com/Conceptual-Machines/flipbook-api/pkg/embedded"
)

type Loader struct{}

func NewPromptLoader() *Loader {
	return &Loader{}
}

// GetSystemPrompt loads the default storyboard system instruction
func (l *Loader) GetSystemPrompt() (string, error) {
	return strings.TrimSpace(string(embedded.SystemPromptTxt)), nil
}

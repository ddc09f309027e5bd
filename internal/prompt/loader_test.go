package prompt

import (
	"strings"
	"testing"
)

func TestNewPromptLoader(t *testing.T) {
	loader := NewPromptLoader()
	if loader == nil {
		t.Fatal("NewPromptLoader() returned nil")
	}
}

func TestGetSystemPrompt(t *testing.T) {
	loader := NewPromptLoader()
	content, err := loader.GetSystemPrompt()

	if err != nil {
		t.Fatalf("GetSystemPrompt() returned error: %v", err)
	}

	if content == "" {
		t.Error("GetSystemPrompt() returned empty string")
	}

	if !strings.Contains(content, "Return JSON only.") {
		t.Error("GetSystemPrompt() does not contain expected content")
	}

	if content != strings.TrimSpace(content) {
		t.Error("GetSystemPrompt() should be trimmed")
	}
}

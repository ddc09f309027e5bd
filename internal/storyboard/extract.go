package storyboard

import (
	"encoding/json"
	"strings"
)

// extractJSON parses assistant text as JSON. When the text is not JSON on its own it falls back to
// the span from the first '{' to the last '}', which tolerates prose around the payload.
func extractJSON(text string) (any, *Failure) {
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return parsed, nil
	}

	candidate, ok := braceSpan(text)
	if !ok {
		f := newFailure(FailureNoJSONFound, "assistant returned text but no JSON found")
		f.RawText = text
		return nil, f
	}

	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		f := newFailure(FailureInvalidJSON, "assistant returned text but it wasn't valid JSON")
		f.RawText = text
		f.Err = err
		return nil, f
	}
	return parsed, nil
}

// braceSpan returns text[first '{' : last '}'+1]
func braceSpan(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// asObject rejects anything but a JSON object
func asObject(parsed any) (map[string]any, *Failure) {
	obj, ok := parsed.(map[string]any)
	if !ok || obj == nil {
		f := newFailure(FailureMalformedOutput, "parsed assistant output is not an object")
		f.Parsed = parsed
		return nil, f
	}
	return obj, nil
}

// decodeResult decodes the typed view of obj. The result always carries obj as Raw; a decode
// error leaves the typed fields empty and is returned for the caller to judge.
func decodeResult(obj map[string]any) (*GenerationResult, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return &GenerationResult{Raw: obj}, err
	}

	var result GenerationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return &GenerationResult{Raw: obj}, err
	}
	result.Raw = obj
	return &result, nil
}

package storyboard

import (
	"encoding/json"
	"errors"
	"fmt"
)

// FailureKind classifies why a generation call did not produce a result.
type FailureKind string

const (
	FailureMissingCredential FailureKind = "missing_credential"
	FailureTransport         FailureKind = "transport_error"
	FailureAborted           FailureKind = "aborted"
	FailureNoAssistantText   FailureKind = "no_assistant_text"
	FailureInvalidJSON       FailureKind = "invalid_json"
	FailureNoJSONFound       FailureKind = "no_json"
	FailureMalformedOutput   FailureKind = "malformed_output"
	FailureTimeout           FailureKind = "timeout"
	FailureUnknown           FailureKind = "unknown"
)

var (
	// ErrAborted is the cancellation cause used by Pipeline.Abort.
	ErrAborted = errors.New("request aborted")
	// ErrSuperseded is the cancellation cause used when a newer Generate call replaces an in-flight one.
	ErrSuperseded = errors.New("request superseded by a newer generation")
)

// Failure is the terminal error of a generation call. Every failure is returned to the caller;
// none are retried.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	// StatusCode and Body are set for transport errors.
	StatusCode int    `json:"status_code,omitempty"`
	Body       string `json:"body,omitempty"`
	// RawText carries the assistant text or the stringified envelope for diagnostics.
	RawText string `json:"raw,omitempty"`
	// Parsed carries the decoded value for malformed output.
	Parsed any   `json:"parsed,omitempty"`
	Err    error `json:"-"`
}

func (f *Failure) Error() string {
	if f.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", f.Kind, f.Message, f.StatusCode)
	}
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// MarshalJSON adds the underlying error text, which is otherwise dropped.
func (f *Failure) MarshalJSON() ([]byte, error) {
	type alias Failure
	out := struct {
		*alias
		Cause string `json:"cause,omitempty"`
	}{alias: (*alias)(f)}
	if f.Err != nil {
		out.Cause = f.Err.Error()
	}
	return json.Marshal(out)
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// KindOf returns the failure kind of err, or FailureUnknown for foreign errors.
func KindOf(err error) FailureKind {
	if f, ok := AsFailure(err); ok {
		return f.Kind
	}
	return FailureUnknown
}

func newFailure(kind FailureKind, msg string) *Failure {
	return &Failure{Kind: kind, Message: msg}
}

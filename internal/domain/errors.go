// Package domain provides the canonical types and error taxonomy for the
// generation engine.
package domain

import "fmt"

// ErrorKind categorizes a provider call failure.
type ErrorKind string

const (
	// ErrorKindCall is a generic upstream failure (network, non-2xx, bad payload).
	ErrorKindCall ErrorKind = "provider_call"

	// ErrorKindTimeout indicates a polling budget or deadline was exhausted.
	ErrorKindTimeout ErrorKind = "timeout"

	// ErrorKindRateLimit indicates the upstream rejected the call for pacing.
	ErrorKindRateLimit ErrorKind = "rate_limit"
)

// ValidationError is a synchronous input failure raised before any
// orchestration happens.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ProviderCallError is a recoverable failure from one provider attempt.
// The fallback engines absorb it and move to the next candidate.
type ProviderCallError struct {
	Provider string
	Model    string
	Kind     ErrorKind
	Status   int
	Message  string
	Err      error
}

func (e *ProviderCallError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("%s (%s/%s): %s", e.Kind, e.Provider, e.Model, e.Message)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Provider, e.Message)
}

func (e *ProviderCallError) Unwrap() error { return e.Err }

// NewProviderCallError wraps an upstream failure for the fallback engines.
func NewProviderCallError(provider, model string, err error) *ProviderCallError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &ProviderCallError{Provider: provider, Model: model, Kind: ErrorKindCall, Message: msg, Err: err}
}

// NewProviderTimeout marks a call that exhausted its poll/retry budget.
func NewProviderTimeout(provider, model, message string) *ProviderCallError {
	return &ProviderCallError{Provider: provider, Model: model, Kind: ErrorKindTimeout, Message: message}
}

// NoProviderConfiguredError is returned when the ordered provider list for a
// phase is empty. It is raised before any network call.
type NoProviderConfiguredError struct {
	Phase string
}

func (e *NoProviderConfiguredError) Error() string {
	return fmt.Sprintf("no %s provider configured", e.Phase)
}

// AllProvidersExhaustedError is fatal for the text phase: every provider in
// the ordered list failed. It carries the last provider's error.
type AllProvidersExhaustedError struct {
	Attempts int
	Last     error
}

func (e *AllProvidersExhaustedError) Error() string {
	return fmt.Sprintf("all %d providers exhausted: %v", e.Attempts, e.Last)
}

func (e *AllProvidersExhaustedError) Unwrap() error { return e.Last }

// ImageProviderExhaustedError fails a single hint without aborting its
// siblings; the pipeline logs it and skips that hint.
type ImageProviderExhaustedError struct {
	Hint string
	Last error
}

func (e *ImageProviderExhaustedError) Error() string {
	return fmt.Sprintf("image generation exhausted for hint %q: %v", e.Hint, e.Last)
}

func (e *ImageProviderExhaustedError) Unwrap() error { return e.Last }

// UploadError discards a single generated image; the run continues.
type UploadError struct {
	Hint string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed for hint %q: %v", e.Hint, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

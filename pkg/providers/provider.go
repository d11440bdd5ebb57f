// Package providers holds the backend adapters. Each adapter exposes exactly
// one capability: turn (model ID, prompt) into assistant text. Adapters with
// missing or invalid configuration construct into an unavailable state rather
// than failing, so the absence of one backend never prevents use of the
// others.
package providers

import (
	"context"
	"fmt"
)

// Adapter is the capability boundary to a single backend. Complete is
// synchronous and blocking; the bounded executor above it owns timeouts.
// Adapters are not expected to honor context cancellation mid-call.
type Adapter interface {
	// Complete sends the prompt to the backend and returns the assistant's
	// textual content, with no metadata.
	Complete(ctx context.Context, modelID, prompt string) (string, error)

	// Available reports whether the adapter was constructed with a usable
	// configuration.
	Available() bool
}

// CallError wraps any adapter failure: missing credentials, empty response,
// safety block, network failure.
type CallError struct {
	Provider string
	Model    string
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s call failed for model %s: %v", e.Provider, e.Model, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

func callErr(provider, model string, err error) *CallError {
	return &CallError{Provider: provider, Model: model, Err: err}
}

func callErrf(provider, model, format string, args ...any) *CallError {
	return &CallError{Provider: provider, Model: model, Err: fmt.Errorf(format, args...)}
}

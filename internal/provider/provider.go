// Package provider abstracts the external text-generation service used to
// turn requirement documents into backlog proposals.
package provider

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when the generation service answers with no
// usable text.
var ErrEmptyResponse = errors.New("provider: empty response")

// Generator produces free-form text from a system prompt and a user prompt.
// Implementations must honor ctx cancellation; calls may take tens of seconds.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Static is a Generator that always returns the same response. It backs the
// offline mode and tests; no network calls are made.
type Static struct {
	Response string
	Err      error
}

func (s *Static) Generate(_ context.Context, _, _ string) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	return s.Response, nil
}

// Package api provides the generative-model client used by every agent step.
//
// A Client wraps one Backend (Anthropic, optionally through AWS Bedrock, or
// a local Ollama server) and performs exactly one blocking round trip per
// Invoke. It never retries.
package api

import (
	"context"
	"errors"
)

var (
	// ErrConnectivity is returned when the generative service cannot be reached.
	ErrConnectivity = errors.New("generative service unreachable")
	// ErrGeneration is returned when the service answers with an error or
	// with no usable content.
	ErrGeneration = errors.New("generative service returned no usable content")
)

// Request is one generation call as seen by a Backend.
type Request struct {
	// Agent identifies the calling step, for logs and test routing.
	Agent  string
	Model  string
	System string
	Prompt string
	// JSON asks the backend for its structured output mode.
	JSON      bool
	MaxTokens int
}

// Response is the text a Backend produced and the tokens it reported.
type Response struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// Backend performs raw generation against one provider.
type Backend interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	// DefaultModel is used when a request names no model.
	DefaultModel() string
	Generate(ctx context.Context, req Request) (Response, error)
}

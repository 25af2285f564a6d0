package llm

import (
	"context"
	"errors"
)

// ErrNoCandidates is returned when the backend produced no usable
// completion.
var ErrNoCandidates = errors.New("llm: no candidates in response")

// Message represents a conversation message.
type Message struct {
	Role    string // "user", "assistant"
	Content string
}

// Client defines the interface for LLM providers.
type Client interface {
	// Generate produces a single reply for the given conversation
	// window. The window is rendered oldest-first into one prompt.
	Generate(ctx context.Context, window []Message) (string, error)
}

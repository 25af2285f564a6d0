package tts

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions.
var (
	// ErrEmptyText is returned when synthesis is requested for empty or
	// whitespace-only text.
	ErrEmptyText = errors.New("tts: empty text")

	// ErrNoAudio is returned when a successful response carried no
	// recognizable audio payload.
	ErrNoAudio = errors.New("tts: no audio data in response")
)

// APIError represents an error response from the synthesis API. Auth
// failures, bad requests and server errors are all fail-fast; the
// status code is preserved for logging.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("tts: API error %d: %s", e.StatusCode, e.Message)
}

// IsUnauthorized returns true for authentication failures (HTTP 401).
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401
}

// IsBadRequest returns true for malformed requests (HTTP 400).
func (e *APIError) IsBadRequest() bool {
	return e.StatusCode == 400
}

// IsServerError returns true for server-side errors (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// Client defines the interface for text-to-speech providers.
type Client interface {
	// Synthesize converts text to speech and returns raw audio bytes.
	// An empty voiceID selects the provider's default voice.
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

package stt

import (
	"context"
	"errors"
)

// Sentinel errors shared by the batch and streaming clients.
var (
	// ErrUpstreamUnavailable is returned when the recognition backend
	// cannot be reached or answers with a server error.
	ErrUpstreamUnavailable = errors.New("stt: upstream unavailable")

	// ErrChannelClosed is returned when audio is pushed into a
	// terminated streaming channel.
	ErrChannelClosed = errors.New("stt: channel closed")
)

// TranscriptResult represents a speech-to-text transcription event.
// Partial results are advisory only; an utterance's event sequence ends
// with exactly one final result or a terminal error.
type TranscriptResult struct {
	Text       string  // The transcribed text
	Confidence float64 // Confidence score (0-1)
	IsFinal    bool    // Whether this is a final or interim result
}

// Transcriber is the batch interface: one complete audio file in, one
// transcript out.
type Transcriber interface {
	// Transcribe uploads the audio file at path and blocks until the
	// backend produced a transcript or a terminal error.
	Transcribe(ctx context.Context, path string) (string, error)
}

// StreamClient is the interface for streaming recognition providers.
type StreamClient interface {
	// SendAudio forwards an audio chunk to the backend. It never blocks
	// on backend latency; a bounded internal queue absorbs it.
	SendAudio(audio []byte) error

	// Results returns a channel that receives transcription results.
	Results() <-chan TranscriptResult

	// Errors returns a channel that receives terminal errors.
	Errors() <-chan error

	// Close flushes buffered audio, signals end-of-stream and releases
	// resources. Safe to call from any state, including after an error.
	Close() error
}

package stt

import "context"

// MockTranscriber implements Transcriber for testing. If TranscribeFunc
// is nil, a fixed transcript is returned.
type MockTranscriber struct {
	TranscribeFunc func(ctx context.Context, path string) (string, error)
}

// Transcribe calls TranscribeFunc when set.
func (m *MockTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, path)
	}
	return "mock transcript", nil
}

var _ Transcriber = (*MockTranscriber)(nil)

package tts

import "context"

// MockClient implements Client for testing. If SynthesizeFunc is nil,
// fixed audio bytes are returned.
type MockClient struct {
	SynthesizeFunc func(ctx context.Context, text, voiceID string) ([]byte, error)
}

// Synthesize calls SynthesizeFunc when set.
func (m *MockClient) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text, voiceID)
	}
	return []byte{0x00, 0x00, 0x00}, nil
}

var _ Client = (*MockClient)(nil)

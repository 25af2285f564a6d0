package llm

import "context"

// MockClient implements Client for testing. If GenerateFunc is nil, a
// fixed reply is returned.
type MockClient struct {
	GenerateFunc func(ctx context.Context, window []Message) (string, error)
}

// Generate calls GenerateFunc when set.
func (m *MockClient) Generate(ctx context.Context, window []Message) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, window)
	}
	return "mock reply", nil
}

var _ Client = (*MockClient)(nil)

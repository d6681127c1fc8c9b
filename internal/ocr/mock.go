package ocr

import (
	"context"
	"sync/atomic"
)

// MockClient is a Client for testing.
type MockClient struct {
	// ResponseText is returned when Fn and Err are unset.
	ResponseText string
	// Err, when set, fails every call.
	Err error
	// Fn, when set, handles the call entirely.
	Fn func(ctx context.Context, image []byte, prompt string) (string, error)

	calls atomic.Int64
}

var _ Client = (*MockClient)(nil)

// NewMockClient creates a mock that always succeeds with a fixed text.
func NewMockClient() *MockClient {
	return &MockClient{ResponseText: "Mocked OCR text for testing."}
}

// OCR implements Client.
func (m *MockClient) OCR(ctx context.Context, image []byte, prompt string) (string, error) {
	m.calls.Add(1)
	if m.Fn != nil {
		return m.Fn(ctx, image, prompt)
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.ResponseText, nil
}

// Calls returns how many times OCR was invoked.
func (m *MockClient) Calls() int {
	return int(m.calls.Load())
}

package mocks

import (
	"context"

	"github.com/custodia-labs/docfield-core/internal/core/domain"
)

// MockRecognizer is a mock implementation of Recognizer for testing
type MockRecognizer struct {
	EngineName string

	// Custom behavior hooks (optional)
	DetectFn func(page domain.PageImage) ([]domain.TextSpan, error)

	// Spans is returned verbatim when DetectFn is unset.
	Spans []domain.TextSpan
}

// NewMockRecognizer creates a mock engine that always returns spans.
func NewMockRecognizer(name string, spans []domain.TextSpan) *MockRecognizer {
	return &MockRecognizer{EngineName: name, Spans: spans}
}

func (m *MockRecognizer) Name() string {
	if m.EngineName == "" {
		return "mock"
	}
	return m.EngineName
}

func (m *MockRecognizer) Detect(ctx context.Context, page domain.PageImage) ([]domain.TextSpan, error) {
	if m.DetectFn != nil {
		return m.DetectFn(page)
	}
	out := make([]domain.TextSpan, len(m.Spans))
	copy(out, m.Spans)
	for i := range out {
		out[i].Page = page.Number
	}
	return out, nil
}

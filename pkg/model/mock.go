package model

import (
	"context"
	"fmt"
	"sync"
)

// MockClient provides a controllable LLMClient for testing. Responses
// and errors are consumed in order; requests are recorded for
// inspection.
type MockClient struct {
	mu            sync.Mutex
	responses     []CompletionResponse
	responseIndex int
	errors        []error
	errorIndex    int
	requests      []CompletionRequest
}

// NewMockClient creates a mock with predefined responses and errors.
func NewMockClient(responses []CompletionResponse, errors []error) *MockClient {
	return &MockClient{
		responses: responses,
		errors:    errors,
	}
}

// NewMockClientWithContent creates a mock returning the given content
// strings in order.
func NewMockClientWithContent(contents ...string) *MockClient {
	responses := make([]CompletionResponse, len(contents))
	for i, c := range contents {
		responses[i] = CompletionResponse{Content: c, StopReason: "end_turn"}
	}
	return NewMockClient(responses, nil)
}

// Complete returns the next predefined error or response.
func (m *MockClient) Complete(_ context.Context, in CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, in)

	if m.errorIndex < len(m.errors) && m.errors[m.errorIndex] != nil {
		err := m.errors[m.errorIndex]
		m.errorIndex++
		return CompletionResponse{}, err
	}

	if m.responseIndex >= len(m.responses) {
		return CompletionResponse{}, fmt.Errorf("mock client: no more responses (served %d)", m.responseIndex)
	}

	resp := m.responses[m.responseIndex]
	m.responseIndex++
	return resp, nil
}

// Requests returns a copy of every request the mock has seen.
func (m *MockClient) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionRequest{}, m.requests...)
}

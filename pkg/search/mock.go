package search

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is a controllable Provider for tests. It records every
// query and serves canned results, optionally failing on matching
// queries.
type MockProvider struct {
	mu      sync.Mutex
	results map[string][]Result
	failOn  map[string]error
	queries []string
}

// NewMockProvider creates an empty mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		results: make(map[string][]Result),
		failOn:  make(map[string]error),
	}
}

// AddResults sets the canned results for a query.
func (m *MockProvider) AddResults(query string, results ...Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[query] = results
}

// FailOn makes the given query return an error.
func (m *MockProvider) FailOn(query string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[query] = err
}

// Name implements Provider.
func (m *MockProvider) Name() string {
	return "mock"
}

// Search implements Provider.
func (m *MockProvider) Search(_ context.Context, query string) ([]Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queries = append(m.queries, query)

	if err, exists := m.failOn[query]; exists {
		return nil, err
	}
	if results, exists := m.results[query]; exists {
		return results, nil
	}
	return []Result{{
		Title:   fmt.Sprintf("Result for %s", query),
		URL:     "https://example.com/" + query,
		Snippet: "canned snippet for " + query,
	}}, nil
}

// Queries returns every query the mock has seen.
func (m *MockProvider) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.queries...)
}

package ai

import (
	"context"
	"sync"
)

// MockClient is a test double for Client.
type MockClient struct {
	mu        sync.Mutex
	Responses []*Response // consumed in order; last one repeats
	calls     int

	AvailableErr error
	GenerateErr  error
	Requests     []Request
}

// NewMockClient creates a MockClient that succeeds with an empty summary
// by default.
func NewMockClient() *MockClient {
	return &MockClient{
		Responses: []*Response{{Success: true, Summary: "mock generator response"}},
	}
}

func (m *MockClient) Available() error {
	return m.AvailableErr
}

func (m *MockClient) Generate(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if m.GenerateErr != nil {
		return nil, m.GenerateErr
	}
	idx := m.calls
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	m.calls++
	return m.Responses[idx], nil
}

// CallCount returns the number of Generate calls made.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

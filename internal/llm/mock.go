package llm

import (
	"context"
	"sync"
)

// MockClient is a test double that records requests and replays canned
// responses.
type MockClient struct {
	mu sync.Mutex

	// Response is returned from Complete when Err is nil.
	Response string
	// Err, when set, is returned from every Complete call.
	Err error

	// Requests records every request received, in order.
	Requests []CompletionRequest
}

// Complete records the request and returns the configured response.
func (m *MockClient) Complete(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return &CompletionResponse{Content: m.Response, Model: "mock"}, nil
}

// Name returns the provider name.
func (m *MockClient) Name() string { return "mock" }

// LastPrompt returns the prompt of the most recent request, or "".
func (m *MockClient) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return ""
	}
	return m.Requests[len(m.Requests)-1].Prompt
}

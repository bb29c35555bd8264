package llm

import (
	"context"
	"sync"
)

// MockBackend is a configurable mock for testing code that calls a Backend.
// Set the function fields to control behavior in tests.
type MockBackend struct {
	// CompleteFunc is called when Complete is invoked.
	// If nil, returns Response and nil error.
	CompleteFunc func(ctx context.Context, req CompletionRequest) (*Completion, error)

	// Response is the canned completion text used when CompleteFunc is nil.
	Response string

	// ModelName is returned by Model. Defaults to "mock-model".
	ModelName string

	// Local is returned by IsLocal.
	Local bool

	mu sync.Mutex
	// Call tracking for verification
	CompleteCalls int
	Requests      []CompletionRequest
}

// NewMockBackend creates a mock that always answers with response.
func NewMockBackend(response string) *MockBackend {
	return &MockBackend{Response: response, ModelName: "mock-model"}
}

// Complete implements Backend.
func (m *MockBackend) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	m.mu.Lock()
	m.CompleteCalls++
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &Completion{Content: m.Response}, nil
}

// Model implements Backend.
func (m *MockBackend) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}

// IsLocal implements Backend.
func (m *MockBackend) IsLocal() bool {
	return m.Local
}

// Calls returns the number of Complete invocations.
func (m *MockBackend) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CompleteCalls
}

// LastRequest returns the most recent request, or the zero value.
func (m *MockBackend) LastRequest() CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return CompletionRequest{}
	}
	return m.Requests[len(m.Requests)-1]
}

// Reset clears call tracking.
func (m *MockBackend) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteCalls = 0
	m.Requests = nil
}

// Ensure MockBackend implements Backend at compile time.
var _ Backend = (*MockBackend)(nil)

package adapter

import (
	"context"
	"fmt"
	"sync"
)

// MockAdapter returns deterministic responses for local runs and tests.
type MockAdapter struct {
	mu              sync.Mutex
	responses       map[string]string
	defaultResponse string
	err             error
	calls           int
	lastSystem      string
	Usage           *Usage
}

// NewMockAdapter creates a mock adapter with a default response.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		responses:       make(map[string]string),
		defaultResponse: "mock response:",
	}
}

// NewMockAdapterWithResponses creates a mock adapter with predefined
// responses keyed by prompt.
func NewMockAdapterWithResponses(responses map[string]string, defaultResponse string) *MockAdapter {
	if defaultResponse == "" {
		defaultResponse = "mock response:"
	}
	if responses == nil {
		responses = make(map[string]string)
	}
	return &MockAdapter{responses: responses, defaultResponse: defaultResponse}
}

// NewFailingMockAdapter returns a mock whose every call fails with err.
func NewFailingMockAdapter(err error) *MockAdapter {
	m := NewMockAdapter()
	m.err = err
	return m
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return "mock"
}

// Models returns the list of supported mock models.
func (a *MockAdapter) Models() []string {
	return []string{"mock-1"}
}

// Calls returns the number of Generate calls so far.
func (a *MockAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// LastSystem returns the system prompt of the latest call.
func (a *MockAdapter) LastSystem() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSystem
}

// Generate returns the configured response for prompt, or the default
// response followed by the prompt.
func (a *MockAdapter) Generate(ctx context.Context, model, system, prompt string) (*Response, error) {
	a.mu.Lock()
	a.calls++
	a.lastSystem = system
	a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.err != nil {
		return nil, a.err
	}
	if model == "" {
		model = "mock-1"
	}
	content, ok := a.responses[prompt]
	if !ok {
		content = fmt.Sprintf("%s\n%s", a.defaultResponse, prompt)
	}
	return &Response{Content: content, Provider: a.Name(), Model: model, Usage: a.Usage}, nil
}

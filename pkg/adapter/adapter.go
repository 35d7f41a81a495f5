// Package adapter wraps LLM provider SDKs behind one small interface. The
// router uses it only for the classifier call.
package adapter

import (
	"context"
	"fmt"
	"sort"
)

// Adapter defines the interface for LLM provider adapters.
type Adapter interface {
	// Generate sends a system instruction and a prompt to the model.
	Generate(ctx context.Context, model, system, prompt string) (*Response, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}

// Factory builds an adapter from an API key.
type Factory func(apiKey string) (Adapter, error)

var factories = map[string]Factory{
	"anthropic": func(key string) (Adapter, error) { return NewAnthropicAdapter(key) },
	"openai":    func(key string) (Adapter, error) { return NewOpenAIAdapter(key) },
	"google":    func(key string) (Adapter, error) { return NewGoogleAdapter(key) },
	"deepseek":  func(key string) (Adapter, error) { return NewDeepSeekAdapter(key) },
	"mock":      func(string) (Adapter, error) { return NewMockAdapter(), nil },
}

// New returns the adapter for provider.
func New(provider, apiKey string) (Adapter, error) {
	f, ok := factories[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
	return f(apiKey)
}

// Providers lists the provider names New accepts.
func Providers() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

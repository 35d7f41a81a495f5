package adapter

import (
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const deepseekBaseURL = "https://api.deepseek.com/v1"

// DeepSeekAdapter talks to DeepSeek through its OpenAI-compatible API.
type DeepSeekAdapter struct {
	*OpenAIAdapter
}

// NewDeepSeekAdapter creates a new DeepSeek adapter.
func NewDeepSeekAdapter(apiKey string) (*DeepSeekAdapter, error) {
	return newDeepSeekAdapter(apiKey, deepseekBaseURL)
}

func newDeepSeekAdapter(apiKey, baseURL string) (*DeepSeekAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepseek API key is required")
	}

	return &DeepSeekAdapter{&OpenAIAdapter{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
		),
		name:   "deepseek",
		models: []string{"deepseek-chat", "deepseek-reasoner"},
	}}, nil
}

package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIAdapter implements the Adapter interface for OpenAI models.
type OpenAIAdapter struct {
	client openai.Client
	name   string
	models []string
}

// NewOpenAIAdapter creates a new OpenAI adapter.
func NewOpenAIAdapter(apiKey string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	return &OpenAIAdapter{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		name:   "openai",
		models: []string{"gpt-5", "gpt-5-mini", "gpt-5-nano", "gpt-4.1"},
	}, nil
}

// Name returns the adapter identifier.
func (a *OpenAIAdapter) Name() string {
	return a.name
}

// Models returns the list of supported models.
func (a *OpenAIAdapter) Models() []string {
	return a.models
}

// Generate sends a prompt through the chat completions API.
func (a *OpenAIAdapter) Generate(ctx context.Context, model, system, prompt string) (*Response, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(classifierMaxTokens),
	})
	if err != nil {
		return nil, a.wrapError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", a.name)
	}

	return &Response{
		Content:  resp.Choices[0].Message.Content,
		Provider: a.name,
		Model:    model,
		Usage:    newUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
	}, nil
}

func (a *OpenAIAdapter) wrapError(err error) error {
	wrapped := fmt.Errorf("%s API error: %w", a.name, err)
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &AdapterError{Status: apiErr.StatusCode, Err: wrapped}
	}
	return wrapped
}

package planner

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIBackend calls a cloud chat-completions endpoint, the cloud path
// the source calls "gemini" but which cadtalk generalises to any
// OpenAI-compatible provider (including Gemini's and most local
// servers' OpenAI-compatible endpoints) via go-openai's configurable
// base URL.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend builds a backend. baseURL may be empty to use
// OpenAI's default endpoint.
func NewOpenAIBackend(apiKey, baseURL, model string) *OpenAIBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIBackend{client: openai.NewClientWithConfig(cfg), model: model}
}

// openAITimeout bounds one cloud completion call.
const openAITimeout = 60 * time.Second

func (b *OpenAIBackend) Call(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, openAITimeout)
	defer cancel()
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("planner: openai backend: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("planner: openai backend: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (b *OpenAIBackend) Name() string { return "openai" }

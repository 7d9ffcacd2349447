package llm

import (
	"context"
	"strings"

	errors "github.com/Laisky/errors/v2"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIChat talks to an OpenAI-compatible chat completions endpoint.
type OpenAIChat struct {
	model  string
	client *openai.LLM
}

// NewOpenAIChat creates a chat completions backend.
func NewOpenAIChat(cfg Config) (*OpenAIChat, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimSpace(cfg.APIKey)),
		openai.WithModel(strings.TrimSpace(cfg.Model)),
		openai.WithHTTPClient(cfg.httpClient()),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, openai.WithBaseURL(strings.TrimRight(base, "/")))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "new openai client")
	}

	return &OpenAIChat{model: strings.TrimSpace(cfg.Model), client: client}, nil
}

// Model returns the configured model name.
func (c *OpenAIChat) Model() string {
	return c.model
}

// Generate sends a two-message conversation and returns the first choice.
func (c *OpenAIChat) Generate(ctx context.Context, system, user string) (string, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, user))

	resp, err := c.client.GenerateContent(ctx, messages)
	if err != nil {
		return "", errors.Wrap(err, "openai chat completion")
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return "", errors.New("openai returned empty content")
	}
	return text, nil
}

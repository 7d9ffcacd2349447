// Package llm provides the chat-completion backends used by pipeline workers.
package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
)

// Backend names accepted by New.
const (
	BackendOpenAI    = "openai"
	BackendResponses = "responses"
	BackendGemini    = "gemini"
)

// ChatModel generates one completion for a system prompt and a user message.
type ChatModel interface {
	Generate(ctx context.Context, system, user string) (string, error)
	// Model returns the model identifier the backend sends upstream.
	Model() string
}

// Config selects and parameterizes a chat backend.
type Config struct {
	Backend string
	APIKey  string
	Model   string
	// BaseURL is the OpenAI-style API root (for example https://api.openai.com/v1),
	// or the Gemini API root for the gemini backend. Empty means the provider default.
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// New builds the ChatModel named by cfg.Backend. An empty backend means openai.
func New(ctx context.Context, cfg Config) (ChatModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("missing api key")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("missing model")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendOpenAI:
		return NewOpenAIChat(cfg)
	case BackendResponses:
		return NewResponsesChat(cfg)
	case BackendGemini:
		return NewGeminiChat(ctx, cfg)
	default:
		return nil, errors.Errorf("unknown llm backend %q", cfg.Backend)
	}
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: c.Timeout}
}

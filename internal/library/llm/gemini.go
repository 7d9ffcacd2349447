package llm

import (
	"context"
	"strings"

	errors "github.com/Laisky/errors/v2"
	"google.golang.org/genai"
)

// GeminiChat generates completions through the Gemini API.
type GeminiChat struct {
	model  string
	client *genai.Client
}

// NewGeminiChat creates a Gemini backend.
func NewGeminiChat(ctx context.Context, cfg Config) (*GeminiChat, error) {
	cc := &genai.ClientConfig{
		APIKey:     strings.TrimSpace(cfg.APIKey),
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.httpClient(),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		cc.HTTPOptions.BaseURL = base
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, errors.Wrap(err, "new gemini client")
	}

	return &GeminiChat{model: strings.TrimSpace(cfg.Model), client: client}, nil
}

func (c *GeminiChat) Model() string {
	return c.model
}

// Generate sends user as the single content turn with system as the system instruction.
func (c *GeminiChat) Generate(ctx context.Context, system, user string) (string, error) {
	cfg := &genai.GenerateContentConfig{CandidateCount: 1}
	if strings.TrimSpace(system) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(user), cfg)
	if err != nil {
		return "", errors.Wrap(err, "gemini generate content")
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("gemini returned empty content")
	}
	return text, nil
}

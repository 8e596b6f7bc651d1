package generator

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/rs/zerolog/log"

	"github.com/upsc-prep/backend/internal/config"
)

// LLMClient is the interface every provider implementation satisfies.
// Implementations make exactly one request per call.
type LLMClient interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error)
}

// LLMResponse holds the raw response content and token usage.
type LLMResponse struct {
	Content      string
	PromptTokens int
	OutputTokens int
}

var defaultModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"gemini":    "gemini-1.5-flash",
	"anthropic": "claude-sonnet-4-5",
	"command":   "command",
	"mock":      "mock",
}

// NewClient builds the LLM client selected by cfg.Provider and returns it
// with the resolved model name.
func NewClient(ctx context.Context, cfg config.LLMConfig) (LLMClient, string, error) {
	model := cfg.Model
	if model == "" {
		model = defaultModels[cfg.Provider]
	}

	var (
		llm LLMClient
		err error
	)
	switch cfg.Provider {
	case "openai":
		llm = NewOpenAIClient(cfg.APIKey, cfg.BaseURL, model, cfg.Temperature)
	case "gemini":
		llm, err = NewGeminiClient(ctx, cfg.APIKey, model, cfg.Temperature)
	case "anthropic":
		llm = NewAnthropicClient(cfg.APIKey, cfg.BaseURL, model, cfg.Temperature)
	case "command":
		llm = NewCommandClient(cfg.Command)
	case "mock":
		llm = NewMockClient()
	default:
		return nil, "", fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, "", err
	}

	log.Info().Str("provider", cfg.Provider).Str("model", model).Msg("llm client ready")
	return llm, model, nil
}

// ── AnthropicClient ─────────────────────────────────────

type AnthropicClient struct {
	client      *anthropic.Client
	model       string
	temperature float64
}

func NewAnthropicClient(apiKey, baseURL, model string, temperature float64) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// Failures surface to the caller after a single attempt.
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicClient{client: &client, model: model, temperature: temperature}
}

func (c *AnthropicClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   2048,
		Temperature: param.NewOpt(c.temperature),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic API: %w", err)
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}

	if responseText == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return &LLMResponse{
		Content:      responseText,
		PromptTokens: int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}, nil
}

package provider

import (
	"context"
	"fmt"
	neturl "net/url"
	"strings"
	"time"

	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o-mini"
	// DefaultTimeout bounds a single generation call.
	DefaultTimeout = 120 * time.Second
)

// OpenAIConfig configures the OpenAI chat-completions generator.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // optional, for OpenAI-compatible endpoints
	Model   string
	Timeout time.Duration
}

// OpenAIGenerator calls the OpenAI chat completions API. The base URL can
// point at any OpenAI-compatible endpoint.
type OpenAIGenerator struct {
	client  openaiclient.Client
	model   string
	timeout time.Duration
}

// NewOpenAIGenerator builds a generator from cfg. The API key is required.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("provider: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		openaioption.WithMaxRetries(0),
	}
	if normalized := normalizeBaseURL(cfg.BaseURL); normalized != "" {
		opts = append(opts, openaioption.WithBaseURL(normalized))
	}

	return &OpenAIGenerator{
		client:  openaiclient.NewClient(opts...),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// Generate sends one chat completion request and returns the trimmed text of
// the first choice.
func (g *OpenAIGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	messages := make([]openaiclient.ChatCompletionMessageParamUnion, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, openaiclient.SystemMessage(systemPrompt))
	}
	messages = append(messages, openaiclient.UserMessage(userPrompt))

	resp, err := g.client.Chat.Completions.New(ctx, openaiclient.ChatCompletionNewParams{
		Model:    openaiclient.ChatModel(g.model),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// ModelName returns the configured model identifier.
func (g *OpenAIGenerator) ModelName() string {
	return g.model
}

// normalizeBaseURL trims the endpoint and ensures it carries the /v1 path the
// chat completions client expects. Empty input stays empty so the SDK default
// applies.
func normalizeBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return ""
	}
	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(base, "/")
	}
	path := strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(path, "/v1") {
		path += "/v1"
	}
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}

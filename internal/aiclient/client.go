package aiclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/appforge/internal/config"
	"github.com/appforge/pkg/models"
)

// Provider names known to the client.
const (
	ProviderOpenAI Provider = "openai"
	ProviderClaude Provider = "claude"
	ProviderGemini Provider = "gemini"
	ProviderOllama Provider = "ollama"
)

// Provider identifies one external AI completion API.
type Provider string

// ErrUnsupportedProvider is returned for provider names outside the known set.
var ErrUnsupportedProvider = errors.New("aiclient: unsupported provider")

// ProviderError wraps a failure from a provider call. It is surfaced to the
// caller as a failed generation and never retried by this client.
type ProviderError struct {
	Provider Provider
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("aiclient: provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Message is one entry of the caller's ordered message history.
type Message struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}

// Request describes one outbound generation call.
type Request struct {
	Provider    Provider  `json:"provider"`
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"maxTokens,omitempty"`
}

// Response is the outcome of one generation call.
type Response struct {
	Content  string       `json:"content"`
	Provider Provider     `json:"provider"`
	Model    string       `json:"model"`
	Usage    models.Usage `json:"usage"`
	Cost     float64      `json:"cost"`
}

// HealthReport is the outcome of a provider connectivity test.
type HealthReport struct {
	Provider  Provider `json:"provider"`
	Available bool     `json:"available"`
	LatencyMs int64    `json:"latencyMs"`
	Error     string   `json:"error,omitempty"`
}

// Client dispatches generation requests to exactly one of a fixed set of
// providers. Underlying langchaingo models are cached per provider+model.
type Client struct {
	providers map[Provider]config.ProviderConfig

	mu     sync.Mutex
	models map[string]llms.Model
}

// NewClient creates a client from per-provider configuration. Entries for
// unknown provider names are ignored.
func NewClient(providers map[string]config.ProviderConfig) *Client {
	known := map[Provider]config.ProviderConfig{}
	for name, cfg := range providers {
		p := Provider(name)
		switch p {
		case ProviderOpenAI, ProviderClaude, ProviderGemini, ProviderOllama:
			known[p] = cfg
		default:
			log.Warn().Str("provider", name).Msg("Ignoring unknown provider in configuration")
		}
	}
	return &Client{providers: known, models: map[string]llms.Model{}}
}

// DefaultModel returns the model used for a provider when the request does
// not name one.
func DefaultModel(p Provider) string {
	switch p {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderClaude:
		return "claude-3-5-sonnet-20241022"
	case ProviderGemini:
		return "gemini-2.5-flash"
	case ProviderOllama:
		return "llama3"
	default:
		return ""
	}
}

// AvailableProviders returns the providers with a configured credential.
func (c *Client) AvailableProviders() []Provider {
	var out []Provider
	for _, p := range []Provider{ProviderOpenAI, ProviderClaude, ProviderGemini, ProviderOllama} {
		if c.configured(p) {
			out = append(out, p)
		}
	}
	return out
}

// ProviderConfig returns the effective configuration for a provider,
// including the default model when none is configured.
func (c *Client) ProviderConfig(p Provider) (config.ProviderConfig, error) {
	cfg, ok := c.providers[p]
	if !ok {
		if DefaultModel(p) == "" {
			return config.ProviderConfig{}, ErrUnsupportedProvider
		}
		return config.ProviderConfig{}, &ProviderError{Provider: p, Err: errors.New("not configured")}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel(p)
	}
	return cfg, nil
}

func (c *Client) configured(p Provider) bool {
	cfg, ok := c.providers[p]
	if !ok {
		return false
	}
	// Ollama is a local server and needs no API key
	if p == ProviderOllama {
		return true
	}
	return cfg.APIKey != ""
}

// Send issues one generation request to the selected provider and returns the
// generated text with token usage and estimated cost.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	p := req.Provider
	switch p {
	case ProviderOpenAI, ProviderClaude, ProviderGemini, ProviderOllama:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, p)
	}

	if !c.configured(p) {
		return nil, &ProviderError{Provider: p, Err: errors.New("no credential configured")}
	}

	model := req.Model
	if model == "" {
		cfg := c.providers[p]
		if cfg.Model != "" {
			model = cfg.Model
		} else {
			model = DefaultModel(p)
		}
	}

	llm, err := c.modelFor(ctx, p, model)
	if err != nil {
		return nil, &ProviderError{Provider: p, Err: err}
	}

	messages := make([]llms.MessageContent, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, llms.TextParts(chatRole(m.Role), m.Content))
	}

	opts := []llms.CallOption{llms.WithModel(model)}
	if req.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(req.Temperature))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}

	log.Debug().
		Str("provider", string(p)).
		Str("model", model).
		Int("messages", len(messages)).
		Msg("Sending generation request")

	resp, err := llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, &ProviderError{Provider: p, Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: p, Err: errors.New("empty response")}
	}

	choice := resp.Choices[0]
	usage := usageFromChoice(choice, req.Messages)

	return &Response{
		Content:  choice.Content,
		Provider: p,
		Model:    model,
		Usage:    usage,
		Cost:     CostForUsage(p, model, usage),
	}, nil
}

// TestProvider issues one minimal request and measures latency and success.
func (c *Client) TestProvider(ctx context.Context, p Provider) HealthReport {
	report := HealthReport{Provider: p}

	start := time.Now()
	_, err := c.Send(ctx, Request{
		Provider:  p,
		Messages:  []Message{{Role: "user", Content: "ping"}},
		MaxTokens: 5,
	})
	report.LatencyMs = time.Since(start).Milliseconds()

	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Available = true
	return report
}

// modelFor returns a cached langchaingo model, constructing it on first use.
func (c *Client) modelFor(ctx context.Context, p Provider, model string) (llms.Model, error) {
	key := string(p) + "/" + model

	c.mu.Lock()
	defer c.mu.Unlock()
	if llm, ok := c.models[key]; ok {
		return llm, nil
	}

	cfg := c.providers[p]
	var (
		llm llms.Model
		err error
	)
	switch p {
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(model)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	case ProviderClaude:
		llm, err = anthropic.New(anthropic.WithToken(cfg.APIKey), anthropic.WithModel(model))
	case ProviderGemini:
		llm, err = googleai.New(ctx, googleai.WithAPIKey(cfg.APIKey), googleai.WithDefaultModel(model))
	case ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		llm, err = ollama.New(ollama.WithServerURL(baseURL), ollama.WithModel(model))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	c.models[key] = llm
	return llm, nil
}

func chatRole(role string) llms.ChatMessageType {
	switch role {
	case "system":
		return llms.ChatMessageTypeSystem
	case "assistant":
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

// usageFromChoice reads token usage out of the provider response, falling
// back to a character-based estimate for providers that report none.
func usageFromChoice(choice *llms.ContentChoice, messages []Message) models.Usage {
	usage := models.Usage{}
	if info := choice.GenerationInfo; info != nil {
		usage.PromptTokens = intFromInfo(info, "PromptTokens", "InputTokens", "prompt_tokens")
		usage.CompletionTokens = intFromInfo(info, "CompletionTokens", "OutputTokens", "completion_tokens")
		usage.TotalTokens = intFromInfo(info, "TotalTokens", "total_tokens")
	}

	if usage.PromptTokens == 0 {
		promptChars := 0
		for _, m := range messages {
			promptChars += len(m.Content)
		}
		usage.PromptTokens = promptChars / 4
	}
	if usage.CompletionTokens == 0 {
		usage.CompletionTokens = len(choice.Content) / 4
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}

func intFromInfo(info map[string]any, keys ...string) int {
	for _, key := range keys {
		switch v := info[key].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}

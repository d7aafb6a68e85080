package aiclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/appforge/internal/config"
	"github.com/appforge/pkg/models"
)

func TestSend_UnsupportedProvider(t *testing.T) {
	c := NewClient(nil)

	_, err := c.Send(context.Background(), Request{
		Provider: "palm",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestSend_UnconfiguredProvider(t *testing.T) {
	c := NewClient(nil)

	_, err := c.Send(context.Background(), Request{
		Provider: ProviderClaude,
		Messages: []Message{{Role: "user", Content: "hi"}},
	})

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, ProviderClaude, provErr.Provider)
}

func TestAvailableProviders(t *testing.T) {
	c := NewClient(map[string]config.ProviderConfig{
		"claude": {APIKey: "sk-test"},
		"openai": {}, // no key, not available
		"ollama": {}, // local, no key needed
		"bogus":  {APIKey: "x"},
	})

	assert.ElementsMatch(t, []Provider{ProviderClaude, ProviderOllama}, c.AvailableProviders())
}

func TestProviderConfig_DefaultModel(t *testing.T) {
	c := NewClient(map[string]config.ProviderConfig{
		"claude": {APIKey: "sk-test"},
		"openai": {APIKey: "sk-test", Model: "gpt-4o"},
	})

	cfg, err := c.ProviderConfig(ProviderClaude)
	require.NoError(t, err)
	assert.Equal(t, DefaultModel(ProviderClaude), cfg.Model)

	cfg, err = c.ProviderConfig(ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.Model)

	_, err = c.ProviderConfig("palm")
	assert.ErrorIs(t, err, ErrUnsupportedProvider)

	_, err = c.ProviderConfig(ProviderGemini)
	var provErr *ProviderError
	assert.ErrorAs(t, err, &provErr)
}

func TestDefaultModel_AllKnownProviders(t *testing.T) {
	for _, p := range []Provider{ProviderOpenAI, ProviderClaude, ProviderGemini, ProviderOllama} {
		assert.NotEmpty(t, DefaultModel(p), string(p))
	}
	assert.Empty(t, DefaultModel("palm"))
}

func TestCostForUsage(t *testing.T) {
	usage := models.Usage{PromptTokens: 1000, CompletionTokens: 1000, TotalTokens: 2000}

	cost := CostForUsage(ProviderClaude, "claude-3-5-sonnet-20241022", usage)
	assert.InDelta(t, 0.003+0.015, cost, 1e-9)

	// Ollama is free
	assert.Zero(t, CostForUsage(ProviderOllama, "llama3", usage))

	// Unknown models fall back to the provider default price
	fallback := CostForUsage(ProviderClaude, "claude-99", usage)
	assert.InDelta(t, cost, fallback, 1e-9)
}

func TestEstimateRequestCost(t *testing.T) {
	c := NewClient(map[string]config.ProviderConfig{"claude": {APIKey: "sk-test"}})

	usage, cost := c.EstimateRequestCost(Request{
		Provider:  ProviderClaude,
		Messages:  []Message{{Role: "user", Content: "aaaabbbbccccdddd"}}, // 16 chars
		MaxTokens: 1000,
	})

	assert.Equal(t, 4, usage.PromptTokens)
	assert.Equal(t, 1000, usage.CompletionTokens)
	assert.Equal(t, 1004, usage.TotalTokens)
	assert.InDelta(t, float64(4)/1000*0.003+1.0*0.015, cost, 1e-9)
}

func TestUsageFromChoice_ReportedTokens(t *testing.T) {
	choice := &llms.ContentChoice{
		Content: "output",
		GenerationInfo: map[string]any{
			"PromptTokens":     120,
			"CompletionTokens": 80,
			"TotalTokens":      200,
		},
	}

	usage := usageFromChoice(choice, nil)
	assert.Equal(t, models.Usage{PromptTokens: 120, CompletionTokens: 80, TotalTokens: 200}, usage)
}

func TestUsageFromChoice_FallbackEstimate(t *testing.T) {
	choice := &llms.ContentChoice{Content: "four char chunks here!!!"}

	usage := usageFromChoice(choice, []Message{{Role: "user", Content: "aaaabbbb"}})
	assert.Equal(t, 2, usage.PromptTokens)
	assert.Positive(t, usage.CompletionTokens)
	assert.Equal(t, usage.PromptTokens+usage.CompletionTokens, usage.TotalTokens)
}

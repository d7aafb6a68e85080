package aiclient

import "github.com/appforge/pkg/models"

// modelPrice is the USD price per 1K tokens for one model.
type modelPrice struct {
	Prompt     float64
	Completion float64
}

// priceTable holds published list prices. The zero value (ollama, unknown
// local models) prices at zero. Prices drift; this table is a snapshot used
// for estimates and per-session cost accounting, not billing.
var priceTable = map[Provider]map[string]modelPrice{
	ProviderOpenAI: {
		"gpt-4o":      {Prompt: 0.0025, Completion: 0.01},
		"gpt-4o-mini": {Prompt: 0.00015, Completion: 0.0006},
		"gpt-4-turbo": {Prompt: 0.01, Completion: 0.03},
	},
	ProviderClaude: {
		"claude-3-5-sonnet-20241022": {Prompt: 0.003, Completion: 0.015},
		"claude-3-5-haiku-20241022":  {Prompt: 0.0008, Completion: 0.004},
		"claude-3-opus-20240229":     {Prompt: 0.015, Completion: 0.075},
	},
	ProviderGemini: {
		"gemini-2.5-flash": {Prompt: 0.000075, Completion: 0.0003},
		"gemini-2.5-pro":   {Prompt: 0.00125, Completion: 0.005},
	},
}

// priceFor resolves the price for a provider/model pair. Unknown models fall
// back to the provider's default model price so estimates never silently
// come out as zero for paid providers.
func priceFor(p Provider, model string) modelPrice {
	table, ok := priceTable[p]
	if !ok {
		return modelPrice{}
	}
	if price, ok := table[model]; ok {
		return price
	}
	return table[DefaultModel(p)]
}

// CostForUsage converts a token usage into an estimated USD cost.
func CostForUsage(p Provider, model string, usage models.Usage) float64 {
	price := priceFor(p, model)
	return float64(usage.PromptTokens)/1000*price.Prompt +
		float64(usage.CompletionTokens)/1000*price.Completion
}

// EstimateRequestCost predicts the cost of a request before sending it:
// prompt tokens from message length at four characters per token, completion
// tokens at the request's token cap.
func (c *Client) EstimateRequestCost(req Request) (models.Usage, float64) {
	promptChars := 0
	for _, m := range req.Messages {
		promptChars += len(m.Content)
	}

	model := req.Model
	if model == "" {
		if cfg, ok := c.providers[req.Provider]; ok && cfg.Model != "" {
			model = cfg.Model
		} else {
			model = DefaultModel(req.Provider)
		}
	}

	usage := models.Usage{
		PromptTokens:     promptChars / 4,
		CompletionTokens: req.MaxTokens,
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	return usage, CostForUsage(req.Provider, model, usage)
}

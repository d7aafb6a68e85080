package generator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/internal/aiclient"
	"github.com/appforge/internal/templates"
	"github.com/appforge/pkg/models"
)

// fakeSender scripts responses per call, in order.
type fakeSender struct {
	responses []fakeResponse
	requests  []aiclient.Request
}

type fakeResponse struct {
	content string
	err     error
}

func (f *fakeSender) Send(_ context.Context, req aiclient.Request) (*aiclient.Response, error) {
	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		return nil, errors.New("fakeSender: no scripted response")
	}
	next := f.responses[0]
	f.responses = f.responses[1:]
	if next.err != nil {
		return nil, next.err
	}
	return &aiclient.Response{
		Content:  next.content,
		Provider: req.Provider,
		Model:    "test-model",
		Usage:    models.Usage{PromptTokens: 100, CompletionTokens: 200, TotalTokens: 300},
		Cost:     0.01,
	}, nil
}

func (f *fakeSender) EstimateRequestCost(req aiclient.Request) (models.Usage, float64) {
	chars := 0
	for _, m := range req.Messages {
		chars += len(m.Content)
	}
	usage := models.Usage{PromptTokens: chars / 4, CompletionTokens: req.MaxTokens}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	return usage, 0.05
}

func filesJSON(path string) string {
	return fmt.Sprintf(`{"files": [{"name": "f", "path": %q, "content": "code", "language": "javascript", "fileType": "component"}]}`, path)
}

func reactVars() map[string]string {
	return map[string]string{
		"componentName":          "Button",
		"purpose":                "a clickable button",
		"props":                  "label, onClick",
		"styling":                "css modules",
		"functionality":          "fires onClick",
		"additionalRequirements": "none",
	}
}

func TestGenerateCode_MainCallOnly(t *testing.T) {
	sender := &fakeSender{responses: []fakeResponse{{content: filesJSON("src/Button.jsx")}}}
	o := NewOrchestrator(templates.NewRegistry(), sender, Defaults{Provider: aiclient.ProviderClaude})

	result, err := o.GenerateCode(context.Background(), Request{
		TemplateID: "react-component",
		Variables:  reactVars(),
	})
	require.NoError(t, err)

	require.Len(t, sender.requests, 1)
	assert.Equal(t, aiclient.ProviderClaude, sender.requests[0].Provider)
	assert.Equal(t, DefaultTemperature, sender.requests[0].Temperature)
	assert.Equal(t, DefaultMaxTokens, sender.requests[0].MaxTokens)

	require.Len(t, result.Files, 1)
	assert.Equal(t, "src/Button.jsx", result.Files[0].Path)
	assert.False(t, result.Partial)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, 300, result.Metadata.TokensUsed.TotalTokens)
	assert.InDelta(t, 0.01, result.Metadata.Cost, 1e-9)
	assert.Equal(t, "react-component", result.Metadata.Template)
	assert.Equal(t, "react", result.Metadata.Framework)
}

func TestGenerateCode_ConfiguredDefaultsApply(t *testing.T) {
	sender := &fakeSender{responses: []fakeResponse{{content: filesJSON("src/Button.jsx")}}}
	o := NewOrchestrator(templates.NewRegistry(), sender, Defaults{
		Provider:    aiclient.ProviderOpenAI,
		Temperature: 0.5,
		MaxTokens:   1234,
	})

	_, err := o.GenerateCode(context.Background(), Request{
		TemplateID: "react-component",
		Variables:  reactVars(),
	})
	require.NoError(t, err)

	require.Len(t, sender.requests, 1)
	assert.Equal(t, aiclient.ProviderOpenAI, sender.requests[0].Provider)
	assert.InDelta(t, 0.5, sender.requests[0].Temperature, 1e-9)
	assert.Equal(t, 1234, sender.requests[0].MaxTokens)

	// Per-request values still win over configured defaults.
	sender.responses = []fakeResponse{{content: filesJSON("src/Button.jsx")}}
	_, err = o.GenerateCode(context.Background(), Request{
		TemplateID:  "react-component",
		Variables:   reactVars(),
		Provider:    aiclient.ProviderClaude,
		Temperature: 0.9,
		MaxTokens:   2000,
	})
	require.NoError(t, err)
	assert.Equal(t, aiclient.ProviderClaude, sender.requests[1].Provider)
	assert.InDelta(t, 0.9, sender.requests[1].Temperature, 1e-9)
	assert.Equal(t, 2000, sender.requests[1].MaxTokens)
}

func TestGenerateCode_WithTestsAndDocs(t *testing.T) {
	sender := &fakeSender{responses: []fakeResponse{
		{content: filesJSON("src/Button.jsx")},
		{content: filesJSON("src/Button.test.jsx")},
		{content: filesJSON("docs/Button.md")},
	}}
	o := NewOrchestrator(templates.NewRegistry(), sender, Defaults{Provider: aiclient.ProviderClaude})

	result, err := o.GenerateCode(context.Background(), Request{
		TemplateID:   "react-component",
		Variables:    reactVars(),
		IncludeTests: true,
		IncludeDocs:  true,
	})
	require.NoError(t, err)

	require.Len(t, sender.requests, 3)
	// Secondary calls carry the generated code as context
	assert.Contains(t, sender.requests[1].Messages[1].Content, "src/Button.jsx")
	assert.Contains(t, sender.requests[2].Messages[1].Content, "code")

	require.Len(t, result.Tests, 1)
	require.Len(t, result.Docs, 1)
	assert.False(t, result.Partial)

	// Tokens and cost sum across all three calls
	assert.Equal(t, 900, result.Metadata.TokensUsed.TotalTokens)
	assert.InDelta(t, 0.03, result.Metadata.Cost, 1e-9)
}

func TestGenerateCode_SecondaryFailureIsPartial(t *testing.T) {
	sender := &fakeSender{responses: []fakeResponse{
		{content: filesJSON("src/Button.jsx")},
		{err: errors.New("provider timeout")},
	}}
	o := NewOrchestrator(templates.NewRegistry(), sender, Defaults{Provider: aiclient.ProviderClaude})

	result, err := o.GenerateCode(context.Background(), Request{
		TemplateID:   "react-component",
		Variables:    reactVars(),
		IncludeTests: true,
	})
	require.NoError(t, err)

	assert.True(t, result.Partial)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "test generation failed")
	assert.Empty(t, result.Tests)
	require.Len(t, result.Files, 1)

	// Only the main call counts toward totals
	assert.Equal(t, 300, result.Metadata.TokensUsed.TotalTokens)
}

func TestGenerateCode_UnknownTemplate(t *testing.T) {
	o := NewOrchestrator(templates.NewRegistry(), &fakeSender{}, Defaults{Provider: aiclient.ProviderClaude})

	_, err := o.GenerateCode(context.Background(), Request{TemplateID: "nope"})
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestGenerateCode_MissingVariables(t *testing.T) {
	sender := &fakeSender{responses: []fakeResponse{{content: filesJSON("x")}}}
	o := NewOrchestrator(templates.NewRegistry(), sender, Defaults{Provider: aiclient.ProviderClaude})

	_, err := o.GenerateCode(context.Background(), Request{
		TemplateID: "react-component",
		Variables:  map[string]string{"componentName": "Button"},
	})

	var missingErr *MissingVariablesError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, "react-component", missingErr.TemplateID)
	assert.Contains(t, missingErr.Missing, "purpose")
	// Validation failed before any provider call
	assert.Empty(t, sender.requests)
}

func TestGenerateCode_MainCallFailure(t *testing.T) {
	sender := &fakeSender{responses: []fakeResponse{{err: errors.New("boom")}}}
	o := NewOrchestrator(templates.NewRegistry(), sender, Defaults{Provider: aiclient.ProviderClaude})

	_, err := o.GenerateCode(context.Background(), Request{
		TemplateID: "react-component",
		Variables:  reactVars(),
	})
	assert.Error(t, err)
}

func TestGenerateBlueprint_UsesBlueprintSettings(t *testing.T) {
	sender := &fakeSender{responses: []fakeResponse{
		{content: filesJSON("BLUEPRINT.md")},
		{content: filesJSON("docs/README.md")},
	}}
	o := NewOrchestrator(templates.NewRegistry(), sender, Defaults{Provider: aiclient.ProviderClaude})

	result, err := o.GenerateBlueprint(context.Background(), BlueprintRequest{
		Description:         "a todo app",
		Framework:           "react",
		Features:            "lists, items",
		TargetUsers:         "everyone",
		Scale:               "small",
		SpecialRequirements: "none",
	})
	require.NoError(t, err)

	require.Len(t, sender.requests, 2)
	assert.Equal(t, BlueprintTemperature, sender.requests[0].Temperature)
	assert.Equal(t, BlueprintMaxTokens, sender.requests[0].MaxTokens)
	require.Len(t, result.Docs, 1)
}

func TestEstimateCost_Multipliers(t *testing.T) {
	o := NewOrchestrator(templates.NewRegistry(), &fakeSender{}, Defaults{Provider: aiclient.ProviderClaude})

	base, err := o.EstimateCost(Request{TemplateID: "react-component", Variables: reactVars()})
	require.NoError(t, err)

	withTests, err := o.EstimateCost(Request{TemplateID: "react-component", Variables: reactVars(), IncludeTests: true})
	require.NoError(t, err)
	assert.InDelta(t, base.EstimatedCost*1.6, withTests.EstimatedCost, 1e-9)

	withBoth, err := o.EstimateCost(Request{
		TemplateID: "react-component", Variables: reactVars(),
		IncludeTests: true, IncludeDocs: true,
	})
	require.NoError(t, err)
	assert.InDelta(t, base.EstimatedCost*1.6*1.4, withBoth.EstimatedCost, 1e-9)
}

package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/appforge/internal/aiclient"
	"github.com/appforge/internal/llm"
	"github.com/appforge/internal/templates"
	"github.com/appforge/pkg/models"
)

// Defaults for the primary generation call.
const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 6000

	// Blueprint calls want more latitude and room than code calls.
	BlueprintTemperature = 0.7
	BlueprintMaxTokens   = 8000
)

// Cost multipliers for the optional secondary calls.
const (
	testsCostMultiplier = 1.6
	docsCostMultiplier  = 1.4
)

// Sender is the slice of the AI client the orchestrator needs. Tests supply
// a fake; production wires *aiclient.Client.
type Sender interface {
	Send(ctx context.Context, req aiclient.Request) (*aiclient.Response, error)
	EstimateRequestCost(req aiclient.Request) (models.Usage, float64)
}

// Request describes one code generation job.
type Request struct {
	TemplateID   string            `json:"templateId"`
	Variables    map[string]string `json:"variables"`
	Provider     aiclient.Provider `json:"provider,omitempty"`
	Model        string            `json:"model,omitempty"`
	Temperature  float64           `json:"temperature,omitempty"`
	MaxTokens    int               `json:"maxTokens,omitempty"`
	IncludeTests bool              `json:"includeTests,omitempty"`
	IncludeDocs  bool              `json:"includeDocs,omitempty"`
}

// Result is the outcome of one generation job. Partial is set when the main
// call succeeded but a secondary (tests or docs) call failed; Warnings says
// which and why.
type Result struct {
	Files    []models.GeneratedFile    `json:"files"`
	Tests    []models.GeneratedFile    `json:"tests,omitempty"`
	Docs     []models.GeneratedFile    `json:"docs,omitempty"`
	Metadata models.GenerationMetadata `json:"metadata"`
	Partial  bool                      `json:"partial,omitempty"`
	Warnings []string                  `json:"warnings,omitempty"`
}

// BlueprintRequest describes an architecture blueprint job.
type BlueprintRequest struct {
	Description         string            `json:"description"`
	Framework           string            `json:"framework"`
	Features            string            `json:"features"`
	TargetUsers         string            `json:"targetUsers"`
	Scale               string            `json:"scale"`
	SpecialRequirements string            `json:"specialRequirements"`
	Provider            aiclient.Provider `json:"provider,omitempty"`
	Model               string            `json:"model,omitempty"`
}

// Estimate is a pre-flight cost prediction. No provider is contacted.
type Estimate struct {
	Usage         models.Usage `json:"usage"`
	EstimatedCost float64      `json:"estimatedCost"`
}

// Defaults supplies the fallbacks for requests that leave provider,
// temperature, or token cap unset. Zero values fall back to the package
// constants.
type Defaults struct {
	Provider    aiclient.Provider
	Temperature float64
	MaxTokens   int
}

// Orchestrator turns a template plus variables into generated files, with
// optional test and documentation passes.
type Orchestrator struct {
	registry *templates.Registry
	sender   Sender
	defaults Defaults
}

// NewOrchestrator wires a registry and a sender.
func NewOrchestrator(registry *templates.Registry, sender Sender, defaults Defaults) *Orchestrator {
	if defaults.Temperature == 0 {
		defaults.Temperature = DefaultTemperature
	}
	if defaults.MaxTokens == 0 {
		defaults.MaxTokens = DefaultMaxTokens
	}
	return &Orchestrator{registry: registry, sender: sender, defaults: defaults}
}

// GenerateCode runs the full pipeline: lookup, validation, render, main
// call, optional tests, optional docs. Validation failures return before any
// provider call. Secondary-call failures never fail the job; they mark the
// result Partial with a warning.
func (o *Orchestrator) GenerateCode(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	tpl, err := o.registry.Get(req.TemplateID)
	if err != nil {
		return nil, err
	}

	validation, err := o.registry.Validate(req.TemplateID, req.Variables)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return nil, &MissingVariablesError{TemplateID: req.TemplateID, Missing: validation.MissingVariables}
	}

	rendered, err := o.registry.Render(req.TemplateID, req.Variables)
	if err != nil {
		return nil, err
	}

	provider := req.Provider
	if provider == "" {
		provider = o.defaults.Provider
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = o.defaults.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = o.defaults.MaxTokens
	}

	resp, err := o.sender.Send(ctx, aiclient.Request{
		Provider: provider,
		Model:    req.Model,
		Messages: []aiclient.Message{
			{Role: "system", Content: rendered.SystemPrompt},
			{Role: "user", Content: rendered.UserPrompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, err
	}

	files, _, err := llm.ParseFileList(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("generator: main call produced unusable output: %w", err)
	}

	result := &Result{
		Files: files,
		Metadata: models.GenerationMetadata{
			Template:    tpl.ID,
			Framework:   tpl.Framework,
			Provider:    string(resp.Provider),
			Model:       resp.Model,
			TokensUsed:  resp.Usage,
			Cost:        resp.Cost,
			GeneratedAt: time.Now().UTC(),
		},
	}

	code := concatFiles(files)

	if req.IncludeTests {
		tests, usage, cost, err := o.secondaryCall(ctx, "test-generator", provider, req.Model, map[string]string{
			"framework": tpl.Framework,
			"code":      code,
		})
		if err != nil {
			result.Partial = true
			result.Warnings = append(result.Warnings, fmt.Sprintf("test generation failed: %v", err))
			log.Warn().Err(err).Str("template", tpl.ID).Msg("Test generation failed, continuing without tests")
		} else {
			result.Tests = tests
			result.Metadata.TokensUsed = result.Metadata.TokensUsed.Add(usage)
			result.Metadata.Cost += cost
		}
	}

	if req.IncludeDocs {
		docs, usage, cost, err := o.secondaryCall(ctx, "documentation", provider, req.Model, map[string]string{
			"framework": tpl.Framework,
			"code":      code,
		})
		if err != nil {
			result.Partial = true
			result.Warnings = append(result.Warnings, fmt.Sprintf("documentation generation failed: %v", err))
			log.Warn().Err(err).Str("template", tpl.ID).Msg("Documentation generation failed, continuing without docs")
		} else {
			result.Docs = docs
			result.Metadata.TokensUsed = result.Metadata.TokensUsed.Add(usage)
			result.Metadata.Cost += cost
		}
	}

	result.Metadata.ProcessingMs = time.Since(start).Milliseconds()
	return result, nil
}

// GenerateBlueprint runs the app-blueprint template at blueprint settings
// with documentation enabled.
func (o *Orchestrator) GenerateBlueprint(ctx context.Context, req BlueprintRequest) (*Result, error) {
	return o.GenerateCode(ctx, Request{
		TemplateID: "app-blueprint",
		Variables: map[string]string{
			"description":         req.Description,
			"framework":           req.Framework,
			"features":            req.Features,
			"targetUsers":         req.TargetUsers,
			"scale":               req.Scale,
			"specialRequirements": req.SpecialRequirements,
		},
		Provider:    req.Provider,
		Model:       req.Model,
		Temperature: BlueprintTemperature,
		MaxTokens:   BlueprintMaxTokens,
		IncludeDocs: true,
	})
}

// EstimateCost predicts a job's cost without contacting any provider. Tests
// and docs multiply the base estimate since each adds a call carrying the
// generated code back as input.
func (o *Orchestrator) EstimateCost(req Request) (*Estimate, error) {
	rendered, err := o.registry.Render(req.TemplateID, req.Variables)
	if err != nil {
		return nil, err
	}

	provider := req.Provider
	if provider == "" {
		provider = o.defaults.Provider
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = o.defaults.MaxTokens
	}

	usage, cost := o.sender.EstimateRequestCost(aiclient.Request{
		Provider: provider,
		Model:    req.Model,
		Messages: []aiclient.Message{
			{Role: "system", Content: rendered.SystemPrompt},
			{Role: "user", Content: rendered.UserPrompt},
		},
		MaxTokens: maxTokens,
	})

	multiplier := 1.0
	if req.IncludeTests {
		multiplier *= testsCostMultiplier
	}
	if req.IncludeDocs {
		multiplier *= docsCostMultiplier
	}

	return &Estimate{
		Usage: models.Usage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: int(float64(usage.CompletionTokens) * multiplier),
			TotalTokens:      usage.PromptTokens + int(float64(usage.CompletionTokens)*multiplier),
		},
		EstimatedCost: cost * multiplier,
	}, nil
}

// secondaryCall runs one follow-up template (tests or docs) at default
// settings and parses its file list.
func (o *Orchestrator) secondaryCall(ctx context.Context, templateID string, provider aiclient.Provider, model string, vars map[string]string) ([]models.GeneratedFile, models.Usage, float64, error) {
	rendered, err := o.registry.Render(templateID, vars)
	if err != nil {
		return nil, models.Usage{}, 0, err
	}

	resp, err := o.sender.Send(ctx, aiclient.Request{
		Provider: provider,
		Model:    model,
		Messages: []aiclient.Message{
			{Role: "system", Content: rendered.SystemPrompt},
			{Role: "user", Content: rendered.UserPrompt},
		},
		Temperature: o.defaults.Temperature,
		MaxTokens:   o.defaults.MaxTokens,
	})
	if err != nil {
		return nil, models.Usage{}, 0, err
	}

	files, _, err := llm.ParseFileList(resp.Content)
	if err != nil {
		return nil, models.Usage{}, 0, err
	}
	return files, resp.Usage, resp.Cost, nil
}

// concatFiles joins generated files into one annotated block for use as
// context in follow-up calls.
func concatFiles(files []models.GeneratedFile) string {
	var b strings.Builder
	for i, f := range files {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "// File: %s\n%s", f.Path, f.Content)
	}
	return b.String()
}

package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/appforge/internal/aiclient"
	"github.com/appforge/internal/generator"
	"github.com/appforge/pkg/models"
)

// DefaultPhasesPerSecond paces phase execution when no rate is configured.
const DefaultPhasesPerSecond = 1.0

// PhaseResult pairs a phase with its generation outcome.
type PhaseResult struct {
	PhaseID string            `json:"phaseId"`
	Name    string            `json:"name"`
	Result  *generator.Result `json:"result"`
}

// ProjectResult is the outcome of executing a whole plan.
type ProjectResult struct {
	PlanType       string        `json:"planType"`
	PlanName       string        `json:"planName"`
	Phases         []PhaseResult `json:"phases"`
	TotalTokens    models.Usage  `json:"totalTokens"`
	TotalCost      float64       `json:"totalCost"`
	ElapsedMinutes float64       `json:"elapsedMinutes"`
}

// Files flattens every generated file across phases, main files first, then
// tests and docs, in phase order.
func (r *ProjectResult) Files() []models.GeneratedFile {
	var out []models.GeneratedFile
	for _, p := range r.Phases {
		out = append(out, p.Result.Files...)
		out = append(out, p.Result.Tests...)
		out = append(out, p.Result.Docs...)
	}
	return out
}

// Executor runs project plans phase by phase through the orchestrator.
type Executor struct {
	orchestrator *generator.Orchestrator
	limiter      *rate.Limiter
}

// NewExecutor wires an orchestrator and a phase rate limit. phasesPerSecond
// at or below zero falls back to the default.
func NewExecutor(orchestrator *generator.Orchestrator, phasesPerSecond float64) *Executor {
	if phasesPerSecond <= 0 {
		phasesPerSecond = DefaultPhasesPerSecond
	}
	return &Executor{
		orchestrator: orchestrator,
		limiter:      rate.NewLimiter(rate.Limit(phasesPerSecond), 1),
	}
}

// GenerateProject executes a plan's phases strictly in listed order. Every
// phase from the second onward receives a previousCode variable carrying all
// code generated so far. Any phase failure aborts the run; the partial
// result built so far is returned alongside the error.
func (e *Executor) GenerateProject(ctx context.Context, plan *ProjectPlan, provider aiclient.Provider, model string, vars map[string]string) (*ProjectResult, error) {
	start := time.Now()
	result := &ProjectResult{PlanType: plan.Type, PlanName: plan.Name}

	executed := make(map[string]bool, len(plan.Phases))
	var previous strings.Builder

	for i, phase := range plan.Phases {
		var missing []string
		for _, dep := range phase.DependsOn {
			if !executed[dep] {
				missing = append(missing, dep)
			}
		}
		if len(missing) > 0 {
			return result, &PhaseDependencyError{Phase: phase.ID, Missing: missing}
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return result, fmt.Errorf("planner: phase %s: %w", phase.ID, err)
		}

		req := generator.Request{
			TemplateID:  phase.TemplateID,
			Variables:   phaseVariables(vars, i > 0, previous.String()),
			Provider:    provider,
			Model:       model,
			Temperature: generator.DefaultTemperature,
			MaxTokens:   generator.DefaultMaxTokens,
		}
		if phase.Kind == KindBlueprint {
			req.Temperature = generator.BlueprintTemperature
			req.MaxTokens = generator.BlueprintMaxTokens
		}
		if phase.Kind == KindCode {
			req.IncludeTests = true
			req.IncludeDocs = true
		}

		log.Info().
			Str("plan", plan.Type).
			Str("phase", phase.ID).
			Int("position", i+1).
			Int("total", len(plan.Phases)).
			Msg("Executing project phase")

		phaseResult, err := e.orchestrator.GenerateCode(ctx, req)
		if err != nil {
			return result, fmt.Errorf("planner: phase %s failed: %w", phase.ID, err)
		}

		result.Phases = append(result.Phases, PhaseResult{PhaseID: phase.ID, Name: phase.Name, Result: phaseResult})
		result.TotalTokens = result.TotalTokens.Add(phaseResult.Metadata.TokensUsed)
		result.TotalCost += phaseResult.Metadata.Cost
		executed[phase.ID] = true

		for _, f := range phaseResult.Files {
			fmt.Fprintf(&previous, "\n\n=== %s: %s ===\n%s", phase.Name, f.Path, f.Content)
		}
	}

	result.ElapsedMinutes = time.Since(start).Minutes()
	return result, nil
}

// phaseVariables builds the variable map for one phase. The caller's values
// win; previousCode is injected from the second phase onward. Plan templates
// declare more variables than callers typically supply, so absent ones get a
// neutral value rather than tripping validation.
func phaseVariables(vars map[string]string, withPrevious bool, previousCode string) map[string]string {
	out := make(map[string]string, len(vars)+8)
	for _, name := range []string{"targetUsers", "scale", "specialRequirements", "endpoints", "entities", "features"} {
		out[name] = "not specified"
	}
	for k, v := range vars {
		out[k] = v
	}
	if withPrevious {
		out["previousCode"] = previousCode
	} else {
		out["previousCode"] = "none yet"
	}
	return out
}

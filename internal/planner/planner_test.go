package planner

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/internal/aiclient"
	"github.com/appforge/internal/generator"
	"github.com/appforge/internal/templates"
	"github.com/appforge/pkg/models"
)

type scriptedSender struct {
	failOn   int // 1-based call index to fail at, 0 disables
	calls    int
	requests []aiclient.Request
}

func (s *scriptedSender) Send(_ context.Context, req aiclient.Request) (*aiclient.Response, error) {
	s.calls++
	s.requests = append(s.requests, req)
	if s.failOn != 0 && s.calls == s.failOn {
		return nil, errors.New("scripted failure")
	}
	content := fmt.Sprintf(
		`{"files": [{"path": "out/phase%d.js", "content": "phase %d output", "language": "javascript", "fileType": "component"}]}`,
		s.calls, s.calls)
	return &aiclient.Response{
		Content:  content,
		Provider: req.Provider,
		Model:    "test-model",
		Usage:    models.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		Cost:     0.002,
	}, nil
}

func (s *scriptedSender) EstimateRequestCost(aiclient.Request) (models.Usage, float64) {
	return models.Usage{}, 0
}

func newExecutor(sender generator.Sender) *Executor {
	orch := generator.NewOrchestrator(templates.NewRegistry(), sender, generator.Defaults{Provider: aiclient.ProviderClaude})
	// High rate so tests don't wait on the pacer
	return NewExecutor(orch, 10_000)
}

func TestCreateProjectPlan_ReactApp(t *testing.T) {
	plan, err := CreateProjectPlan("react-app", "My App")
	require.NoError(t, err)

	require.Len(t, plan.Phases, 4)
	ids := make([]string, len(plan.Phases))
	for i, phase := range plan.Phases {
		ids[i] = phase.ID
	}
	if diff := cmp.Diff([]string{"blueprint", "main-components", "routing", "state-management"}, ids); diff != "" {
		t.Errorf("phase order mismatch (-want +got):\n%s", diff)
	}

	assert.Empty(t, plan.Phases[0].DependsOn)
	assert.Equal(t, []string{"main-components"}, plan.Phases[2].DependsOn)
	assert.Equal(t, []string{"main-components"}, plan.Phases[3].DependsOn)
	assert.Equal(t, KindBlueprint, plan.Phases[0].Kind)
}

func TestCreateProjectPlan_AllTypesValidate(t *testing.T) {
	for _, projectType := range ProjectTypes() {
		plan, err := CreateProjectPlan(projectType, "x")
		require.NoError(t, err, projectType)
		assert.GreaterOrEqual(t, len(plan.Phases), 3, projectType)
		assert.LessOrEqual(t, len(plan.Phases), 5, projectType)
	}
}

func TestCreateProjectPlan_UnknownType(t *testing.T) {
	_, err := CreateProjectPlan("mobile-game", "x")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestValidatePlan_RejectsForwardDependency(t *testing.T) {
	err := validatePlan(&ProjectPlan{
		Type: "bad",
		Phases: []Phase{
			{ID: "a", DependsOn: []string{"b"}},
			{ID: "b"},
		},
	})
	assert.Error(t, err)
}

func TestValidatePlan_RejectsDuplicatePhase(t *testing.T) {
	err := validatePlan(&ProjectPlan{
		Type:   "bad",
		Phases: []Phase{{ID: "a"}, {ID: "a"}},
	})
	assert.Error(t, err)
}

func TestGenerateProject_ExecutesPhasesInOrder(t *testing.T) {
	sender := &scriptedSender{}
	executor := newExecutor(sender)

	plan, err := CreateProjectPlan("react-app", "My App")
	require.NoError(t, err)

	result, err := executor.GenerateProject(context.Background(), plan,
		aiclient.ProviderClaude, "", map[string]string{
			"description": "a todo app",
			"framework":   "react",
			"features":    "lists",
		})
	require.NoError(t, err)

	require.Len(t, result.Phases, 4)
	assert.Equal(t, "blueprint", result.Phases[0].PhaseID)
	assert.Equal(t, "state-management", result.Phases[3].PhaseID)

	// blueprint + 3 code phases with tests+docs each = 1 + 3*3 calls
	assert.Equal(t, 10, sender.calls)

	// Totals sum across every call
	assert.Equal(t, 300, result.TotalTokens.TotalTokens)
	assert.InDelta(t, 0.02, result.TotalCost, 1e-9)
	assert.NotEmpty(t, result.Files())
}

func TestGenerateProject_BlueprintSettingsOnFirstPhase(t *testing.T) {
	sender := &scriptedSender{}
	executor := newExecutor(sender)

	plan, err := CreateProjectPlan("react-app", "My App")
	require.NoError(t, err)

	_, err = executor.GenerateProject(context.Background(), plan,
		aiclient.ProviderClaude, "", map[string]string{
			"description": "a todo app",
			"framework":   "react",
		})
	require.NoError(t, err)

	assert.InDelta(t, generator.BlueprintTemperature, sender.requests[0].Temperature, 1e-9)
	assert.Equal(t, generator.BlueprintMaxTokens, sender.requests[0].MaxTokens)
	assert.InDelta(t, generator.DefaultTemperature, sender.requests[1].Temperature, 1e-9)
}

func TestGenerateProject_PreviousCodeAccumulates(t *testing.T) {
	sender := &scriptedSender{}
	executor := newExecutor(sender)

	plan, err := CreateProjectPlan("react-app", "My App")
	require.NoError(t, err)

	_, err = executor.GenerateProject(context.Background(), plan,
		aiclient.ProviderClaude, "", map[string]string{
			"description": "a todo app",
			"framework":   "react",
		})
	require.NoError(t, err)

	// The second phase's main call carries the blueprint phase output.
	// Call 1 = blueprint, call 2 = main-components main call.
	secondMain := sender.requests[1].Messages[1].Content
	assert.Contains(t, secondMain, "out/phase1.js")

	// A later phase sees output from every earlier phase.
	lastMain := sender.requests[len(sender.requests)-3].Messages[1].Content
	assert.Contains(t, lastMain, "out/phase1.js")
	assert.Contains(t, lastMain, "phase 1 output")
}

func TestGenerateProject_AbortsOnPhaseFailure(t *testing.T) {
	// Fail the second phase's main call (call 2)
	sender := &scriptedSender{failOn: 2}
	executor := newExecutor(sender)

	plan, err := CreateProjectPlan("react-app", "My App")
	require.NoError(t, err)

	result, err := executor.GenerateProject(context.Background(), plan,
		aiclient.ProviderClaude, "", map[string]string{
			"description": "a todo app",
			"framework":   "react",
		})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "main-components")

	// Only the blueprint phase completed; nothing after the failure ran
	require.Len(t, result.Phases, 1)
	assert.Equal(t, 2, sender.calls)
}

func TestGenerateProject_DependencyGuard(t *testing.T) {
	sender := &scriptedSender{}
	executor := newExecutor(sender)

	// Hand-built plan that skips the dependency's phase entirely
	plan := &ProjectPlan{
		Type: "custom",
		Phases: []Phase{
			{ID: "routing", TemplateID: "routing", Kind: KindCode, DependsOn: []string{"main-components"}},
		},
	}

	_, err := executor.GenerateProject(context.Background(), plan,
		aiclient.ProviderClaude, "", map[string]string{"description": "x", "framework": "react"})

	var depErr *PhaseDependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, "routing", depErr.Phase)
	assert.Equal(t, []string{"main-components"}, depErr.Missing)

	// The guard fired before any provider call
	assert.Zero(t, sender.calls)
}

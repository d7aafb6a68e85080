package planner

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPlanNotFound is returned for project types with no registered plan.
var ErrPlanNotFound = errors.New("planner: unknown project type")

// PhaseDependencyError reports a phase whose dependencies have not executed.
type PhaseDependencyError struct {
	Phase   string
	Missing []string
}

func (e *PhaseDependencyError) Error() string {
	return fmt.Sprintf("planner: phase %s missing dependencies: %s",
		e.Phase, strings.Join(e.Missing, ", "))
}

// PhaseKind tells the executor how to run a phase.
type PhaseKind string

const (
	// KindBlueprint runs at blueprint settings and produces architecture text.
	KindBlueprint PhaseKind = "blueprint"
	// KindCode produces source files and gets test and doc passes.
	KindCode PhaseKind = "code"
	// KindDocs produces documentation only.
	KindDocs PhaseKind = "docs"
)

// Phase is one step of a project plan.
type Phase struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	TemplateID string    `json:"templateId"`
	Kind       PhaseKind `json:"kind"`
	DependsOn  []string  `json:"dependsOn,omitempty"`
}

// ProjectPlan is an ordered list of phases for one project type.
type ProjectPlan struct {
	Type   string  `json:"type"`
	Name   string  `json:"name"`
	Phases []Phase `json:"phases"`
}

// CreateProjectPlan builds the plan for a project type. The returned plan has
// already passed dependency validation.
func CreateProjectPlan(projectType, name string) (*ProjectPlan, error) {
	var phases []Phase
	switch projectType {
	case "react-app":
		phases = []Phase{
			{ID: "blueprint", Name: "Application Blueprint", TemplateID: "app-blueprint", Kind: KindBlueprint},
			{ID: "main-components", Name: "Main Components", TemplateID: "main-components", Kind: KindCode},
			{ID: "routing", Name: "Routing Setup", TemplateID: "routing", Kind: KindCode, DependsOn: []string{"main-components"}},
			{ID: "state-management", Name: "State Management", TemplateID: "state-management", Kind: KindCode, DependsOn: []string{"main-components"}},
		}
	case "api-server":
		phases = []Phase{
			{ID: "blueprint", Name: "Application Blueprint", TemplateID: "app-blueprint", Kind: KindBlueprint},
			{ID: "database-schema", Name: "Database Schema", TemplateID: "database-schema", Kind: KindCode},
			{ID: "api-endpoints", Name: "API Endpoints", TemplateID: "api-endpoint", Kind: KindCode, DependsOn: []string{"database-schema"}},
			{ID: "documentation", Name: "Project Documentation", TemplateID: "project-documentation", Kind: KindDocs, DependsOn: []string{"api-endpoints"}},
		}
	case "fullstack":
		phases = []Phase{
			{ID: "blueprint", Name: "Application Blueprint", TemplateID: "app-blueprint", Kind: KindBlueprint},
			{ID: "database-schema", Name: "Database Schema", TemplateID: "database-schema", Kind: KindCode},
			{ID: "api-endpoints", Name: "API Endpoints", TemplateID: "api-endpoint", Kind: KindCode, DependsOn: []string{"database-schema"}},
			{ID: "main-components", Name: "Main Components", TemplateID: "main-components", Kind: KindCode, DependsOn: []string{"api-endpoints"}},
			{ID: "state-management", Name: "State Management", TemplateID: "state-management", Kind: KindCode, DependsOn: []string{"main-components"}},
		}
	case "component-library":
		phases = []Phase{
			{ID: "blueprint", Name: "Application Blueprint", TemplateID: "app-blueprint", Kind: KindBlueprint},
			{ID: "main-components", Name: "Main Components", TemplateID: "main-components", Kind: KindCode},
			{ID: "documentation", Name: "Project Documentation", TemplateID: "project-documentation", Kind: KindDocs, DependsOn: []string{"main-components"}},
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, projectType)
	}

	plan := &ProjectPlan{Type: projectType, Name: name, Phases: phases}
	if err := validatePlan(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// ProjectTypes lists the project types with a registered plan.
func ProjectTypes() []string {
	return []string{"react-app", "api-server", "fullstack", "component-library"}
}

// validatePlan checks that every dependency names an earlier phase. Unknown,
// forward, and duplicate phase ids are all rejected, which also rules out
// cycles in a linear phase list.
func validatePlan(plan *ProjectPlan) error {
	seen := make(map[string]bool, len(plan.Phases))
	for _, phase := range plan.Phases {
		if phase.ID == "" {
			return fmt.Errorf("planner: plan %s has a phase with no id", plan.Type)
		}
		if seen[phase.ID] {
			return fmt.Errorf("planner: plan %s has duplicate phase %s", plan.Type, phase.ID)
		}
		for _, dep := range phase.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("planner: plan %s phase %s depends on %s which is not an earlier phase",
					plan.Type, phase.ID, dep)
			}
		}
		seen[phase.ID] = true
	}
	return nil
}

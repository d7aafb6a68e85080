package templates

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned when a template id is not in the registry.
var ErrNotFound = errors.New("templates: template not found")

// Registry holds prompt templates in memory. It is constructed explicitly and
// passed to whoever needs it, so tests can substitute a fixture registry.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]PromptTemplate
}

// NewRegistry creates a registry seeded with the built-in template catalogue.
func NewRegistry() *Registry {
	r := &Registry{templates: make(map[string]PromptTemplate)}
	for _, t := range builtinTemplates() {
		r.templates[t.ID] = t
	}
	return r
}

// NewEmptyRegistry creates a registry with no templates, for tests and
// callers that build their own catalogue.
func NewEmptyRegistry() *Registry {
	return &Registry{templates: make(map[string]PromptTemplate)}
}

// Get returns the template with the given id.
func (r *Registry) Get(id string) (PromptTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[id]
	if !ok {
		return PromptTemplate{}, ErrNotFound
	}
	return t, nil
}

// All returns every registered template, ordered by id.
func (r *Registry) All() []PromptTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]PromptTemplate, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByCategory returns templates in the given category.
func (r *Registry) ByCategory(category Category) []PromptTemplate {
	var out []PromptTemplate
	for _, t := range r.All() {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// ByFramework returns templates targeting the given framework. Templates with
// no declared framework match any filter.
func (r *Registry) ByFramework(framework string) []PromptTemplate {
	var out []PromptTemplate
	for _, t := range r.All() {
		if t.Framework == "" || strings.EqualFold(t.Framework, framework) {
			out = append(out, t)
		}
	}
	return out
}

// Register inserts or overwrites a template by id.
func (r *Registry) Register(t PromptTemplate) error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("templates: template id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.ID] = t
	return nil
}

// Render substitutes the supplied variables into the template. Every {name}
// occurrence of a declared variable is replaced with its value; declared
// variables absent from the map are rendered as a bracketed [name]
// placeholder instead of failing, so validation stays a separate step.
func (r *Registry) Render(id string, vars map[string]string) (Rendered, error) {
	t, err := r.Get(id)
	if err != nil {
		return Rendered{}, err
	}

	userPrompt := t.UserPrompt
	for _, name := range t.Variables {
		placeholder := "{" + name + "}"
		if value, ok := vars[name]; ok {
			userPrompt = strings.ReplaceAll(userPrompt, placeholder, value)
		} else {
			userPrompt = strings.ReplaceAll(userPrompt, placeholder, "["+name+"]")
		}
	}

	return Rendered{SystemPrompt: t.SystemPrompt, UserPrompt: userPrompt}, nil
}

// Validate checks that every declared variable maps to a non-empty,
// non-whitespace-only string.
func (r *Registry) Validate(id string, vars map[string]string) (Validation, error) {
	t, err := r.Get(id)
	if err != nil {
		return Validation{}, err
	}

	var missing []string
	for _, name := range t.Variables {
		if strings.TrimSpace(vars[name]) == "" {
			missing = append(missing, name)
		}
	}

	return Validation{Valid: len(missing) == 0, MissingVariables: missing}, nil
}

// Search returns templates whose name, description, or category contains the
// query, case-insensitively.
func (r *Registry) Search(query string) []PromptTemplate {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var out []PromptTemplate
	for _, t := range r.All() {
		if strings.Contains(strings.ToLower(t.Name), q) ||
			strings.Contains(strings.ToLower(t.Description), q) ||
			strings.Contains(strings.ToLower(string(t.Category)), q) {
			out = append(out, t)
		}
	}
	return out
}

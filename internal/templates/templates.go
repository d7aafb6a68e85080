package templates

// Category groups prompt templates by the kind of output they produce.
type Category string

const (
	CategoryComponent     Category = "component"
	CategoryTesting       Category = "testing"
	CategoryDocumentation Category = "documentation"
	CategoryArchitecture  Category = "architecture"
	CategoryAPI           Category = "api"
	CategoryDatabase      Category = "database"
)

// PromptTemplate is a named, parameterized prompt pair. The user prompt
// contains {variableName} placeholders; Variables lists the names a caller
// must supply before the template is sent to a provider.
type PromptTemplate struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     Category `json:"category"`
	Framework    string   `json:"framework,omitempty"`
	SystemPrompt string   `json:"systemPrompt"`
	UserPrompt   string   `json:"userPrompt"`
	Variables    []string `json:"variables"`
}

// Rendered is the outcome of substituting variables into a template.
type Rendered struct {
	SystemPrompt string `json:"systemPrompt"`
	UserPrompt   string `json:"userPrompt"`
}

// Validation reports whether a variable map satisfies a template.
type Validation struct {
	Valid            bool     `json:"valid"`
	MissingVariables []string `json:"missingVariables"`
}

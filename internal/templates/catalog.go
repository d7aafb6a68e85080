package templates

// fileListContract is appended to every code-producing user prompt so that
// responses can be parsed into a file list.
const fileListContract = `

Format your response as JSON with the following structure:
` + "```json" + `
{
  "files": [
    {
      "name": "Button.jsx",
      "path": "src/components/Button.jsx",
      "content": "full file content here",
      "language": "javascript",
      "fileType": "component"
    }
  ]
}
` + "```" + `
Include the COMPLETE content of every file. Do not abbreviate or elide code.`

// builtinTemplates is the catalogue loaded into every new registry.
func builtinTemplates() []PromptTemplate {
	return []PromptTemplate{
		{
			ID:          "react-component",
			Name:        "React Component",
			Description: "Generates a single React component from a description of its purpose, props, and behavior",
			Category:    CategoryComponent,
			Framework:   "react",
			SystemPrompt: "You are an expert React developer. Generate clean, idiomatic, production-ready components. " +
				"Follow React best practices: functional components, hooks, prop validation, and accessible markup.",
			UserPrompt: `Create a React component named {componentName}.

Purpose: {purpose}
Props: {props}
Styling: {styling}
Functionality: {functionality}
Additional requirements: {additionalRequirements}` + fileListContract,
			Variables: []string{"componentName", "purpose", "props", "styling", "functionality", "additionalRequirements"},
		},
		{
			ID:          "vue-component",
			Name:        "Vue Component",
			Description: "Generates a single Vue 3 component using the composition API",
			Category:    CategoryComponent,
			Framework:   "vue",
			SystemPrompt: "You are an expert Vue developer. Generate clean, idiomatic Vue 3 single-file components " +
				"using the composition API with <script setup>.",
			UserPrompt: `Create a Vue component named {componentName}.

Purpose: {purpose}
Props: {props}
Styling: {styling}
Functionality: {functionality}` + fileListContract,
			Variables: []string{"componentName", "purpose", "props", "styling", "functionality"},
		},
		{
			ID:          "test-generator",
			Name:        "Test Generator",
			Description: "Generates a test suite for previously generated code",
			Category:    CategoryTesting,
			SystemPrompt: "You are an expert in automated testing. Generate thorough, readable test suites covering " +
				"the happy path, edge cases, and error handling. Use the testing conventions idiomatic to the code's framework.",
			UserPrompt: `Write tests for the following code.

Framework: {framework}

Code:
{code}` + fileListContract,
			Variables: []string{"framework", "code"},
		},
		{
			ID:          "documentation",
			Name:        "Documentation Generator",
			Description: "Generates usage documentation for previously generated code",
			Category:    CategoryDocumentation,
			SystemPrompt: "You are a technical writer. Produce concise, accurate markdown documentation: " +
				"what the code does, how to use it, and a short example.",
			UserPrompt: `Write documentation for the following code.

Framework: {framework}

Code:
{code}` + fileListContract,
			Variables: []string{"framework", "code"},
		},
		{
			ID:          "app-blueprint",
			Name:        "Application Blueprint",
			Description: "Produces an architecture blueprint for a whole application before any code is written",
			Category:    CategoryArchitecture,
			SystemPrompt: "You are a software architect. Design pragmatic application architectures: " +
				"pages, components, data flow, and state. Prefer boring, proven structure over novelty.",
			UserPrompt: `Design an application blueprint.

Description: {description}
Framework: {framework}
Features: {features}
Target users: {targetUsers}
Expected scale: {scale}
Special requirements: {specialRequirements}

Describe the page structure, the component tree, the data model, and how state flows through the app.` + fileListContract,
			Variables: []string{"description", "framework", "features", "targetUsers", "scale", "specialRequirements"},
		},
		{
			ID:          "main-components",
			Name:        "Main Components",
			Description: "Generates the core components of an application from its description and feature list",
			Category:    CategoryComponent,
			SystemPrompt: "You are an expert frontend developer. Generate the core components of an application: " +
				"layout, pages, and the central feature components. Keep components focused and composable.",
			UserPrompt: `Generate the main components for this application.

Description: {description}
Framework: {framework}
Features: {features}

Blueprint and prior output for context:
{previousCode}` + fileListContract,
			Variables: []string{"description", "framework", "features", "previousCode"},
		},
		{
			ID:          "routing",
			Name:        "Routing Setup",
			Description: "Generates the route configuration wiring existing components into pages",
			Category:    CategoryComponent,
			SystemPrompt: "You are an expert frontend developer. Wire existing components into a route " +
				"configuration with sensible URL structure, lazy loading where appropriate, and a 404 fallback.",
			UserPrompt: `Generate the routing setup for this application.

Description: {description}
Framework: {framework}

Components generated so far:
{previousCode}` + fileListContract,
			Variables: []string{"description", "framework", "previousCode"},
		},
		{
			ID:          "state-management",
			Name:        "State Management",
			Description: "Generates the state management layer for existing components",
			Category:    CategoryComponent,
			SystemPrompt: "You are an expert frontend developer. Generate a state management layer matching the " +
				"application's scale: local state where possible, a store only for genuinely shared state.",
			UserPrompt: `Generate the state management layer for this application.

Description: {description}
Framework: {framework}

Components generated so far:
{previousCode}` + fileListContract,
			Variables: []string{"description", "framework", "previousCode"},
		},
		{
			ID:          "api-endpoint",
			Name:        "API Endpoints",
			Description: "Generates REST API route handlers from an endpoint description",
			Category:    CategoryAPI,
			SystemPrompt: "You are an expert backend developer. Generate REST API handlers with input validation, " +
				"consistent error responses, and clear separation between routing and business logic.",
			UserPrompt: `Generate API endpoints for this application.

Description: {description}
Endpoints: {endpoints}

Schema and prior output for context:
{previousCode}` + fileListContract,
			Variables: []string{"description", "endpoints", "previousCode"},
		},
		{
			ID:          "database-schema",
			Name:        "Database Schema",
			Description: "Generates a database schema and data-access layer from an entity description",
			Category:    CategoryDatabase,
			SystemPrompt: "You are an expert in relational data modeling. Generate normalized schemas with " +
				"explicit constraints, indexes for the obvious access paths, and migration-friendly DDL.",
			UserPrompt: `Generate the database schema for this application.

Description: {description}
Entities: {entities}` + fileListContract,
			Variables: []string{"description", "entities"},
		},
		{
			ID:          "project-documentation",
			Name:        "Project Documentation",
			Description: "Generates README-level documentation for a generated project",
			Category:    CategoryDocumentation,
			SystemPrompt: "You are a technical writer. Produce a README covering what the project does, " +
				"how to run it, and how the pieces fit together.",
			UserPrompt: `Write project documentation for this application.

Description: {description}

Generated project files:
{previousCode}` + fileListContract,
			Variables: []string{"description", "previousCode"},
		},
	}
}

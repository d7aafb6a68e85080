package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()

	tpl, err := r.Get("react-component")
	require.NoError(t, err)
	assert.Equal(t, "react-component", tpl.ID)
	assert.Equal(t, CategoryComponent, tpl.Category)
	assert.Equal(t, "react", tpl.Framework)
	assert.Contains(t, tpl.Variables, "componentName")

	_, err = r.Get("no-such-template")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_All_SortedByID(t *testing.T) {
	r := NewRegistry()

	all := r.All()
	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}
}

func TestRegistry_ByCategory(t *testing.T) {
	r := NewRegistry()

	testing_ := r.ByCategory(CategoryTesting)
	require.NotEmpty(t, testing_)
	for _, tpl := range testing_ {
		assert.Equal(t, CategoryTesting, tpl.Category)
	}

	assert.Empty(t, r.ByCategory("nonexistent"))
}

func TestRegistry_ByFramework_EmptyFrameworkMatchesAny(t *testing.T) {
	r := NewEmptyRegistry()
	require.NoError(t, r.Register(PromptTemplate{ID: "a", Framework: "react"}))
	require.NoError(t, r.Register(PromptTemplate{ID: "b", Framework: "vue"}))
	require.NoError(t, r.Register(PromptTemplate{ID: "c"}))

	react := r.ByFramework("react")
	ids := []string{}
	for _, tpl := range react {
		ids = append(ids, tpl.ID)
	}
	assert.ElementsMatch(t, []string{"a", "c"}, ids)
}

func TestRegistry_Render_SubstitutesAllOccurrences(t *testing.T) {
	r := NewEmptyRegistry()
	require.NoError(t, r.Register(PromptTemplate{
		ID:           "greet",
		SystemPrompt: "system",
		UserPrompt:   "Hello {name}, goodbye {name}. Styling: {styling}",
		Variables:    []string{"name", "styling"},
	}))

	rendered, err := r.Render("greet", map[string]string{"name": "Ada", "styling": "css"})
	require.NoError(t, err)
	assert.Equal(t, "system", rendered.SystemPrompt)
	assert.Equal(t, "Hello Ada, goodbye Ada. Styling: css", rendered.UserPrompt)
}

func TestRegistry_Render_MissingVariableBecomesPlaceholder(t *testing.T) {
	r := NewEmptyRegistry()
	require.NoError(t, r.Register(PromptTemplate{
		ID:         "greet",
		UserPrompt: "Hello {name}, styling {styling}",
		Variables:  []string{"name", "styling"},
	}))

	rendered, err := r.Render("greet", map[string]string{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada, styling [styling]", rendered.UserPrompt)
}

func TestRegistry_Render_UnknownTemplate(t *testing.T) {
	r := NewRegistry()
	_, err := r.Render("missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_Validate(t *testing.T) {
	r := NewEmptyRegistry()
	require.NoError(t, r.Register(PromptTemplate{
		ID:        "tpl",
		Variables: []string{"a", "b"},
	}))

	v, err := r.Validate("tpl", map[string]string{"a": "x", "b": "y"})
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Empty(t, v.MissingVariables)

	v, err = r.Validate("tpl", map[string]string{"a": "x", "b": "   "})
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, []string{"b"}, v.MissingVariables)

	v, err = r.Validate("tpl", nil)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, []string{"a", "b"}, v.MissingVariables)
}

func TestRegistry_Register_OverwritesByID(t *testing.T) {
	r := NewEmptyRegistry()
	require.NoError(t, r.Register(PromptTemplate{ID: "tpl", Name: "first"}))
	require.NoError(t, r.Register(PromptTemplate{ID: "tpl", Name: "second"}))

	tpl, err := r.Get("tpl")
	require.NoError(t, err)
	assert.Equal(t, "second", tpl.Name)

	assert.Error(t, r.Register(PromptTemplate{ID: "  "}))
}

func TestRegistry_Search(t *testing.T) {
	r := NewRegistry()

	results := r.Search("REACT")
	require.NotEmpty(t, results)
	found := false
	for _, tpl := range results {
		if tpl.ID == "react-component" {
			found = true
		}
	}
	assert.True(t, found)

	assert.NotEmpty(t, r.Search("testing"))
	assert.Empty(t, r.Search(""))
	assert.Empty(t, r.Search("zzz-no-match"))
}

func TestBuiltinTemplates_DeclareTheirPlaceholders(t *testing.T) {
	r := NewRegistry()
	for _, tpl := range r.All() {
		for _, name := range tpl.Variables {
			assert.Contains(t, tpl.UserPrompt, "{"+name+"}",
				"template %s declares %s but never uses it", tpl.ID, name)
		}
	}
}

package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON_WholeObject(t *testing.T) {
	out := ExtractJSON(`  {"files": []}  `)
	assert.Equal(t, `{"files": []}`, out)
}

func TestExtractJSON_FencedBlock(t *testing.T) {
	response := "Here is your component:\n```json\n{\"files\": [{\"name\": \"A.jsx\"}]}\n```\nEnjoy!"
	out := ExtractJSON(response)
	assert.Equal(t, `{"files": [{"name": "A.jsx"}]}`, out)
}

func TestExtractJSON_EmbeddedInProse(t *testing.T) {
	response := `Sure thing. {"files": [{"name": "A.jsx"}]} Let me know if you need more.`
	out := ExtractJSON(response)
	assert.Equal(t, `{"files": [{"name": "A.jsx"}]}`, out)
}

func TestExtractJSON_NoObject(t *testing.T) {
	assert.Empty(t, ExtractJSON("no json here at all"))
}

func TestRepairJSON_ValidPassesThrough(t *testing.T) {
	raw := `{"files": [{"name": "A.jsx"}]}`
	repaired, stats, err := RepairJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, repaired)
	assert.False(t, stats.WasRepaired)
}

func TestRepairJSON_ClosesTruncatedStructures(t *testing.T) {
	raw := `{"files": [{"name": "A.jsx", "content": "const a = 1;"`
	repaired, stats, err := RepairJSON(raw)
	require.NoError(t, err)
	assert.True(t, stats.WasRepaired)
	assert.Contains(t, stats.Strategies, "completion")
	assert.Equal(t, raw+`}]}`, repaired)
}

func TestRepairJSON_ClosesTruncatedString(t *testing.T) {
	raw := `{"files": [{"name": "A.jsx", "content": "const a = `
	repaired, stats, err := RepairJSON(raw)
	require.NoError(t, err)
	assert.True(t, stats.WasRepaired)
	assert.Equal(t, raw+`"}]}`, repaired)
}

func TestCloseStructures_IgnoresBracesInStrings(t *testing.T) {
	raw := `{"content": "if (x) { return; }", "next": [1, 2`
	out := closeStructures(raw)
	assert.Equal(t, raw+`]}`, out)
}

func TestParseFileList(t *testing.T) {
	response := "```json\n" + `{
		"files": [
			{"name": "Button.jsx", "path": "src/Button.jsx", "content": "export default () => null;", "language": "javascript", "fileType": "component"},
			{"path": "src/styles/button.css", "content": ".btn {}"}
		]
	}` + "\n```"

	files, stats, err := ParseFileList(response)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.False(t, stats.WasRepaired)

	assert.Equal(t, "Button.jsx", files[0].Name)
	assert.Equal(t, "javascript", files[0].Language)

	// Name backfilled from path, language guessed from extension
	assert.Equal(t, "button.css", files[1].Name)
	assert.Equal(t, "css", files[1].Language)
}

func TestParseFileList_TruncatedResponse(t *testing.T) {
	response := `{"files": [{"path": "src/App.tsx", "content": "const App = () => null;"`

	files, stats, err := ParseFileList(response)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, stats.WasRepaired)
	assert.Equal(t, "App.tsx", files[0].Name)
	assert.Equal(t, "typescript", files[0].Language)
}

func TestParseFileList_NoJSON(t *testing.T) {
	_, _, err := ParseFileList("I cannot generate that.")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestParseFileList_EmptyFiles(t *testing.T) {
	_, _, err := ParseFileList(`{"files": []}`)
	assert.Error(t, err)
}

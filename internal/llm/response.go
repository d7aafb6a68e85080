package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/appforge/pkg/models"
)

// ErrNoJSON is returned when no JSON object can be located in a response.
var ErrNoJSON = errors.New("llm: no JSON object found in response")

// RepairStats records what it took to turn raw model output into valid JSON.
type RepairStats struct {
	OriginalBytes int      `json:"original_bytes"`
	RepairedBytes int      `json:"repaired_bytes"`
	WasRepaired   bool     `json:"was_repaired"`
	Strategies    []string `json:"strategies,omitempty"`
}

// ExtractJSON pulls the JSON object embedded in free-form model output.
// Models wrap JSON in markdown fences or prose; this finds the outermost
// object either way. Returns "" when no object is present.
func ExtractJSON(response string) string {
	trimmed := strings.TrimSpace(response)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed
	}

	// Prefer a fenced block when present
	if idx := strings.Index(response, "```json"); idx != -1 {
		rest := response[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end != -1 {
			candidate := strings.TrimSpace(rest[:end])
			if strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return response[start : end+1]
}

// RepairJSON validates raw JSON and, when it does not parse, repairs it.
// Truncated output (token limit) is the common failure, so unbalanced
// braces are closed first; everything else is handed to the jsonrepair
// library.
func RepairJSON(raw string) (string, RepairStats, error) {
	stats := RepairStats{OriginalBytes: len(raw)}

	var probe interface{}
	if json.Unmarshal([]byte(raw), &probe) == nil {
		stats.RepairedBytes = len(raw)
		return raw, stats, nil
	}

	stats.WasRepaired = true
	repaired := raw

	if openBraces, openBrackets := unclosedCount(repaired); openBraces > 0 || openBrackets > 0 {
		repaired = closeStructures(repaired)
		stats.Strategies = append(stats.Strategies, "completion")
		if json.Unmarshal([]byte(repaired), &probe) == nil {
			stats.RepairedBytes = len(repaired)
			return repaired, stats, nil
		}
	}

	libRepaired, err := jsonrepair.JSONRepair(repaired)
	if err == nil {
		repaired = libRepaired
		stats.Strategies = append(stats.Strategies, "jsonrepair_library")
	}

	if json.Unmarshal([]byte(repaired), &probe) != nil {
		stats.RepairedBytes = len(repaired)
		return repaired, stats, fmt.Errorf("llm: JSON repair failed after %d strategies", len(stats.Strategies))
	}

	stats.RepairedBytes = len(repaired)
	return repaired, stats, nil
}

// unclosedCount reports unmatched opening braces and brackets, ignoring
// characters inside string literals.
func unclosedCount(s string) (braces, brackets int) {
	inString := false
	escaped := false
	for _, ch := range s {
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			escaped = inString
		case '"':
			inString = !inString
		case '{':
			if !inString {
				braces++
			}
		case '}':
			if !inString {
				braces--
			}
		case '[':
			if !inString {
				brackets++
			}
		case ']':
			if !inString {
				brackets--
			}
		}
	}
	return braces, brackets
}

// closeStructures appends the closing braces/brackets a truncated response
// is missing, last-opened first.
func closeStructures(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			escaped = inString
		case '"':
			inString = !inString
		case '{':
			if !inString {
				stack = append(stack, '}')
			}
		case '[':
			if !inString {
				stack = append(stack, ']')
			}
		case '}', ']':
			if !inString && len(stack) > 0 && stack[len(stack)-1] == ch {
				stack = stack[:len(stack)-1]
			}
		}
	}

	// A response cut off mid-string needs its quote closed too
	if inString {
		s += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		s += string(stack[i])
	}
	return s
}

// fileListEnvelope matches the JSON contract every code template requests.
type fileListEnvelope struct {
	Files []models.GeneratedFile `json:"files"`
}

// ParseFileList extracts and parses the generated file list out of raw model
// output, repairing the JSON when necessary.
func ParseFileList(response string) ([]models.GeneratedFile, RepairStats, error) {
	jsonStr := ExtractJSON(response)
	if jsonStr == "" {
		return nil, RepairStats{OriginalBytes: len(response)}, ErrNoJSON
	}

	repaired, stats, err := RepairJSON(jsonStr)
	if err != nil {
		return nil, stats, err
	}

	var envelope fileListEnvelope
	if err := json.Unmarshal([]byte(repaired), &envelope); err != nil {
		return nil, stats, fmt.Errorf("llm: failed to parse file list: %w", err)
	}
	if len(envelope.Files) == 0 {
		return nil, stats, errors.New("llm: response contained no files")
	}

	for i := range envelope.Files {
		f := &envelope.Files[i]
		if f.Name == "" && f.Path != "" {
			f.Name = path.Base(f.Path)
		}
		if f.Path == "" {
			f.Path = f.Name
		}
		if f.Language == "" {
			f.Language = languageForPath(f.Path)
		}
	}

	return envelope.Files, stats, nil
}

// languageForPath guesses a language tag from a file extension.
func languageForPath(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".js", ".jsx":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".vue":
		return "vue"
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".css", ".scss":
		return "css"
	case ".html":
		return "html"
	case ".md":
		return "markdown"
	case ".sql":
		return "sql"
	case ".json":
		return "json"
	case ".yml", ".yaml":
		return "yaml"
	default:
		return "text"
	}
}

package generator

import (
	"fmt"
	"strings"

	"github.com/appforge/internal/templates"
)

// ErrTemplateNotFound reports an unknown template id. It is the registry's
// sentinel, re-exported so callers can match at this layer.
var ErrTemplateNotFound = templates.ErrNotFound

// MissingVariablesError reports template variables the caller did not supply.
// It is returned before any provider call is made.
type MissingVariablesError struct {
	TemplateID string
	Missing    []string
}

func (e *MissingVariablesError) Error() string {
	return fmt.Sprintf("generator: template %s missing variables: %s",
		e.TemplateID, strings.Join(e.Missing, ", "))
}

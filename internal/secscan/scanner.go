package secscan

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/zricethezav/gitleaks/v8/detect"

	"github.com/appforge/pkg/models"
)

// Scanner checks generated files for embedded credentials before they are
// saved as an app snapshot. Findings are advisory; generation output is
// never blocked.
type Scanner struct {
	detector *detect.Detector
}

// NewScanner builds a scanner with the default gitleaks ruleset.
func NewScanner() (*Scanner, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create secret detector: %w", err)
	}
	return &Scanner{detector: detector}, nil
}

// Scan runs every file through the detector and returns one warning per
// finding, naming the file and the rule that matched. Secret values
// themselves are never included in the warning text.
func (s *Scanner) Scan(files []models.GeneratedFile) []string {
	var warnings []string
	for _, f := range files {
		for _, finding := range s.detector.DetectString(f.Content) {
			warnings = append(warnings, fmt.Sprintf(
				"possible secret in %s: %s (line %d)",
				f.Path, finding.RuleID, finding.StartLine+1))
		}
	}
	if len(warnings) > 0 {
		log.Warn().Int("findings", len(warnings)).Msg("Secret scan flagged generated files")
	}
	return warnings
}

package models

import "time"

// IssueSeverity grades a validation finding. Errors block IsValid;
// warnings and infos only adjust confidence.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
	SeverityInfo    IssueSeverity = "info"
)

// ValidationIssue is one finding against a candidate record.
// SuggestedValue, when non-nil, is the corrective value validation
// recommends for the field.
type ValidationIssue struct {
	Field          string        `json:"field"`
	Severity       IssueSeverity `json:"severity"`
	Message        string        `json:"message"`
	SuggestedValue interface{}   `json:"suggested_value,omitempty"`
}

// ValidationResult is the full verdict for one candidate record.
// RecommendedValues collects the suggested values of every error and
// warning (infos are advisory only) keyed by field name.
type ValidationResult struct {
	Registration      string                 `json:"registration"`
	IsValid           bool                   `json:"is_valid"`
	ConfidenceScore   float64                `json:"confidence_score"`
	Issues            []ValidationIssue      `json:"issues"`
	RecommendedValues map[string]interface{} `json:"recommended_values,omitempty"`
	Summary           string                 `json:"summary"`
	ValidatedAt       time.Time              `json:"validated_at"`
}

// CountBySeverity tallies issues for confidence scoring and summaries.
func (r *ValidationResult) CountBySeverity() (errors, warnings, infos int) {
	for _, issue := range r.Issues {
		switch issue.Severity {
		case SeverityError:
			errors++
		case SeverityWarning:
			warnings++
		case SeverityInfo:
			infos++
		}
	}
	return
}

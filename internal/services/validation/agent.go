// Package validation checks candidate aircraft records for format,
// logic, cross-reference, type-spec and semantic problems. Issues are
// data: they adjust confidence and suggest corrections but only
// error-severity findings mark a record invalid.
package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/models"
)

const semanticSystemPrompt = "You are an aviation data reviewer. Judge only whether the record's fields are mutually plausible; never invent facts. Reply with JSON only."

const semanticPromptTemplate = `Review this aircraft record for factual plausibility problems the rule checks below would miss: implausible type/model pairings, impossible dates for the stated model, nonsense locations or engines.

Record:
%s

Reply with JSON of exactly this shape and nothing else:
{"issues": [{"field": "...", "severity": "error|warning|info", "message": "..."}]}

Use an empty array when the record looks plausible.`

// semanticReply mirrors the JSON shape the semantic prompt asks for.
type semanticReply struct {
	Issues []struct {
		Field    string `json:"field"`
		Severity string `json:"severity"`
		Message  string `json:"message"`
	} `json:"issues"`
}

// Agent implements interfaces.ValidationAgent.
type Agent struct {
	aircraft  interfaces.AircraftStorage
	extractor interfaces.Extractor
	logger    arbor.ILogger
}

// NewAgent creates a validation agent. A nil extractor disables the
// semantic pass; the rule checks always run.
func NewAgent(aircraft interfaces.AircraftStorage, extractor interfaces.Extractor, logger arbor.ILogger) interfaces.ValidationAgent {
	return &Agent{
		aircraft:  aircraft,
		extractor: extractor,
		logger:    logger,
	}
}

// Validate runs every check against the candidate and composes the
// verdict. The checks accumulate issues in a fixed order: format, logic,
// cross-reference, type-spec, semantic.
func (a *Agent) Validate(ctx context.Context, candidate *models.AircraftDetails, existing *models.AircraftDetails) (*models.ValidationResult, error) {
	if candidate == nil {
		return nil, fmt.Errorf("validation candidate is nil")
	}
	now := time.Now().UTC()

	issues := formatIssues(candidate, now)
	issues = append(issues, logicIssues(candidate, now)...)
	issues = append(issues, crossReferenceIssues(candidate, existing)...)

	if candidate.AircraftType != "" {
		issues = append(issues, typeSpecIssues(candidate, a.lookupType(ctx, candidate.AircraftType))...)
	}

	issues = append(issues, a.semanticIssues(ctx, candidate)...)

	result := &models.ValidationResult{
		Registration: candidate.Registration,
		Issues:       issues,
		ValidatedAt:  now,
	}

	result.RecommendedValues = recommendedValues(issues)
	errCount, warnCount, infoCount := result.CountBySeverity()
	result.IsValid = errCount == 0
	result.ConfidenceScore = validationConfidence(candidate, errCount, warnCount, infoCount)
	result.Summary = summarize(candidate.Registration, result.IsValid, errCount, warnCount, infoCount)

	a.logger.Debug().
		Str("registration", candidate.Registration).
		Bool("valid", result.IsValid).
		Int("errors", errCount).
		Int("warnings", warnCount).
		Float64("confidence", result.ConfidenceScore).
		Msg("Validation completed")
	return result, nil
}

// lookupType resolves the candidate's type code. Unknown types come back
// nil so typeSpecIssues can record the warning; lookup failures other
// than not-found are logged and treated as unknown.
func (a *Agent) lookupType(ctx context.Context, code string) *models.AircraftType {
	spec, err := a.aircraft.FindTypeByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, models.ErrAircraftTypeNotFound) {
			a.logger.Warn().
				Err(err).
				Str("type_code", code).
				Msg("Type lookup failed, treating type as unknown")
		}
		return nil
	}
	return spec
}

// semanticIssues hands the candidate to the extractor for a plausibility
// review. Any failure of the pass is silent: rule-based findings alone
// decide the verdict when the reviewer is unavailable.
func (a *Agent) semanticIssues(ctx context.Context, candidate *models.AircraftDetails) []models.ValidationIssue {
	if a.extractor == nil {
		return nil
	}

	payload, err := json.Marshal(candidate)
	if err != nil {
		return nil
	}

	var reply semanticReply
	opts := models.ExtractOptions{
		Operation:    "validation",
		SystemPrompt: semanticSystemPrompt,
	}
	if err := a.extractor.ExtractJSON(ctx, fmt.Sprintf(semanticPromptTemplate, string(payload)), opts, &reply); err != nil {
		a.logger.Debug().
			Err(err).
			Str("registration", candidate.Registration).
			Msg("Semantic validation pass unavailable, continuing with rule checks only")
		return nil
	}

	issues := make([]models.ValidationIssue, 0, len(reply.Issues))
	for _, raw := range reply.Issues {
		if raw.Message == "" {
			continue
		}
		issues = append(issues, models.ValidationIssue{
			Field:    raw.Field,
			Severity: canonicalSeverity(raw.Severity),
			Message:  raw.Message,
		})
	}
	return issues
}

// canonicalSeverity maps a reviewer-reported severity onto the enum.
// Anything unrecognised degrades to info so a sloppy reply can never
// invalidate a record.
func canonicalSeverity(s string) models.IssueSeverity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return models.SeverityError
	case "warning", "warn":
		return models.SeverityWarning
	default:
		return models.SeverityInfo
	}
}

// recommendedValues collects the suggested corrections of every error and
// warning, keyed by field. Later issues win on field collisions, matching
// the check order (cross-reference overrides format, and so on).
func recommendedValues(issues []models.ValidationIssue) map[string]interface{} {
	var recommended map[string]interface{}
	for _, issue := range issues {
		if issue.SuggestedValue == nil || issue.Severity == models.SeverityInfo {
			continue
		}
		if recommended == nil {
			recommended = make(map[string]interface{})
		}
		recommended[issue.Field] = issue.SuggestedValue
	}
	return recommended
}

// validationConfidence adjusts the candidate's confidence by the issue
// tallies and rewards completeness: score - 0.2/error - 0.1/warning -
// 0.05/info + 0.2*(essential fields / 7), clamped to [0, 1].
func validationConfidence(candidate *models.AircraftDetails, errCount, warnCount, infoCount int) float64 {
	completeness := float64(candidate.EssentialFieldCount()) / 7.0
	score := candidate.ConfidenceScore -
		0.2*float64(errCount) -
		0.1*float64(warnCount) -
		0.05*float64(infoCount) +
		0.2*completeness
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// summarize renders the one-line verdict stored with the result.
func summarize(registration string, valid bool, errCount, warnCount, infoCount int) string {
	verdict := "passed"
	if !valid {
		verdict = "failed"
	}
	return fmt.Sprintf("%s %s validation: %d errors, %d warnings, %d infos",
		registration, verdict, errCount, warnCount, infoCount)
}

// Package extractor holds the LLM-backed structured extraction layer.
// An extractor takes prepared page text plus a prompt and returns the
// JSON the agents described, behind a provider-neutral interface so the
// rest of the pipeline stays indifferent to which API is configured.
package extractor

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aerofleet/internal/common"
	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/models"
)

// New creates the extractor selected by llm.default_provider.
func New(ctx context.Context, cfg *common.Config, auditor interfaces.ExtractionAuditor, logger arbor.ILogger) (interfaces.Extractor, error) {
	switch cfg.LLM.DefaultProvider {
	case common.LLMProviderClaude:
		return NewClaudeExtractor(cfg.Claude, auditor, logger)
	case common.LLMProviderGemini:
		return NewGeminiExtractor(ctx, cfg.Gemini, auditor, logger)
	default:
		return nil, fmt.Errorf("unknown extraction provider: %q", cfg.LLM.DefaultProvider)
	}
}

// recordExtraction writes one audit entry for a finished extractor
// call. The auditor swallows its own failures, so this never blocks
// or fails the extraction itself.
func recordExtraction(auditor interfaces.ExtractionAuditor, provider, model string, opts models.ExtractOptions, prompt string, start time.Time, err error) {
	record := models.ExtractionRecord{
		Timestamp:   start,
		Provider:    provider,
		Model:       model,
		Operation:   opts.Operation,
		Success:     err == nil,
		DurationMS:  time.Since(start).Milliseconds(),
		PromptChars: len(prompt),
	}
	if err != nil {
		record.Error = err.Error()
	}
	auditor.Record(record)
}

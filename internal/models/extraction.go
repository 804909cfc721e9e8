package models

import "time"

// ExtractOptions tunes one structured-extraction call.
type ExtractOptions struct {
	Operation    string        // audit label, e.g. "discovery", "details", "validation"
	Temperature  float32       // zero takes the provider default
	MaxTokens    int           // zero takes the provider default
	SystemPrompt string        // optional system instruction
	Timeout      time.Duration // zero takes the extractor default
}

// ExtractionRecord is one audited extractor call. Records are local
// diagnostics only and never feed back into scraped data.
type ExtractionRecord struct {
	ID          string    `json:"id" badgerhold:"key"`
	Timestamp   time.Time `json:"timestamp"`
	Provider    string    `json:"provider"` // "claude" or "gemini"
	Model       string    `json:"model"`
	Operation   string    `json:"operation"` // e.g. "discovery", "details", "validation"
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	DurationMS  int64     `json:"duration_ms"`
	PromptChars int       `json:"prompt_chars"`
}

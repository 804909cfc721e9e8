package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aerofleet/internal/common"
	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/models"
)

// ClaudeExtractor turns page text into structured JSON using the
// Anthropic API.
type ClaudeExtractor struct {
	client  anthropic.Client
	config  common.ClaudeConfig
	retry   *RetryConfig
	auditor interfaces.ExtractionAuditor
	logger  arbor.ILogger
}

// NewClaudeExtractor creates a Claude-backed extractor.
func NewClaudeExtractor(cfg common.ClaudeConfig, auditor interfaces.ExtractionAuditor, logger arbor.ILogger) (*ClaudeExtractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("claude API key is required (set ANTHROPIC_API_KEY or claude.api_key)")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("claude model is required")
	}

	logger.Info().
		Str("model", cfg.Model).
		Int("max_tokens", cfg.MaxTokens).
		Msg("Claude extractor initialized")

	return &ClaudeExtractor{
		client:  anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		config:  cfg,
		retry:   DefaultRetryConfig(),
		auditor: auditor,
		logger:  logger,
	}, nil
}

// Provider identifies the backing API.
func (e *ClaudeExtractor) Provider() string {
	return "claude"
}

// ExtractJSON sends the prompt to Claude and decodes the JSON payload
// of the reply into out.
func (e *ClaudeExtractor) ExtractJSON(ctx context.Context, prompt string, opts models.ExtractOptions, out interface{}) error {
	timeout := e.config.Timeout()
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	start := time.Now()
	reply, err := withRetry(ctx, e.logger, e.retry, e.Provider(), func() (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return e.complete(callCtx, prompt, opts)
	})
	if err == nil {
		err = decodeJSON(reply, out)
	}
	recordExtraction(e.auditor, e.Provider(), e.config.Model, opts, prompt, start, err)

	if err != nil {
		return err
	}

	e.logger.Debug().
		Str("operation", opts.Operation).
		Int("prompt_chars", len(prompt)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("Claude extraction completed")
	return nil
}

// complete performs one Messages API round trip and returns the text
// content of the reply.
func (e *ClaudeExtractor) complete(ctx context.Context, prompt string, opts models.ExtractOptions) (string, error) {
	maxTokens := e.config.MaxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	temperature := e.config.Temperature
	if opts.Temperature > 0 {
		temperature = opts.Temperature
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(e.config.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	params.Temperature = anthropic.Float(float64(temperature))
	if opts.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: opts.SystemPrompt},
		}
	}

	message, err := e.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("claude returned no text content")
	}
	return text.String(), nil
}

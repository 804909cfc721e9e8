package extractor

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/aerofleet/internal/common"
	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/models"
)

// GeminiExtractor turns page text into structured JSON using the
// Google Gemini API.
type GeminiExtractor struct {
	client  *genai.Client
	config  common.GeminiConfig
	retry   *RetryConfig
	auditor interfaces.ExtractionAuditor
	logger  arbor.ILogger
}

// NewGeminiExtractor creates a Gemini-backed extractor.
func NewGeminiExtractor(ctx context.Context, cfg common.GeminiConfig, auditor interfaces.ExtractionAuditor, logger arbor.ILogger) (*GeminiExtractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required (set GEMINI_API_KEY or gemini.api_key)")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("gemini model is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	logger.Info().
		Str("model", cfg.Model).
		Int("max_tokens", cfg.MaxTokens).
		Msg("Gemini extractor initialized")

	return &GeminiExtractor{
		client:  client,
		config:  cfg,
		retry:   DefaultRetryConfig(),
		auditor: auditor,
		logger:  logger,
	}, nil
}

// Provider identifies the backing API.
func (e *GeminiExtractor) Provider() string {
	return "gemini"
}

// ExtractJSON sends the prompt to Gemini and decodes the JSON payload
// of the reply into out.
func (e *GeminiExtractor) ExtractJSON(ctx context.Context, prompt string, opts models.ExtractOptions, out interface{}) error {
	timeout := e.config.Timeout()
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	start := time.Now()
	reply, err := withRetry(ctx, e.logger, e.retry, e.Provider(), func() (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return e.generate(callCtx, prompt, opts)
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
		Msg("Gemini extraction completed")
	return nil
}

// generate performs one GenerateContent round trip and returns the
// text of the first candidate that has any.
func (e *GeminiExtractor) generate(ctx context.Context, prompt string, opts models.ExtractOptions) (string, error) {
	maxTokens := e.config.MaxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	temperature := e.config.Temperature
	if opts.Temperature > 0 {
		temperature = opts.Temperature
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = int32(maxTokens)
	}
	if opts.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(opts.SystemPrompt, genai.RoleUser)
	}

	contents := []*genai.Content{
		{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				genai.NewPartFromText(prompt),
			},
		},
	}

	response, err := e.client.Models.GenerateContent(ctx, e.config.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}

	var text string
	for _, candidate := range response.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			text += part.Text
		}
		if text != "" {
			break
		}
	}
	if text == "" {
		return "", fmt.Errorf("gemini returned no text content")
	}
	return text, nil
}

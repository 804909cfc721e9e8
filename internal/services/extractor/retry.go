package extractor

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
)

// RetryConfig holds retry configuration for provider API calls. Only
// rate-limit responses are retried here; any other failure surfaces
// immediately so the job-level retry machinery can decide what to do.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the retry configuration used by both
// extraction providers.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        5,
		InitialBackoff:    45 * time.Second,
		MaxBackoff:        90 * time.Second,
		BackoffMultiplier: 1.5,
	}
}

// IsRateLimitError checks if error is a rate limit (429) error.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "rate_limit") ||
		strings.Contains(errStr, "quota")
}

// retryDelayRegex matches both the human-readable delay Gemini puts in
// 429 messages ("Please retry in 42.5s") and the structured retryDelay
// field some responses carry.
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay pulls the provider-suggested retry delay out of an
// error message. Returns 0 when the message carries none.
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}
	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// CalculateBackoff returns the wait before the given attempt. When the
// provider suggested a delay, that wins (plus a safety margin);
// otherwise exponential backoff from InitialBackoff, capped at
// MaxBackoff.
func (c *RetryConfig) CalculateBackoff(attempt int, apiDelay time.Duration) time.Duration {
	base := c.InitialBackoff
	if apiDelay > 0 {
		base = apiDelay + 5*time.Second
	}
	backoff := time.Duration(float64(base) * math.Pow(c.BackoffMultiplier, float64(attempt)))
	if backoff > c.MaxBackoff {
		backoff = c.MaxBackoff
	}
	return backoff
}

// withRetry runs call, backing off on provider rate limits until the
// budget runs out or the context dies. Non-rate-limit errors return
// immediately.
func withRetry(ctx context.Context, logger arbor.ILogger, retry *RetryConfig, provider string, call func() (string, error)) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= retry.MaxRetries; attempt++ {
		text, err := call()
		if err == nil {
			return text, nil
		}
		if !IsRateLimitError(err) {
			return "", err
		}
		lastErr = err
		if attempt == retry.MaxRetries {
			break
		}

		backoff := retry.CalculateBackoff(attempt, ExtractRetryDelay(err))
		logger.Warn().
			Str("provider", provider).
			Int("attempt", attempt+1).
			Int("max_retries", retry.MaxRetries).
			Str("backoff", backoff.String()).
			Msg("Rate limited, backing off before retry")

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context cancelled during rate limit backoff: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}

	return "", fmt.Errorf("rate limit persisted after %d retries: %w", retry.MaxRetries, lastErr)
}

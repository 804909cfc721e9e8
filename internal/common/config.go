package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string        `toml:"environment"` // "development" or "production"
	Logging     LoggingConfig `toml:"logging"`
	Database    DatabaseConfig `toml:"database"`
	Scraper     ScraperConfig `toml:"scraper"`
	Browser     BrowserConfig `toml:"browser"`
	LLM         LLMConfig     `toml:"llm"`
	Claude      ClaudeConfig  `toml:"claude"`
	Gemini      GeminiConfig  `toml:"gemini"`
	Cache       CacheConfig   `toml:"cache"`
	Audit       AuditConfig   `toml:"audit"`
	Events      EventsConfig  `toml:"events"`
}

type LoggingConfig struct {
	Level      string `toml:"level" validate:"oneof=trace debug info warn error"` // "debug", "info", "warn", "error"
	TimeFormat string `toml:"time_format"`                                        // Console time format (default: "15:04:05")
	File       string `toml:"file"`                                               // Log file path (empty disables the file writer)
	MaxSizeMB  int    `toml:"max_size_mb"`                                        // Rolling file size cap
	MaxBackups int    `toml:"max_backups"`                                        // Rolled files to keep
}

type DatabaseConfig struct {
	URL                   string `toml:"url"`             // postgres:// connection string
	MaxConns              int    `toml:"max_conns" validate:"min=1"`
	ConnectTimeoutSeconds int    `toml:"connect_timeout_seconds" validate:"min=1"`
}

// ScraperConfig drives the queue, the scheduler and the workflow fan-out.
type ScraperConfig struct {
	ConcurrentLimit       int    `toml:"concurrent_limit" validate:"min=1"`      // Max jobs executing at once (default: 3)
	PollIntervalMS        int    `toml:"poll_interval_ms" validate:"min=100"`    // Queue poll wait when idle (default: 5000)
	WorkflowConcurrency   int    `toml:"workflow_concurrency" validate:"min=1"`  // Per-job aircraft batch width (default: 5)
	RateLimitMS           int    `toml:"rate_limit_ms" validate:"min=0"`         // Delay between aircraft batches and per-host requests (default: 2000)
	SourceTimeoutSeconds  int    `toml:"source_timeout_seconds" validate:"min=1"` // Per fetch/extract call (default: 30)
	MaxRetries            int    `toml:"max_retries" validate:"min=0"`           // Job retry budget (default: 3)
	RetryDelayMinutes     int    `toml:"retry_delay_minutes" validate:"min=1"`   // Backoff between job retries (default: 30)
	ScheduleEnabled       bool   `toml:"schedule_enabled"`                       // Enable the cron enqueue branch
	ScheduleCron          string `toml:"schedule_cron"`                          // 5-field cron (default: "0 2 * * *")
	Timezone              string `toml:"timezone"`                               // Cron timezone (default: "UTC")
	StaleAfterDays        int    `toml:"stale_after_days" validate:"min=1"`      // Airline re-scrape age for the cron branch (default: 7)
	DeadJobTimeoutMinutes int    `toml:"dead_job_timeout_minutes" validate:"min=1"` // Running-without-progress reclamation cutoff (default: 60)
	CleanupAfterDays      int    `toml:"cleanup_after_days" validate:"min=1"`    // Terminal job retention (default: 30)
	EnqueueCapPerTick     int    `toml:"enqueue_cap_per_tick" validate:"min=1"`  // Max airlines enqueued per cron tick (default: 100)
}

// BrowserConfig tunes the headless browser pool used by the page loader.
type BrowserConfig struct {
	MaxInstances int    `toml:"max_instances" validate:"min=1"` // Pooled browser contexts (default: 3)
	Headless     bool   `toml:"headless"`
	DisableGPU   bool   `toml:"disable_gpu"`
	NoSandbox    bool   `toml:"no_sandbox"`
	UserAgent    string `toml:"user_agent"`
	PageSettleMS int    `toml:"page_settle_ms" validate:"min=0"` // Wait after navigation for JS rendering (default: 2000)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderClaude uses the Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
	// LLMProviderGemini uses the Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
)

// LLMConfig selects the default extraction provider.
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider" validate:"oneof=claude gemini"` // "claude" or "gemini"
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey         string  `toml:"api_key"`     // Anthropic API key (ANTHROPIC_API_KEY or config)
	Model          string  `toml:"model"`       // Model for extraction (default: "claude-haiku-3-5-20241022")
	MaxTokens      int     `toml:"max_tokens"`  // Maximum tokens in response (default: 4096)
	Temperature    float32 `toml:"temperature"` // Extraction temperature (default: 0.1)
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey         string  `toml:"api_key"`     // Google Gemini API key (GEMINI_API_KEY or config)
	Model          string  `toml:"model"`       // Model for extraction (default: "gemini-3-flash-preview")
	MaxTokens      int     `toml:"max_tokens"`  // Maximum tokens in response (default: 4096)
	Temperature    float32 `toml:"temperature"` // Extraction temperature (default: 0.1)
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// CacheConfig controls the TTL page cache.
type CacheConfig struct {
	Enabled  bool   `toml:"enabled"`
	Dir      string `toml:"dir"`       // Badger directory (default: "./data/pagecache")
	TTLHours int    `toml:"ttl_hours"` // Entry lifetime (default: 6)
}

// AuditConfig controls the local extraction audit trail.
type AuditConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"` // Badgerhold directory (default: "./data/audit")
}

// EventsConfig controls job lifecycle publication.
type EventsConfig struct {
	NATSURL       string `toml:"nats_url"`       // Empty disables publishing
	SubjectPrefix string `toml:"subject_prefix"` // Default: "aerofleet.jobs"
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability;
// only user-facing settings should be exposed in aerofleet.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:      "info",
			TimeFormat: "15:04:05",
			File:       "logs/aerofleet.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
		Database: DatabaseConfig{
			URL:                   "postgres://localhost:5432/aerofleet?sslmode=disable",
			MaxConns:              20,
			ConnectTimeoutSeconds: 10,
		},
		Scraper: ScraperConfig{
			ConcurrentLimit:       3,
			PollIntervalMS:        5000,
			WorkflowConcurrency:   5,
			RateLimitMS:           2000,
			SourceTimeoutSeconds:  30,
			MaxRetries:            3,
			RetryDelayMinutes:     30,
			ScheduleEnabled:       false, // Opt-in: the daemon only drains the queue until enabled
			ScheduleCron:          "0 2 * * *",
			Timezone:              "UTC",
			StaleAfterDays:        7,
			DeadJobTimeoutMinutes: 60,
			CleanupAfterDays:      30,
			EnqueueCapPerTick:     100,
		},
		Browser: BrowserConfig{
			MaxInstances: 3,
			Headless:     true,
			DisableGPU:   true,
			NoSandbox:    true,
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			PageSettleMS: 2000,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude,
		},
		Claude: ClaudeConfig{
			APIKey:         "", // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:          "claude-haiku-3-5-20241022",
			MaxTokens:      4096,
			Temperature:    0.1, // Extraction wants determinism, not creativity
			TimeoutSeconds: 30,
		},
		Gemini: GeminiConfig{
			APIKey:         "", // User must provide API key (GEMINI_API_KEY or config)
			Model:          "gemini-3-flash-preview",
			MaxTokens:      4096,
			Temperature:    0.1,
			TimeoutSeconds: 30,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Dir:      "./data/pagecache",
			TTLHours: 6,
		},
		Audit: AuditConfig{
			Enabled: false, // Diagnostics only, off by default
			Dir:     "./data/audit",
		},
		Events: EventsConfig{
			NATSURL:       "",
			SubjectPrefix: "aerofleet.jobs",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier
// files; environment variables override everything.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SCRAPER_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Scraper configuration
	if limit := os.Getenv("SCRAPER_CONCURRENT_LIMIT"); limit != "" {
		if v, err := strconv.Atoi(limit); err == nil {
			config.Scraper.ConcurrentLimit = v
		}
	}
	if interval := os.Getenv("SCRAPER_POLL_INTERVAL_MS"); interval != "" {
		if v, err := strconv.Atoi(interval); err == nil {
			config.Scraper.PollIntervalMS = v
		}
	}
	if concurrency := os.Getenv("SCRAPER_WORKFLOW_CONCURRENCY"); concurrency != "" {
		if v, err := strconv.Atoi(concurrency); err == nil {
			config.Scraper.WorkflowConcurrency = v
		}
	}
	if enabled := os.Getenv("SCRAPER_SCHEDULE_ENABLED"); enabled != "" {
		if v, err := strconv.ParseBool(enabled); err == nil {
			config.Scraper.ScheduleEnabled = v
		}
	}
	if expr := os.Getenv("SCRAPER_SCHEDULE_CRON"); expr != "" {
		config.Scraper.ScheduleCron = expr
	}
	if tz := os.Getenv("SCRAPER_TIMEZONE"); tz != "" {
		config.Scraper.Timezone = tz
	}
	if rateLimit := os.Getenv("SCRAPER_RATE_LIMIT_MS"); rateLimit != "" {
		if v, err := strconv.Atoi(rateLimit); err == nil {
			config.Scraper.RateLimitMS = v
		}
	}
	if retries := os.Getenv("SCRAPER_MAX_RETRIES"); retries != "" {
		if v, err := strconv.Atoi(retries); err == nil {
			config.Scraper.MaxRetries = v
		}
	}
	if delay := os.Getenv("SCRAPER_RETRY_DELAY_MINUTES"); delay != "" {
		if v, err := strconv.Atoi(delay); err == nil {
			config.Scraper.RetryDelayMinutes = v
		}
	}

	// Database configuration
	if url := os.Getenv("SCRAPER_DATABASE_URL"); url != "" {
		config.Database.URL = url
	}

	// Logging configuration
	if level := os.Getenv("SCRAPER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	// LLM provider configuration
	if provider := os.Getenv("SCRAPER_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}

	// Events configuration
	if url := os.Getenv("SCRAPER_NATS_URL"); url != "" {
		config.Events.NATSURL = url
	}
}

// Validate checks field constraints and the cron expression. Called once
// at startup; a bad config should stop the process before any work starts.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Scraper.ScheduleEnabled {
		if err := ValidateSchedule(c.Scraper.ScheduleCron); err != nil {
			return fmt.Errorf("invalid scraper schedule: %w", err)
		}
		if _, err := time.LoadLocation(c.Scraper.Timezone); err != nil {
			return fmt.Errorf("invalid scraper timezone %q: %w", c.Scraper.Timezone, err)
		}
	}
	return nil
}

// ValidateSchedule validates a 5-field cron expression and rejects
// schedules tighter than five minutes.
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	minuteField := parts[0]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}
	if strings.HasPrefix(minuteField, "*/") {
		interval, err := strconv.Atoi(strings.TrimPrefix(minuteField, "*/"))
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// PollInterval returns the queue idle wait as a duration.
func (s *ScraperConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMS) * time.Millisecond
}

// RateLimit returns the inter-batch and per-host delay as a duration.
func (s *ScraperConfig) RateLimit() time.Duration {
	return time.Duration(s.RateLimitMS) * time.Millisecond
}

// SourceTimeout returns the per fetch/extract call timeout.
func (s *ScraperConfig) SourceTimeout() time.Duration {
	return time.Duration(s.SourceTimeoutSeconds) * time.Second
}

// DeadJobTimeout returns the running-job reclamation cutoff.
func (s *ScraperConfig) DeadJobTimeout() time.Duration {
	return time.Duration(s.DeadJobTimeoutMinutes) * time.Minute
}

// StaleAfter returns the airline re-scrape age for the cron branch.
func (s *ScraperConfig) StaleAfter() time.Duration {
	return time.Duration(s.StaleAfterDays) * 24 * time.Hour
}

// PageSettle returns the post-navigation render wait.
func (b *BrowserConfig) PageSettle() time.Duration {
	return time.Duration(b.PageSettleMS) * time.Millisecond
}

// Timeout returns the per-call deadline for Claude extraction requests.
func (c *ClaudeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout returns the per-call deadline for Gemini extraction requests.
func (g *GeminiConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

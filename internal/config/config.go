// Package config provides configuration management for the scribe CLI.
// It loads configuration from environment variables with sensible defaults.
// Core packages never read the environment themselves; adapters receive
// their credentials and tuning from here at construction time.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Verbosity represents the output verbosity level
type Verbosity string

const (
	// VerbosityNormal shows only essential output
	VerbosityNormal Verbosity = "normal"
	// VerbosityVerbose includes step descriptions and timing
	VerbosityVerbose Verbosity = "verbose"
	// VerbosityDebug provides full debug logging
	VerbosityDebug Verbosity = "debug"
)

// SlackConfig holds chat-source configuration
type SlackConfig struct {
	// Token is the Slack bot token used for thread fetches
	Token string

	// Timeout is the per-request timeout for Slack API calls
	Timeout time.Duration

	// MaxRetries bounds retries after the initial attempt
	MaxRetries int
}

// LLMConfig holds transform configuration
type LLMConfig struct {
	// APIKey authenticates against the chat-completions API
	APIKey string

	// BaseURL overrides the API endpoint (empty = provider default)
	BaseURL string

	// Model is the model identifier sent with every request
	Model string

	// Timeout is the per-request timeout for transform calls
	Timeout time.Duration

	// MaxRetries bounds retries after the initial attempt
	MaxRetries int
}

// NotionConfig holds document-store configuration
type NotionConfig struct {
	// Token is the Notion integration token
	Token string

	// Timeout is the per-request timeout for page creation
	Timeout time.Duration

	// MaxRetries bounds retries after the initial attempt
	MaxRetries int
}

// WorkerConfig holds run-worker configuration
type WorkerConfig struct {
	// PollInterval is how often the worker checks for pending runs
	PollInterval time.Duration
}

// Config holds all configuration for the scribe CLI
type Config struct {
	// DBPath is the SQLite database holding run records
	DBPath string

	// TemplatesFile is an optional YAML file of named transform templates
	TemplatesFile string

	// Verbosity controls output level
	Verbosity Verbosity

	// Slack holds chat-source configuration
	Slack SlackConfig

	// LLM holds transform configuration
	LLM LLMConfig

	// Notion holds document-store configuration
	Notion NotionConfig

	// Worker holds run-worker configuration
	Worker WorkerConfig
}

// New creates a new Config instance from environment variables
func New() (*Config, error) {
	cfg := &Config{}

	// Load DBPath - defaults to scribe.db in the working directory
	dbPath := os.Getenv("SCRIBE_DB_PATH")
	if dbPath == "" {
		dbPath = "scribe.db"
	}
	cfg.DBPath = dbPath

	cfg.TemplatesFile = os.Getenv("SCRIBE_TEMPLATES_FILE")

	// Load Verbosity - defaults to normal
	verbosity := os.Getenv("SCRIBE_VERBOSITY")
	if verbosity == "" {
		cfg.Verbosity = VerbosityNormal
	} else {
		switch Verbosity(verbosity) {
		case VerbosityNormal, VerbosityVerbose, VerbosityDebug:
			cfg.Verbosity = Verbosity(verbosity)
		default:
			return nil, fmt.Errorf("SCRIBE_VERBOSITY must be one of: normal, verbose, debug; got: %s", verbosity)
		}
	}

	// Load Slack configuration
	cfg.Slack = SlackConfig{Token: os.Getenv("SCRIBE_SLACK_TOKEN")}

	slackTimeout, err := parseDurationEnv("SCRIBE_SLACK_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.Slack.Timeout = slackTimeout

	slackRetries, err := parseIntEnv("SCRIBE_SLACK_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	cfg.Slack.MaxRetries = slackRetries

	// Load LLM configuration
	cfg.LLM = LLMConfig{
		APIKey:  os.Getenv("SCRIBE_LLM_API_KEY"),
		BaseURL: os.Getenv("SCRIBE_LLM_BASE_URL"),
	}

	model := os.Getenv("SCRIBE_LLM_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	cfg.LLM.Model = model

	llmTimeout, err := parseDurationEnv("SCRIBE_LLM_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.LLM.Timeout = llmTimeout

	llmRetries, err := parseIntEnv("SCRIBE_LLM_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	cfg.LLM.MaxRetries = llmRetries

	// Load Notion configuration
	cfg.Notion = NotionConfig{Token: os.Getenv("SCRIBE_NOTION_TOKEN")}

	notionTimeout, err := parseDurationEnv("SCRIBE_NOTION_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.Notion.Timeout = notionTimeout

	notionRetries, err := parseIntEnv("SCRIBE_NOTION_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	cfg.Notion.MaxRetries = notionRetries

	// Load Worker configuration
	pollInterval, err := parseDurationEnv("SCRIBE_WORKER_POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.Worker = WorkerConfig{PollInterval: pollInterval}

	return cfg, nil
}

// IsVerbose returns true if verbosity is verbose or debug
func (c *Config) IsVerbose() bool {
	return c.Verbosity == VerbosityVerbose || c.Verbosity == VerbosityDebug
}

// IsDebug returns true if verbosity is debug
func (c *Config) IsDebug() bool {
	return c.Verbosity == VerbosityDebug
}

// parseDurationEnv parses a duration environment variable given in seconds
// with a default value
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("%s must be positive, got: %d", key, seconds)
	}
	return time.Duration(seconds) * time.Second, nil
}

// parseIntEnv parses a non-negative integer environment variable with a
// default value
func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("%s must not be negative, got: %d", key, parsed)
	}
	return parsed, nil
}

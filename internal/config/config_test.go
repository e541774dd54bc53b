package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"SCRIBE_DB_PATH",
		"SCRIBE_TEMPLATES_FILE",
		"SCRIBE_VERBOSITY",
		"SCRIBE_SLACK_TOKEN",
		"SCRIBE_SLACK_TIMEOUT",
		"SCRIBE_SLACK_MAX_RETRIES",
		"SCRIBE_LLM_API_KEY",
		"SCRIBE_LLM_BASE_URL",
		"SCRIBE_LLM_MODEL",
		"SCRIBE_LLM_TIMEOUT",
		"SCRIBE_LLM_MAX_RETRIES",
		"SCRIBE_NOTION_TOKEN",
		"SCRIBE_NOTION_TIMEOUT",
		"SCRIBE_NOTION_MAX_RETRIES",
		"SCRIBE_WORKER_POLL_INTERVAL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestNew_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "scribe.db", cfg.DBPath)
	assert.Empty(t, cfg.TemplatesFile)
	assert.Equal(t, VerbosityNormal, cfg.Verbosity)

	assert.Equal(t, 30*time.Second, cfg.Slack.Timeout)
	assert.Equal(t, 3, cfg.Slack.MaxRetries)

	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)

	assert.Equal(t, 30*time.Second, cfg.Notion.Timeout)
	assert.Equal(t, 3, cfg.Notion.MaxRetries)

	assert.Equal(t, 5*time.Second, cfg.Worker.PollInterval)
}

func TestNew_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCRIBE_DB_PATH", "/var/lib/scribe/runs.db")
	t.Setenv("SCRIBE_TEMPLATES_FILE", "/etc/scribe/templates.yaml")
	t.Setenv("SCRIBE_VERBOSITY", "debug")
	t.Setenv("SCRIBE_SLACK_TOKEN", "xoxb-test")
	t.Setenv("SCRIBE_SLACK_TIMEOUT", "10")
	t.Setenv("SCRIBE_SLACK_MAX_RETRIES", "5")
	t.Setenv("SCRIBE_LLM_API_KEY", "sk-test")
	t.Setenv("SCRIBE_LLM_MODEL", "gpt-4o")
	t.Setenv("SCRIBE_NOTION_TOKEN", "secret-test")
	t.Setenv("SCRIBE_WORKER_POLL_INTERVAL", "30")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/scribe/runs.db", cfg.DBPath)
	assert.Equal(t, "/etc/scribe/templates.yaml", cfg.TemplatesFile)
	assert.Equal(t, VerbosityDebug, cfg.Verbosity)
	assert.Equal(t, "xoxb-test", cfg.Slack.Token)
	assert.Equal(t, 10*time.Second, cfg.Slack.Timeout)
	assert.Equal(t, 5, cfg.Slack.MaxRetries)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, "secret-test", cfg.Notion.Token)
	assert.Equal(t, 30*time.Second, cfg.Worker.PollInterval)
}

func TestNew_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"invalid verbosity", "SCRIBE_VERBOSITY", "chatty"},
		{"non-numeric timeout", "SCRIBE_SLACK_TIMEOUT", "soon"},
		{"zero timeout", "SCRIBE_LLM_TIMEOUT", "0"},
		{"negative timeout", "SCRIBE_NOTION_TIMEOUT", "-5"},
		{"negative retries", "SCRIBE_SLACK_MAX_RETRIES", "-1"},
		{"non-numeric retries", "SCRIBE_LLM_MAX_RETRIES", "many"},
		{"zero poll interval", "SCRIBE_WORKER_POLL_INTERVAL", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := New()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestNew_ZeroRetriesAllowed(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCRIBE_SLACK_MAX_RETRIES", "0")

	cfg, err := New()
	require.NoError(t, err)
	assert.Zero(t, cfg.Slack.MaxRetries)
}

func TestVerbosityHelpers(t *testing.T) {
	t.Parallel()

	normal := &Config{Verbosity: VerbosityNormal}
	assert.False(t, normal.IsVerbose())
	assert.False(t, normal.IsDebug())

	verbose := &Config{Verbosity: VerbosityVerbose}
	assert.True(t, verbose.IsVerbose())
	assert.False(t, verbose.IsDebug())

	debug := &Config{Verbosity: VerbosityDebug}
	assert.True(t, debug.IsVerbose())
	assert.True(t, debug.IsDebug())
}

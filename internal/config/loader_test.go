package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadWithFile(t *testing.T) {
	t.Run("missing file uses defaults", func(t *testing.T) {
		cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, 50, cfg.History.MaxEntries)
		assert.Equal(t, 4, cfg.Agents.MaxDelegationDepth)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := writeConfigFile(t, `
server:
  port: 9191
logging:
  level: debug
providers:
  hacker_news:
    url: http://localhost:9000
    limit: 30
agents:
  trend_limit: 5
`)
		cfg, err := LoadWithFile(path)
		require.NoError(t, err)
		assert.Equal(t, 9191, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "http://localhost:9000", cfg.Providers.HackerNews.URL)
		assert.Equal(t, 30, cfg.Providers.HackerNews.Limit)
		assert.Equal(t, 15*time.Second, cfg.Providers.HackerNews.Timeout)
		assert.Equal(t, 5, cfg.Agents.TrendLimit)
	})

	t.Run("env overrides file", func(t *testing.T) {
		path := writeConfigFile(t, "server:\n  port: 9191\n")
		t.Setenv("SERVER_PORT", "7070")
		cfg, err := LoadWithFile(path)
		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.Server.Port)
	})

	t.Run("env configures provider", func(t *testing.T) {
		t.Setenv("PROVIDERS_HACKER_NEWS_URL", "http://localhost:9000")
		t.Setenv("PROVIDERS_GITHUB_URL", "http://localhost:9002")
		cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:9000", cfg.Providers.HackerNews.URL)
		assert.Equal(t, "http://localhost:9002", cfg.Providers.GitHub.URL)
	})

	t.Run("rejects oversized file", func(t *testing.T) {
		path := writeConfigFile(t, string(make([]byte, maxConfigFileSize+1)))
		_, err := LoadWithFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too large")
	})

	t.Run("invalid values fail validation", func(t *testing.T) {
		path := writeConfigFile(t, "telemetry:\n  sample_ratio: 7\n")
		_, err := LoadWithFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation")
	})
}

func TestTransformEnv(t *testing.T) {
	cases := map[string]string{
		"SERVER_PORT":                   "server.port",
		"SERVER_SHUTDOWN_TIMEOUT":       "server.shutdown_timeout",
		"LOGGING_LEVEL":                 "logging.level",
		"TELEMETRY_SERVICE_NAME":        "telemetry.service_name",
		"COMPLETION_API_KEY":            "completion.api_key",
		"PROVIDERS_HACKER_NEWS_URL":     "providers.hacker_news.url",
		"PROVIDERS_HACKER_NEWS_TIMEOUT": "providers.hacker_news.timeout",
		"PROVIDERS_BRAVE_SEARCH_LIMIT":  "providers.brave_search.limit",
		"PROVIDERS_GITHUB_URL":          "providers.github.url",
		"AGENTS_MAX_DELEGATION_DEPTH":   "agents.max_delegation_depth",
	}
	for in, want := range cases {
		assert.Equal(t, want, transformEnv(in), in)
	}
}

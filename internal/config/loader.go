package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB
)

// providerSections are config sections whose children are provider names
// that may themselves contain underscores (hacker_news). The env
// transformer needs to split these differently.
var providerNames = map[string]bool{
	ProviderHackerNews:  true,
	ProviderBraveSearch: true,
	ProviderGitHub:      true,
}

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SERVER_PORT, PROVIDERS_HACKER_NEWS_URL, ...)
//  2. YAML config file (~/.config/trendd/config.yaml by default)
//  3. Hardcoded defaults
//
// A missing config file is not an error; the daemon runs on env and
// defaults alone. Files larger than 1MB are rejected.
//
// Environment variables map section-first:
//
//	SERVER_PORT                -> server.port
//	LOGGING_LEVEL              -> logging.level
//	PROVIDERS_HACKER_NEWS_URL  -> providers.hacker_news.url
//	COMPLETION_API_KEY         -> completion.api_key
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "trendd", "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", transformEnv), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// transformEnv maps an environment variable name to a koanf key.
//
// The general pattern is section-first: the first underscore separates the
// section from the field, and the field keeps its underscores
// (SERVER_SHUTDOWN_TIMEOUT -> server.shutdown_timeout). The providers
// section has a third level whose middle segment is a provider name that
// may itself contain underscores, so those are matched against the known
// provider set (PROVIDERS_HACKER_NEWS_URL -> providers.hacker_news.url).
func transformEnv(s string) string {
	lower := strings.ToLower(s)
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}

	section, rest := parts[0], parts[1]
	if section != "providers" {
		return section + "." + rest
	}

	// providers.<name>.<field>: the field is the last segment, the name
	// is everything in between.
	segments := strings.Split(rest, "_")
	if len(segments) < 2 {
		return section + "." + rest
	}
	for i := len(segments) - 1; i >= 1; i-- {
		name := strings.Join(segments[:i], "_")
		if providerNames[name] {
			return section + "." + name + "." + strings.Join(segments[i:], "_")
		}
	}
	return section + "." + rest
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "trendd"
	}
	if cfg.Telemetry.SampleRatio == 0 {
		cfg.Telemetry.SampleRatio = 1.0
	}

	// Provider defaults: timeouts and result limits only. URLs default to
	// empty, which means disabled.
	for _, p := range []*Provider{
		&cfg.Providers.HackerNews,
		&cfg.Providers.BraveSearch,
		&cfg.Providers.GitHub,
	} {
		if p.Timeout == 0 {
			p.Timeout = 15 * time.Second
		}
		if p.Limit == 0 {
			p.Limit = 20
		}
	}

	if cfg.Completion.Model == "" {
		cfg.Completion.Model = "gpt-4o-mini"
	}

	if cfg.History.MaxEntries == 0 {
		cfg.History.MaxEntries = 50
	}

	if cfg.Agents.TrendLimit == 0 {
		cfg.Agents.TrendLimit = 10
	}
	if cfg.Agents.MaxRepos == 0 {
		cfg.Agents.MaxRepos = 5
	}
	if cfg.Agents.RepoConcurrency == 0 {
		cfg.Agents.RepoConcurrency = 3
	}
	if cfg.Agents.MaxDelegationDepth == 0 {
		cfg.Agents.MaxDelegationDepth = 4
	}
}

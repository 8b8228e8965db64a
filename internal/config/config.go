// Package config provides configuration loading for trendd.
//
// Configuration is loaded from a YAML file, then overridden by environment
// variables, then backfilled with defaults. A tool provider with no URL is
// a disabled provider, not a configuration error: the daemon runs with
// whatever subset of providers is reachable.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/trendd/internal/logging"
)

// Canonical tool provider names. The gateway registry and the agents both
// key on these.
const (
	ProviderHackerNews  = "hacker_news"
	ProviderBraveSearch = "brave_search"
	ProviderGitHub      = "github"
)

// Config holds the complete trendd configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    logging.Config   `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Providers  ProvidersConfig  `koanf:"providers"`
	Completion CompletionConfig `koanf:"completion"`
	Memory     MemoryConfig     `koanf:"memory"`
	History    HistoryConfig    `koanf:"history"`
	Agents     AgentsConfig     `koanf:"agents"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// TelemetryConfig holds OpenTelemetry tracing configuration.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRatio float64 `koanf:"sample_ratio"`
}

// Provider holds the configuration of one external tool provider.
//
// An empty URL means the provider is disabled. Disabled lets an operator
// turn a provider off without deleting its URL.
type Provider struct {
	URL      string        `koanf:"url"`
	Disabled bool          `koanf:"disabled"`
	Limit    int           `koanf:"limit"`
	Timeout  time.Duration `koanf:"timeout"`
}

// Configured reports whether the provider should be reachable.
func (p Provider) Configured() bool {
	return p.URL != "" && !p.Disabled
}

// ProvidersConfig holds the name -> provider mapping.
type ProvidersConfig struct {
	HackerNews  Provider `koanf:"hacker_news"`
	BraveSearch Provider `koanf:"brave_search"`
	GitHub      Provider `koanf:"github"`
}

// Map returns the provider set keyed by canonical name. Unconfigured
// providers are omitted.
func (p ProvidersConfig) Map() map[string]Provider {
	out := make(map[string]Provider, 3)
	for name, prov := range map[string]Provider{
		ProviderHackerNews:  p.HackerNews,
		ProviderBraveSearch: p.BraveSearch,
		ProviderGitHub:      p.GitHub,
	} {
		if prov.Configured() {
			out[name] = prov
		}
	}
	return out
}

// CompletionConfig holds the text-completion backend configuration.
// The backend is any OpenAI-compatible endpoint.
type CompletionConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  string `koanf:"api_key"`
}

// MemoryConfig holds conversation memory configuration.
//
// When an embedding API key is available the memory is vector-backed;
// otherwise it degrades to substring recall. PersistPath empty keeps the
// store purely in memory.
type MemoryConfig struct {
	Disabled    bool   `koanf:"disabled"`
	PersistPath string `koanf:"persist_path"`
}

// HistoryConfig holds history retention configuration.
type HistoryConfig struct {
	MaxEntries int `koanf:"max_entries"`
}

// AgentsConfig holds agent-level tunables.
type AgentsConfig struct {
	TrendLimit         int `koanf:"trend_limit"`
	MaxRepos           int `koanf:"max_repos"`
	RepoConcurrency    int `koanf:"repo_concurrency"`
	MaxDelegationDepth int `koanf:"max_delegation_depth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry sample ratio must be in [0,1], got %v", c.Telemetry.SampleRatio)
	}
	for name, prov := range map[string]Provider{
		ProviderHackerNews:  c.Providers.HackerNews,
		ProviderBraveSearch: c.Providers.BraveSearch,
		ProviderGitHub:      c.Providers.GitHub,
	} {
		if prov.Configured() && prov.Timeout <= 0 {
			return fmt.Errorf("provider %s: timeout must be positive", name)
		}
	}
	if c.History.MaxEntries < 1 {
		return errors.New("history max_entries must be at least 1")
	}
	if c.Agents.TrendLimit < 1 {
		return errors.New("agents trend_limit must be at least 1")
	}
	if c.Agents.MaxDelegationDepth < 1 {
		return errors.New("agents max_delegation_depth must be at least 1")
	}
	return nil
}

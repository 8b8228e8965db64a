package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/trendd/internal/config"
	"github.com/fyrsmithlabs/trendd/internal/logging"
)

func repoPayload(fullName string, stars, forks int, language string, updatedAt time.Time) map[string]any {
	return map[string]any{
		"name":       fullName[strings.LastIndex(fullName, "/")+1:],
		"full_name":  fullName,
		"url":        "https://github.com/" + fullName,
		"stars":      stars,
		"forks":      forks,
		"language":   language,
		"topics":     []any{"tooling"},
		"updated_at": updatedAt.UTC().Format(time.RFC3339),
	}
}

func TestRepoAnalystProcess(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("resolves references and correlates", func(t *testing.T) {
		gh := newToolServer(t)
		gh.on("get_repository", func(params map[string]any) map[string]any {
			full := params["owner"].(string) + "/" + params["repo"].(string)
			return repoPayload(full, 8000, 400, "Go", now)
		})

		gw := newAgentGateway(map[string]config.Provider{
			config.ProviderGitHub: providerFor(gh),
		})
		a := NewRepoAnalyst(gw, nil, logging.NewNop(), RepoOptions{})

		res, err := a.Process(ctx, Request{
			References: []string{"uber-go/zap", "spf13/cobra"},
			Context:    "logging and CLIs",
		})
		require.NoError(t, err)
		assert.Equal(t, RouteRepoIntel, res.Route)
		assert.False(t, res.Degraded)

		profiles := res.Data["repositories"].([]RepoProfile)
		require.Len(t, profiles, 2)
		assert.Equal(t, "uber-go/zap", profiles[0].FullName, "handoff order preserved")
		assert.Equal(t, "spf13/cobra", profiles[1].FullName)

		corr := res.Data["correlation"].(Correlation)
		assert.Equal(t, []string{"uber-go/zap", "spf13/cobra"}, corr.RelatedRepositories)
		assert.Contains(t, corr.TrendingTechnologies, "go")
		assert.Greater(t, corr.Score, 0.0)
		assert.Equal(t, "very_positive", corr.Sentiment)
	})

	t.Run("partial failure keeps the resolved subset", func(t *testing.T) {
		gh := newToolServer(t)
		gh.on("get_repository", func(params map[string]any) map[string]any {
			full := params["owner"].(string) + "/" + params["repo"].(string)
			return repoPayload(full, 500, 20, "Rust", now)
		})

		gw := newAgentGateway(map[string]config.Provider{
			config.ProviderGitHub: providerFor(gh),
		})
		a := NewRepoAnalyst(gw, nil, logging.NewNop(), RepoOptions{})

		res, err := a.Process(ctx, Request{
			References: []string{"rust-lang/rust", "not-a-ref"},
		})
		require.NoError(t, err)
		assert.True(t, res.Degraded)

		profiles := res.Data["repositories"].([]RepoProfile)
		require.Len(t, profiles, 1)
		assert.Equal(t, "rust-lang/rust", profiles[0].FullName)
		assert.Equal(t, []string{"not-a-ref"}, res.Data["failed"])
	})

	t.Run("provider down yields empty but valid result", func(t *testing.T) {
		gw := newAgentGateway(map[string]config.Provider{
			config.ProviderGitHub: {URL: "http://127.0.0.1:1", Timeout: time.Second},
		})
		a := NewRepoAnalyst(gw, nil, logging.NewNop(), RepoOptions{})

		res, err := a.Process(ctx, Request{References: []string{"golang/go"}})
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.True(t, res.Degraded)
		assert.Equal(t, 0, res.Data["total_repos"])
		assert.Equal(t, "No repositories could be analyzed successfully.", res.Data["insights"])

		corr := res.Data["correlation"].(Correlation)
		assert.Equal(t, 0.0, corr.Score)
		assert.Equal(t, "neutral", corr.Sentiment)
	})

	t.Run("reference cap", func(t *testing.T) {
		gh := newToolServer(t)
		gh.on("get_repository", func(params map[string]any) map[string]any {
			full := params["owner"].(string) + "/" + params["repo"].(string)
			return repoPayload(full, 10, 1, "Go", now)
		})

		gw := newAgentGateway(map[string]config.Provider{
			config.ProviderGitHub: providerFor(gh),
		})
		a := NewRepoAnalyst(gw, nil, logging.NewNop(), RepoOptions{MaxRepos: 2})

		res, err := a.Process(ctx, Request{
			References: []string{"a/one", "b/two", "c/three", "d/four"},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Data["total_repos"])
		assert.Equal(t, int64(2), gh.callCount())
	})
}

func TestCorrelationScore(t *testing.T) {
	t.Run("all maxed is one", func(t *testing.T) {
		assert.InDelta(t, 1.0, correlationScore(20000, 5000, 1.0, 40), 0.0001)
	})

	t.Run("weights", func(t *testing.T) {
		// Half-strength on every axis.
		got := correlationScore(5000, 500, 0.5, 10)
		assert.InDelta(t, 0.5, got, 0.0001)
	})
}

func TestSentiment(t *testing.T) {
	assert.Equal(t, "very_positive", sentiment(6000, 0.9))
	assert.Equal(t, "positive", sentiment(2000, 0.7))
	assert.Equal(t, "neutral", sentiment(500, 0.5))
	assert.Equal(t, "cautious", sentiment(10, 0.3))
	assert.Equal(t, "negative", sentiment(10, 0.1))
}

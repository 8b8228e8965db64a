package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/trendd/internal/config"
	"github.com/fyrsmithlabs/trendd/internal/logging"
)

func newTestGateway(providers map[string]config.Provider) *Gateway {
	return New(providers, logging.NewNop(), nil)
}

func TestCall(t *testing.T) {
	t.Run("success envelope", func(t *testing.T) {
		var gotPath string
		var gotBody callEnvelope
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			json.NewEncoder(w).Encode(map[string]any{
				"tool":   "get_stories",
				"result": map[string]any{"stories": []any{map[string]any{"title": "hello"}}},
				"status": "success",
			})
		}))
		defer srv.Close()

		g := newTestGateway(map[string]config.Provider{
			config.ProviderHackerNews: {URL: srv.URL, Timeout: 5 * time.Second},
		})
		res := g.Call(context.Background(), Call{
			Provider:  config.ProviderHackerNews,
			Operation: "get_stories",
			Args:      map[string]any{"story_type": "top", "limit": 10},
		})

		require.True(t, res.OK())
		assert.Equal(t, "/tools/get_stories", gotPath)
		assert.Equal(t, "get_stories", gotBody.Tool)
		assert.Equal(t, "top", gotBody.Parameters["story_type"])
		assert.NotEmpty(t, gotBody.Timestamp)
		assert.Contains(t, res.Data, "stories")
		assert.Greater(t, res.Latency, time.Duration(0))
	})

	t.Run("unconfigured provider is unavailable without network traffic", func(t *testing.T) {
		g := newTestGateway(map[string]config.Provider{})
		res := g.Call(context.Background(), Call{Provider: "github", Operation: "get_repository"})
		assert.Equal(t, StatusProviderUnavailable, res.Status)
		assert.False(t, res.OK())
		assert.Contains(t, res.Err, "github")
	})

	t.Run("error envelope is provider_error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"tool":   "get_stories",
				"status": "error",
				"error":  "upstream rate limited",
			})
		}))
		defer srv.Close()

		g := newTestGateway(map[string]config.Provider{
			config.ProviderHackerNews: {URL: srv.URL, Timeout: 5 * time.Second},
		})
		res := g.Call(context.Background(), Call{Provider: config.ProviderHackerNews, Operation: "get_stories"})
		assert.Equal(t, StatusProviderError, res.Status)
		assert.Equal(t, "upstream rate limited", res.Err)
	})

	t.Run("http 500 is provider_error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		g := newTestGateway(map[string]config.Provider{
			config.ProviderGitHub: {URL: srv.URL, Timeout: 5 * time.Second},
		})
		res := g.Call(context.Background(), Call{Provider: config.ProviderGitHub, Operation: "get_repository"})
		assert.Equal(t, StatusProviderError, res.Status)
		assert.Contains(t, res.Err, "500")
	})

	t.Run("slow provider is timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		g := newTestGateway(map[string]config.Provider{
			config.ProviderBraveSearch: {URL: srv.URL, Timeout: 50 * time.Millisecond},
		})
		res := g.Call(context.Background(), Call{Provider: config.ProviderBraveSearch, Operation: "brave_web_search"})
		assert.Equal(t, StatusTimeout, res.Status)
	})

	t.Run("unreachable provider is connection_failed", func(t *testing.T) {
		g := newTestGateway(map[string]config.Provider{
			config.ProviderGitHub: {URL: "http://127.0.0.1:1", Timeout: time.Second},
		})
		res := g.Call(context.Background(), Call{Provider: config.ProviderGitHub, Operation: "get_repository"})
		assert.Equal(t, StatusConnectionFailed, res.Status)
	})

	t.Run("call timeout overrides provider timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		g := newTestGateway(map[string]config.Provider{
			config.ProviderHackerNews: {URL: srv.URL, Timeout: 30 * time.Second},
		})
		start := time.Now()
		res := g.Call(context.Background(), Call{
			Provider:  config.ProviderHackerNews,
			Operation: "get_stories",
			Timeout:   50 * time.Millisecond,
		})
		assert.Equal(t, StatusTimeout, res.Status)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestHealth(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	g := newTestGateway(map[string]config.Provider{
		config.ProviderHackerNews: {URL: healthy.URL, Timeout: time.Second},
		config.ProviderGitHub:     {URL: "http://127.0.0.1:1", Timeout: time.Second},
	})

	status := g.Health(context.Background())
	assert.True(t, status[config.ProviderHackerNews])
	assert.False(t, status[config.ProviderGitHub])
}

func TestListTools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tools", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"tools": []string{"get_stories", "search_stories"}})
	}))
	defer srv.Close()

	g := newTestGateway(map[string]config.Provider{
		config.ProviderHackerNews: {URL: srv.URL, Timeout: time.Second},
	})

	tools, err := g.ListTools(context.Background(), config.ProviderHackerNews)
	require.NoError(t, err)
	assert.Equal(t, []string{"get_stories", "search_stories"}, tools)

	_, err = g.ListTools(context.Background(), "nope")
	assert.Error(t, err)
}

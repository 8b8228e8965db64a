package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fyrsmithlabs/trendd/internal/config"
	"github.com/fyrsmithlabs/trendd/internal/gateway"
	"github.com/fyrsmithlabs/trendd/internal/logging"
)

// fakeCompleter scripts completion responses for tests.
type fakeCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// toolServer is an httptest-backed tool provider stub. Handlers are keyed
// by operation name; unhandled operations return an error envelope.
type toolServer struct {
	srv   *httptest.Server
	calls atomic.Int64

	handlers map[string]func(params map[string]any) map[string]any
}

func newToolServer(t *testing.T) *toolServer {
	t.Helper()
	ts := &toolServer{handlers: map[string]func(map[string]any) map[string]any{}}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls.Add(1)

		var body struct {
			Tool       string         `json:"tool"`
			Parameters map[string]any `json:"parameters"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		handler, ok := ts.handlers[body.Tool]
		if !ok {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"tool": body.Tool, "status": "error", "error": "unknown tool",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tool":   body.Tool,
			"result": handler(body.Parameters),
			"status": "success",
		})
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *toolServer) on(operation string, handler func(params map[string]any) map[string]any) {
	ts.handlers[operation] = handler
}

func (ts *toolServer) callCount() int64 { return ts.calls.Load() }

func newAgentGateway(providers map[string]config.Provider) *gateway.Gateway {
	return gateway.New(providers, logging.NewNop(), nil)
}

func providerFor(ts *toolServer) config.Provider {
	return config.Provider{URL: ts.srv.URL, Timeout: 5 * time.Second}
}

func hnStory(id int, title string, score int, age time.Duration) map[string]any {
	return map[string]any{
		"id":    id,
		"title": title,
		"url":   "https://example.com/" + title,
		"score": score,
		"by":    "tester",
		"time":  time.Now().Add(-age).Unix(),
	}
}

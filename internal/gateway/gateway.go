// Package gateway is the single egress point for external tool providers.
//
// Every tool call in trendd goes through the Gateway: agents never talk to
// provider HTTP servers directly. The Gateway normalizes transport failures
// into typed statuses instead of errors, so a dead provider degrades the
// answer rather than aborting the request.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/trendd/internal/config"
	"github.com/fyrsmithlabs/trendd/internal/logging"
)

// Status classifies the outcome of a tool call.
type Status string

const (
	// StatusOK means the provider answered with a success envelope.
	StatusOK Status = "ok"
	// StatusProviderUnavailable means the provider is not configured.
	StatusProviderUnavailable Status = "provider_unavailable"
	// StatusTimeout means the call deadline expired before a response.
	StatusTimeout Status = "timeout"
	// StatusConnectionFailed means the provider could not be reached.
	StatusConnectionFailed Status = "connection_failed"
	// StatusProviderError means the provider answered but reported failure.
	StatusProviderError Status = "provider_error"
)

// Call describes one tool invocation.
type Call struct {
	Provider  string
	Operation string
	Args      map[string]any
	// Timeout overrides the provider's configured timeout when positive.
	Timeout time.Duration
}

// Result is the normalized outcome of a tool invocation. Transport and
// provider failures are carried in Status and Err, never as Go errors.
type Result struct {
	Provider  string
	Operation string
	Status    Status
	Data      map[string]any
	Err       string
	Latency   time.Duration
}

// OK reports whether the call succeeded.
func (r *Result) OK() bool {
	return r != nil && r.Status == StatusOK
}

// callEnvelope is the request body sent to provider tool endpoints.
type callEnvelope struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
	Timestamp  string         `json:"timestamp"`
}

// responseEnvelope is the body returned by provider tool endpoints.
type responseEnvelope struct {
	Tool      string         `json:"tool"`
	Result    map[string]any `json:"result"`
	Status    string         `json:"status"`
	Error     string         `json:"error,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

const maxResponseSize = 8 * 1024 * 1024

// Gateway routes tool calls to their configured providers.
type Gateway struct {
	providers map[string]config.Provider
	client    *http.Client
	logger    *logging.Logger
	tracer    oteltrace.Tracer
}

// New creates a Gateway over the configured provider set. Providers absent
// from the map yield StatusProviderUnavailable on every call.
func New(providers map[string]config.Provider, logger *logging.Logger, tracer oteltrace.Tracer) *Gateway {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Gateway{
		providers: providers,
		client:    &http.Client{},
		logger:    logger.Named("gateway"),
		tracer:    tracer,
	}
}

// Providers returns the names of configured providers.
func (g *Gateway) Providers() []string {
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	return names
}

// Configured reports whether a provider is configured.
func (g *Gateway) Configured(provider string) bool {
	_, ok := g.providers[provider]
	return ok
}

// Call invokes one tool operation on a provider.
//
// Call never returns nil and never returns a Go error for transient
// failures; callers branch on Result.Status. The per-call timeout is the
// provider's configured timeout unless the Call overrides it, and is always
// bounded by the caller's context.
func (g *Gateway) Call(ctx context.Context, call Call) *Result {
	res := &Result{Provider: call.Provider, Operation: call.Operation}

	prov, ok := g.providers[call.Provider]
	if !ok {
		res.Status = StatusProviderUnavailable
		res.Err = fmt.Sprintf("provider %q is not configured", call.Provider)
		g.observe(ctx, res)
		return res
	}

	timeout := prov.Timeout
	if call.Timeout > 0 {
		timeout = call.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if g.tracer != nil {
		var span oteltrace.Span
		ctx, span = g.tracer.Start(ctx, "gateway.call", oteltrace.WithAttributes(
			attribute.String("tool.provider", call.Provider),
			attribute.String("tool.operation", call.Operation),
		))
		defer span.End()
	}

	start := time.Now()
	g.invoke(ctx, prov, call, res)
	res.Latency = time.Since(start)

	g.observe(ctx, res)
	return res
}

// invoke performs the HTTP round trip and fills in the result.
func (g *Gateway) invoke(ctx context.Context, prov config.Provider, call Call, res *Result) {
	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	body, err := json.Marshal(callEnvelope{
		Tool:       call.Operation,
		Parameters: args,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		res.Status = StatusProviderError
		res.Err = fmt.Sprintf("encoding request: %v", err)
		return
	}

	url := prov.URL + "/tools/" + call.Operation
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		res.Status = StatusConnectionFailed
		res.Err = err.Error()
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		res.Status = classifyTransportError(err)
		res.Err = err.Error()
		return
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		res.Status = classifyTransportError(err)
		res.Err = err.Error()
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res.Status = StatusProviderError
		res.Err = fmt.Sprintf("provider returned HTTP %d", resp.StatusCode)
		return
	}

	var envelope responseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		res.Status = StatusProviderError
		res.Err = fmt.Sprintf("decoding response: %v", err)
		return
	}

	if envelope.Status != "" && envelope.Status != "success" {
		res.Status = StatusProviderError
		res.Err = envelope.Error
		if res.Err == "" {
			res.Err = fmt.Sprintf("provider reported status %q", envelope.Status)
		}
		return
	}

	res.Status = StatusOK
	res.Data = envelope.Result
}

// classifyTransportError maps a client error to a call status.
func classifyTransportError(err error) Status {
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return StatusTimeout
	}
	return StatusConnectionFailed
}

// observe records the call in logs and metrics.
func (g *Gateway) observe(ctx context.Context, res *Result) {
	callsTotal.WithLabelValues(res.Provider, res.Operation, string(res.Status)).Inc()
	callDuration.WithLabelValues(res.Provider, res.Operation).Observe(res.Latency.Seconds())

	fields := []zap.Field{
		zap.String("provider", res.Provider),
		zap.String("operation", res.Operation),
		zap.String("status", string(res.Status)),
		zap.Duration("latency", res.Latency),
	}
	if res.Status == StatusOK {
		g.logger.Debug(ctx, "tool call completed", fields...)
		return
	}
	g.logger.Warn(ctx, "tool call degraded", append(fields, zap.String("error", res.Err))...)
}

// Health probes every configured provider's health endpoint and reports
// reachability by provider name.
func (g *Gateway) Health(ctx context.Context) map[string]bool {
	out := make(map[string]bool, len(g.providers))
	for name, prov := range g.providers {
		out[name] = g.probe(ctx, prov)
	}
	return out
}

func (g *Gateway) probe(ctx context.Context, prov config.Provider) bool {
	ctx, cancel := context.WithTimeout(ctx, prov.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, prov.URL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

// ListTools asks a provider for its advertised tool operations.
func (g *Gateway) ListTools(ctx context.Context, provider string) ([]string, error) {
	prov, ok := g.providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured", provider)
	}

	ctx, cancel := context.WithTimeout(ctx, prov.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, prov.URL+"/tools", nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing tools for %s: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("provider %s returned HTTP %d", provider, resp.StatusCode)
	}

	var listing struct {
		Tools []string `json:"tools"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decoding tool listing: %w", err)
	}
	return listing.Tools, nil
}

// Package orchestrator owns the request state machine.
//
// One incoming request runs Classify, then either answers directly or
// delegates over the bus, optionally enriches the result with a secondary
// delegation, and finalizes with a history record. Every optional step
// degrades instead of failing; the only hard failure is a delegation to an
// unregistered recipient, which leaves no history behind.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/trendd/internal/agent"
	"github.com/fyrsmithlabs/trendd/internal/bus"
	"github.com/fyrsmithlabs/trendd/internal/history"
	"github.com/fyrsmithlabs/trendd/internal/logging"
	"github.com/fyrsmithlabs/trendd/internal/memory"
)

const senderName = "orchestrator"

// Submission is one inbound request. Nil inclusion flags mean enabled.
type Submission struct {
	Query        string
	Limit        int
	IncludeHN    *bool
	IncludeBrave *bool
}

// Response is the assembled answer for one submission.
type Response struct {
	Route         string         `json:"route"`
	Data          map[string]any `json:"data"`
	Degraded      bool           `json:"degraded"`
	CorrelationID string         `json:"correlation_id"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Orchestrator drives requests through classification, delegation, and
// finalization.
type Orchestrator struct {
	classifier agent.Agent
	bus        *bus.Bus
	history    *history.Store
	memory     memory.Store
	logger     *logging.Logger
	tracer     oteltrace.Tracer
}

// New creates an orchestrator. The classifier must also be registered on
// the bus so external callers can reach it directly.
func New(classifier agent.Agent, b *bus.Bus, hist *history.Store, mem memory.Store, logger *logging.Logger, tracer oteltrace.Tracer) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		classifier: classifier,
		bus:        b,
		history:    hist,
		memory:     mem,
		logger:     logger.Named("orchestrator"),
		tracer:     tracer,
	}
}

// Handle runs one submission to completion.
//
// The returned error is always a configuration failure (unknown recipient
// or depth overflow on the root delegation); transient tool failures
// surface as a degraded Response instead.
func (o *Orchestrator) Handle(ctx context.Context, sub Submission) (*Response, error) {
	correlationID := logging.CorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = uuid.NewString()
		ctx = logging.WithCorrelationID(ctx, correlationID)
	}

	if o.tracer != nil {
		var span oteltrace.Span
		ctx, span = o.tracer.Start(ctx, "orchestrator.handle", oteltrace.WithAttributes(
			attribute.String("correlation_id", correlationID),
		))
		defer span.End()
	}

	classified, err := o.classifier.Process(ctx, o.classifierRequest(sub))
	if err != nil {
		return nil, fmt.Errorf("classification: %w", err)
	}

	var final *agent.Result
	if classified.Handoff == nil {
		final = classified
	} else {
		final, err = o.delegate(ctx, sub, classified.Handoff)
		if err != nil {
			return nil, err
		}
	}

	resp := &Response{
		Route:         final.Route,
		Data:          final.Data,
		Degraded:      final.Degraded,
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
	}

	o.finalize(ctx, sub.Query, resp)
	return resp, nil
}

func (o *Orchestrator) classifierRequest(sub Submission) agent.Request {
	req := agent.Request{
		Query:        sub.Query,
		Limit:        sub.Limit,
		IncludeHN:    true,
		IncludeBrave: true,
	}
	if sub.IncludeHN != nil {
		req.IncludeHN = *sub.IncludeHN
	}
	if sub.IncludeBrave != nil {
		req.IncludeBrave = *sub.IncludeBrave
	}
	return req
}

// delegate runs the root delegation and, when the result asks for it, the
// secondary enrichment delegation under the same correlation id.
func (o *Orchestrator) delegate(ctx context.Context, sub Submission, handoff *agent.Handoff) (*agent.Result, error) {
	payload := bus.TaskPayload{
		Query:        sub.Query,
		Limit:        sub.Limit,
		IncludeHN:    sub.IncludeHN,
		IncludeBrave: sub.IncludeBrave,
		Context:      handoff.Context,
	}

	result, err := o.bus.Send(ctx, senderName, handoff.Recipient, handoff.TaskKind, payload)
	if err != nil {
		return nil, fmt.Errorf("delegation to %s: %w", handoff.Recipient, err)
	}

	if next := result.Handoff; next != nil {
		o.enrich(ctx, result, next)
	}
	return result, nil
}

// enrich merges a secondary delegation's result into the primary one. Any
// failure here degrades the result and omits the enrichment; the primary
// content is never lost.
func (o *Orchestrator) enrich(ctx context.Context, result *agent.Result, handoff *agent.Handoff) {
	if _, ok := o.bus.Recipient(handoff.Recipient); !ok {
		o.logger.Warn(ctx, "enrichment specialist not registered, skipping",
			zap.String("recipient", handoff.Recipient))
		result.Degraded = true
		return
	}

	enrichment, err := o.bus.Send(ctx, senderName, handoff.Recipient, handoff.TaskKind, bus.TaskPayload{
		Repositories: handoff.References,
		Context:      handoff.Context,
	})
	if err != nil {
		o.logger.Warn(ctx, "enrichment delegation failed, omitting",
			zap.String("recipient", handoff.Recipient),
			zap.Error(err))
		result.Degraded = true
		return
	}

	result.Data["repo_intel"] = enrichment.Data
	result.Degraded = result.Degraded || enrichment.Degraded
}

// finalize appends the history record and stores the interaction in
// memory. Both are best-effort side effects of an already-assembled
// answer.
func (o *Orchestrator) finalize(ctx context.Context, query string, resp *Response) {
	if o.history != nil {
		entry := o.history.Append(resp.Route, query, resp.Data)
		o.logger.Info(ctx, "request finalized",
			zap.Uint64("history_id", entry.ID),
			zap.String("route", resp.Route),
			zap.Bool("degraded", resp.Degraded),
		)
	}

	if o.memory == nil {
		return
	}
	summary := responseText(resp)
	if summary == "" {
		return
	}
	err := o.memory.Add(ctx, memory.Interaction{
		ID:        uuid.NewString(),
		Query:     query,
		Response:  summary,
		Route:     resp.Route,
		Timestamp: resp.Timestamp,
	})
	if err != nil {
		o.logger.Warn(ctx, "memory write failed", zap.Error(err))
	}
}

// responseText picks the rememberable text out of a response.
func responseText(resp *Response) string {
	if s, ok := resp.Data["response"].(string); ok {
		return s
	}
	if s, ok := resp.Data["summary"].(string); ok {
		return s
	}
	return ""
}

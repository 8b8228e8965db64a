// Package bus is the delegation layer between agents.
//
// A send is synchronous: the caller suspends until the recipient's Process
// returns. Every message carries the correlation id of its root request,
// so an observer can reconstruct a whole delegation chain from logs. The
// registry is written during startup and read-only while serving, which is
// why lookups take no lock.
package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/trendd/internal/agent"
	"github.com/fyrsmithlabs/trendd/internal/logging"
)

var (
	// ErrRecipientUnknown means the named agent was never registered.
	// This is a configuration error and must not be retried.
	ErrRecipientUnknown = errors.New("recipient agent is not registered")

	// ErrDepthExceeded means a delegation chain grew past the configured
	// depth limit.
	ErrDepthExceeded = errors.New("delegation depth limit exceeded")
)

// DefaultMaxDepth bounds delegation chains when no limit is configured.
const DefaultMaxDepth = 4

// TaskPayload is the structured payload of a delegation message. Inclusion
// flags are pointers so that an absent flag means "enabled", matching the
// request defaults at the HTTP boundary.
type TaskPayload struct {
	Query        string   `json:"query"`
	Limit        int      `json:"limit,omitempty"`
	IncludeHN    *bool    `json:"include_hn,omitempty"`
	IncludeBrave *bool    `json:"include_brave,omitempty"`
	Repositories []string `json:"repositories,omitempty"`
	Context      string   `json:"context,omitempty"`
}

// AgentRequest converts the payload into an agent request.
func (p TaskPayload) AgentRequest() agent.Request {
	req := agent.Request{
		Query:        p.Query,
		Limit:        p.Limit,
		IncludeHN:    true,
		IncludeBrave: true,
		References:   p.Repositories,
		Context:      p.Context,
	}
	if p.IncludeHN != nil {
		req.IncludeHN = *p.IncludeHN
	}
	if p.IncludeBrave != nil {
		req.IncludeBrave = *p.IncludeBrave
	}
	return req
}

// Message is one delegation exchange as it appears on the bus.
type Message struct {
	ID            string      `json:"id"`
	CorrelationID string      `json:"correlation_id"`
	Sender        string      `json:"sender"`
	Recipient     string      `json:"recipient"`
	Type          string      `json:"type"`
	Payload       TaskPayload `json:"payload"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Bus routes delegation messages to registered agents.
type Bus struct {
	agents   map[string]agent.Agent
	maxDepth int
	logger   *logging.Logger
}

// New creates an empty bus.
func New(logger *logging.Logger, maxDepth int) *Bus {
	if logger == nil {
		logger = logging.NewNop()
	}
	if maxDepth < 1 {
		maxDepth = DefaultMaxDepth
	}
	return &Bus{
		agents:   make(map[string]agent.Agent),
		maxDepth: maxDepth,
		logger:   logger.Named("bus"),
	}
}

// Register adds an agent under its name. Must be called before the bus
// starts serving sends; the registry is not safe for concurrent mutation.
func (b *Bus) Register(a agent.Agent) {
	b.agents[a.Name()] = a
}

// Recipient returns the registered agent with the given name.
func (b *Bus) Recipient(name string) (agent.Agent, bool) {
	a, ok := b.agents[name]
	return a, ok
}

// Agents returns the registered agent names.
func (b *Bus) Agents() []string {
	names := make([]string, 0, len(b.agents))
	for name := range b.agents {
		names = append(names, name)
	}
	return names
}

// Send delivers one delegation message and waits for the recipient's
// result.
//
// The correlation id is taken from the context; a send with no correlation
// id is treated as a root delegation and mints one. Each hop increments
// the chain depth carried in the context; exceeding the limit fails with
// ErrDepthExceeded. The only other error is ErrRecipientUnknown.
func (b *Bus) Send(ctx context.Context, sender, recipient, messageType string, payload TaskPayload) (*agent.Result, error) {
	target, ok := b.agents[recipient]
	if !ok {
		messagesTotal.WithLabelValues(recipient, "recipient_unknown").Inc()
		return nil, fmt.Errorf("%w: %q", ErrRecipientUnknown, recipient)
	}

	depth := DepthFromContext(ctx) + 1
	if depth > b.maxDepth {
		messagesTotal.WithLabelValues(recipient, "depth_exceeded").Inc()
		return nil, fmt.Errorf("%w: depth %d exceeds limit %d", ErrDepthExceeded, depth, b.maxDepth)
	}
	ctx = withDepth(ctx, depth)

	correlationID := logging.CorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = uuid.NewString()
		ctx = logging.WithCorrelationID(ctx, correlationID)
	}

	msg := Message{
		ID:            uuid.NewString(),
		CorrelationID: correlationID,
		Sender:        sender,
		Recipient:     recipient,
		Type:          messageType,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
	}

	b.logger.Info(ctx, "delegation message sent",
		zap.String("message_id", msg.ID),
		zap.String("sender", sender),
		zap.String("recipient", recipient),
		zap.String("type", messageType),
		zap.Int("depth", depth),
	)

	start := time.Now()
	result, err := target.Process(ctx, payload.AgentRequest())
	if err != nil {
		messagesTotal.WithLabelValues(recipient, "error").Inc()
		return nil, fmt.Errorf("agent %s: %w", recipient, err)
	}

	messagesTotal.WithLabelValues(recipient, "ok").Inc()
	b.logger.Info(ctx, "delegation message answered",
		zap.String("message_id", msg.ID),
		zap.String("recipient", recipient),
		zap.String("route", result.Route),
		zap.Bool("degraded", result.Degraded),
		zap.Duration("latency", time.Since(start)),
	)
	return result, nil
}

type depthKey struct{}

func withDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, depthKey{}, depth)
}

// DepthFromContext returns the delegation depth of the current chain, zero
// at the root.
func DepthFromContext(ctx context.Context) int {
	if d, ok := ctx.Value(depthKey{}).(int); ok {
		return d
	}
	return 0
}

// Package agent implements the processing units requests are routed to.
//
// Every agent satisfies the same contract: take a Request, return a
// Result. The variants differ only in which tools they call and how they
// shape their output. An agent never aborts on a tool failure; it degrades
// to whatever it could still produce and tags the result.
package agent

import (
	"context"
	"time"
)

// Agent names as registered on the delegation bus.
const (
	NameClassifier    = "classifier"
	NameTrendAnalyzer = "trend_analyzer"
	NameRepoAnalyst   = "repo_analyst"
)

// Route tags carried on results.
const (
	RouteChat      = "chat"
	RouteTrends    = "trends"
	RouteRepoIntel = "repo_intel"
)

// Task kinds carried on delegation handoffs.
const (
	TaskTrendAnalysis = "trend_analysis"
	TaskRepoAnalysis  = "repo_analysis"
)

// Request is one unit of work for an agent. Immutable once created.
type Request struct {
	Query        string
	Limit        int
	IncludeHN    bool
	IncludeBrave bool

	// References and Context carry handoff payloads for the repo analyst.
	References []string
	Context    string
}

// Handoff asks the orchestrator to delegate a follow-up task.
type Handoff struct {
	Recipient  string
	TaskKind   string
	References []string
	Context    string
}

// Result is the outcome of one agent invocation. Created by exactly one
// agent, never mutated afterward.
type Result struct {
	Route     string
	Data      map[string]any
	Degraded  bool
	Handoff   *Handoff
	CreatedAt time.Time
}

// Agent is the contract every variant implements.
type Agent interface {
	// Name is the agent's identity on the delegation bus.
	Name() string
	// Route is the tag the agent's results carry.
	Route() string
	// Process handles one request. It returns an error only for invariant
	// violations; tool failures surface as a degraded Result instead.
	Process(ctx context.Context, req Request) (*Result, error)
}

func newResult(route string) *Result {
	return &Result{
		Route:     route,
		Data:      map[string]any{},
		CreatedAt: time.Now().UTC(),
	}
}

package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/trendd/internal/completion"
	"github.com/fyrsmithlabs/trendd/internal/logging"
	"github.com/fyrsmithlabs/trendd/internal/memory"
)

// techCues are substrings that mark a query as tech-intent regardless of
// what the completion backend says. They keep obvious trend queries out of
// the chat path when the backend is unavailable or wrong.
var techCues = []string{
	"trend",
	"trends",
	"hn",
	"hacker news",
	"github",
	"repo",
	"repositories",
	"ai",
	"gpt",
	"claude",
	"anthropic",
	"openai",
	"framework",
	"library",
	"model",
	"tech",
	"developer",
	"programming",
}

var verdictPattern = regexp.MustCompile(`\b(TECH|GENERAL)\b`)

const recallLimit = 5

// Classifier decides whether a query gets a direct chat answer or a
// delegation to the trend analyzer. Ambiguity always resolves to a direct
// answer; a query is never dropped.
type Classifier struct {
	completer completion.Client
	memory    memory.Store
	logger    *logging.Logger
}

// NewClassifier creates the classifier agent. The completion client may be
// nil; classification then runs on cues alone and chat answers degrade to
// a static fallback.
func NewClassifier(completer completion.Client, mem memory.Store, logger *logging.Logger) *Classifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Classifier{
		completer: completer,
		memory:    mem,
		logger:    logger.Named("classifier"),
	}
}

func (c *Classifier) Name() string { return NameClassifier }

func (c *Classifier) Route() string { return RouteChat }

// Process classifies the query. Tech queries yield a handoff to the trend
// analyzer; everything else yields a direct chat answer.
func (c *Classifier) Process(ctx context.Context, req Request) (*Result, error) {
	res := newResult(RouteChat)

	query := strings.TrimSpace(req.Query)
	if query == "" {
		res.Data["response"] = "Please provide a question."
		return res, nil
	}

	if c.isTech(ctx, query) {
		c.logger.Info(ctx, "query classified as tech, handing off",
			zap.String("recipient", NameTrendAnalyzer))
		res.Handoff = &Handoff{
			Recipient: NameTrendAnalyzer,
			TaskKind:  TaskTrendAnalysis,
			Context:   query,
		}
		return res, nil
	}

	c.answer(ctx, query, res)
	return res, nil
}

// isTech reports whether the query should be delegated. Cue matching runs
// first so the common cases need no completion round trip; the completion
// verdict decides the rest, and anything ambiguous stays general.
func (c *Classifier) isTech(ctx context.Context, query string) bool {
	lower := strings.ToLower(query)
	for _, cue := range techCues {
		if containsCue(lower, cue) {
			return true
		}
	}

	if c.completer == nil {
		return false
	}

	prompt := fmt.Sprintf(
		"Classify the following message as exactly one of: TECH or GENERAL.\n"+
			"- TECH: programming, frameworks, developer tools, GitHub, software, technology trends.\n"+
			"- GENERAL: geography, history, cooking, casual chit-chat, everyday facts.\n\n"+
			"Message: %q\n\nRespond with only one token: TECH or GENERAL.", query)

	verdict, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		c.logger.Warn(ctx, "classification completion failed, defaulting to general",
			zap.Error(err))
		return false
	}

	m := verdictPattern.FindString(strings.ToUpper(verdict))
	return m == "TECH"
}

// containsCue matches a cue on word boundaries so that short cues like
// "ai" and "hn" do not fire inside unrelated words.
func containsCue(text, cue string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], cue)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(cue)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// answer fills res with a direct chat answer, enriched with remembered
// interactions when available.
func (c *Classifier) answer(ctx context.Context, query string, res *Result) {
	if c.completer == nil {
		res.Data["response"] = "I can look up technology trends and repositories for you. " +
			"General questions need a completion backend, which is not configured."
		res.Degraded = true
		return
	}

	prompt := fmt.Sprintf("Provide a helpful, accurate answer to: %s\nBe concise but informative.", query)

	if c.memory != nil {
		recalls, err := c.memory.Search(ctx, query, recallLimit)
		if err != nil {
			c.logger.Warn(ctx, "memory recall failed", zap.Error(err))
		} else if len(recalls) > 0 {
			var b strings.Builder
			b.WriteString("\n\nRelevant past interactions (for continuity):\n")
			for _, r := range recalls {
				fmt.Fprintf(&b, "- Q: %s\n  A: %s\n", r.Query, r.Response)
			}
			prompt += b.String()
		}
	}

	answer, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		c.logger.Warn(ctx, "chat completion failed", zap.Error(err))
		res.Data["response"] = "I could not generate an answer right now. Please try again."
		res.Degraded = true
		return
	}
	res.Data["response"] = answer
}

package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/trendd/internal/completion"
	"github.com/fyrsmithlabs/trendd/internal/config"
	"github.com/fyrsmithlabs/trendd/internal/gateway"
	"github.com/fyrsmithlabs/trendd/internal/logging"
	"github.com/fyrsmithlabs/trendd/internal/refdetect"
)

// TrendItem is one normalized item from a trend source.
type TrendItem struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Score       int       `json:"score"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
}

// TrendOptions are the tunables of the trend analyzer.
type TrendOptions struct {
	// DefaultLimit is the per-source item cap when the request has none.
	DefaultLimit int
	// HNFetchLimit is how many stories to request from Hacker News before
	// relevance filtering.
	HNFetchLimit int
	// BraveFetchLimit is how many web results to request.
	BraveFetchLimit int
}

func (o *TrendOptions) applyDefaults() {
	if o.DefaultLimit == 0 {
		o.DefaultLimit = 10
	}
	if o.HNFetchLimit == 0 {
		o.HNFetchLimit = 50
	}
	if o.BraveFetchLimit == 0 {
		o.BraveFetchLimit = 20
	}
}

// maxStoryAge filters out stale items from trend sources.
const maxStoryAge = 60 * 24 * time.Hour

// TrendAnalyzer fans out to the configured trend sources, combines what
// came back, and summarizes. One healthy source is enough for a full
// result; zero healthy sources still yields a summary-only fallback.
type TrendAnalyzer struct {
	gw        *gateway.Gateway
	completer completion.Client
	logger    *logging.Logger
	opts      TrendOptions
}

// NewTrendAnalyzer creates the trend analysis agent.
func NewTrendAnalyzer(gw *gateway.Gateway, completer completion.Client, logger *logging.Logger, opts TrendOptions) *TrendAnalyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	opts.applyDefaults()
	return &TrendAnalyzer{
		gw:        gw,
		completer: completer,
		logger:    logger.Named("trend_analyzer"),
		opts:      opts,
	}
}

func (a *TrendAnalyzer) Name() string { return NameTrendAnalyzer }

func (a *TrendAnalyzer) Route() string { return RouteTrends }

// Process gathers trends for the query.
//
// Each enabled source runs in its own goroutine under its own deadline
// (enforced by the gateway). A failed source is recorded and skipped; the
// request never fails because a source did.
func (a *TrendAnalyzer) Process(ctx context.Context, req Request) (*Result, error) {
	res := newResult(RouteTrends)

	limit := req.Limit
	if limit <= 0 {
		limit = a.opts.DefaultLimit
	}

	var hnItems, braveItems []TrendItem
	var sourcesUsed, sourcesFailed []string

	g, gctx := errgroup.WithContext(ctx)

	wantHN := req.IncludeHN && a.gw.Configured(config.ProviderHackerNews)
	wantBrave := req.IncludeBrave && a.gw.Configured(config.ProviderBraveSearch)

	if wantHN {
		g.Go(func() error {
			hnItems = a.fetchHackerNews(gctx, req.Query, limit)
			return nil
		})
	}
	if wantBrave {
		g.Go(func() error {
			braveItems = a.fetchBraveSearch(gctx, req.Query, limit)
			return nil
		})
	}
	_ = g.Wait()

	if wantHN {
		if len(hnItems) > 0 {
			sourcesUsed = append(sourcesUsed, config.ProviderHackerNews)
		} else {
			sourcesFailed = append(sourcesFailed, config.ProviderHackerNews)
		}
	}
	if wantBrave {
		if len(braveItems) > 0 {
			sourcesUsed = append(sourcesUsed, config.ProviderBraveSearch)
		} else {
			sourcesFailed = append(sourcesFailed, config.ProviderBraveSearch)
		}
	}

	trends := combineTrends(hnItems, braveItems)

	summary, summaryDegraded := a.summarize(ctx, req.Query, trends)

	refs := a.detectReferences(req.Query, summary, trends)
	if len(refs) > 0 {
		res.Handoff = &Handoff{
			Recipient:  NameRepoAnalyst,
			TaskKind:   TaskRepoAnalysis,
			References: refs,
			Context:    req.Query,
		}
	}

	res.Degraded = len(sourcesFailed) > 0 || summaryDegraded
	res.Data["query"] = req.Query
	res.Data["trends"] = trends
	res.Data["total_items"] = len(trends)
	res.Data["sources"] = sourcesUsed
	res.Data["sources_failed"] = sourcesFailed
	res.Data["summary"] = summary
	res.Data["detected_repositories"] = refs
	res.Data["confidence"] = confidence(trends, sourcesUsed)

	a.logger.Info(ctx, "trend analysis completed",
		zap.Int("items", len(trends)),
		zap.Strings("sources", sourcesUsed),
		zap.Strings("sources_failed", sourcesFailed),
		zap.Bool("degraded", res.Degraded),
	)
	return res, nil
}

// fetchHackerNews searches stories for the query, falling back to top
// stories when the search comes up short. Returns nil on failure.
func (a *TrendAnalyzer) fetchHackerNews(ctx context.Context, query string, limit int) []TrendItem {
	fetchLimit := limit * 3
	if fetchLimit > a.opts.HNFetchLimit {
		fetchLimit = a.opts.HNFetchLimit
	}

	call := a.gw.Call(ctx, gateway.Call{
		Provider:  config.ProviderHackerNews,
		Operation: "search_stories",
		Args:      map[string]any{"query": query, "limit": fetchLimit},
	})
	if !call.OK() {
		return nil
	}

	items := make([]TrendItem, 0, limit)
	for _, story := range payloadObjects(call.Data, "stories") {
		if item, ok := a.convertStory(story); ok {
			items = append(items, item)
			if len(items) >= limit {
				break
			}
		}
	}

	// Fill from top stories when the search was too narrow.
	if len(items) < limit {
		top := a.gw.Call(ctx, gateway.Call{
			Provider:  config.ProviderHackerNews,
			Operation: "get_stories",
			Args:      map[string]any{"story_type": "topstories", "limit": a.opts.HNFetchLimit},
		})
		if top.OK() {
			seen := make(map[string]bool, len(items))
			for _, item := range items {
				seen[item.URL] = true
			}
			for _, story := range payloadObjects(top.Data, "stories") {
				item, ok := a.convertStory(story)
				if !ok || seen[item.URL] {
					continue
				}
				items = append(items, item)
				if len(items) >= limit {
					break
				}
			}
		}
	}
	return items
}

// convertStory turns a raw story payload into a TrendItem. Stale stories
// and stories without timestamps are dropped.
func (a *TrendAnalyzer) convertStory(story map[string]any) (TrendItem, bool) {
	unix := payloadNumber(story, "time")
	if unix == 0 {
		return TrendItem{}, false
	}
	published := time.Unix(int64(unix), 0).UTC()
	if time.Since(published) > maxStoryAge {
		return TrendItem{}, false
	}

	title := payloadString(story, "title")
	if title == "" {
		title = "Untitled Story"
	}

	url := payloadString(story, "url")
	if url == "" {
		if id := payloadNumber(story, "id"); id > 0 {
			url = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", int64(id))
		}
	}

	points := int(payloadNumber(story, "score"))
	return TrendItem{
		Title:       title,
		URL:         url,
		Source:      config.ProviderHackerNews,
		Score:       storyScore(points, published, title),
		Timestamp:   published,
		Description: "HN Story: " + title,
	}, true
}

// storyScore weights points, title relevance, and recency into one 1-100
// ranking value. Weights: 0.5 points, 0.4 relevance, 0.1 recency.
func storyScore(points int, published time.Time, title string) int {
	pointsScore := float64(points) / 5
	if pointsScore > 100 {
		pointsScore = 100
	}

	meaningful := 0
	for _, word := range strings.Fields(title) {
		if len(word) > 3 {
			meaningful++
		}
	}
	relevanceScore := float64(meaningful * 10)
	if relevanceScore > 100 {
		relevanceScore = 100
	}

	days := time.Since(published).Hours() / 24
	recencyScore := 100 - days*10
	if recencyScore < 0 {
		recencyScore = 0
	}

	score := pointsScore*0.5 + relevanceScore*0.4 + recencyScore*0.1
	if score > 100 {
		score = 100
	}
	if score < 1 {
		score = 1
	}
	return int(score)
}

// fetchBraveSearch runs a web search for the query. Returns nil on failure.
func (a *TrendAnalyzer) fetchBraveSearch(ctx context.Context, query string, limit int) []TrendItem {
	call := a.gw.Call(ctx, gateway.Call{
		Provider:  config.ProviderBraveSearch,
		Operation: "brave_web_search",
		Args: map[string]any{
			"query":     query,
			"count":     a.opts.BraveFetchLimit,
			"freshness": "pm",
		},
	})
	if !call.OK() {
		return nil
	}

	items := make([]TrendItem, 0, limit)
	for _, result := range payloadObjects(call.Data, "results") {
		title := payloadString(result, "title")
		if title == "" {
			continue
		}
		desc := payloadString(result, "description")
		items = append(items, TrendItem{
			Title:       title,
			URL:         payloadString(result, "url"),
			Source:      config.ProviderBraveSearch,
			Score:       searchRelevance(title+" "+desc, query),
			Timestamp:   time.Now().UTC(),
			Description: desc,
		})
		if len(items) >= limit {
			break
		}
	}
	return items
}

// searchRelevance scores a web result 1-100 by query term overlap.
func searchRelevance(text, query string) int {
	textLower := strings.ToLower(text)
	score := 30
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if len(term) <= 2 {
			continue
		}
		if strings.Contains(textLower, term) {
			score += 20
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}

// combineTrends orders Hacker News items first (by score), then web items
// by score and recency.
func combineTrends(hn, brave []TrendItem) []TrendItem {
	out := make([]TrendItem, 0, len(hn)+len(brave))

	sort.SliceStable(hn, func(i, j int) bool { return hn[i].Score > hn[j].Score })
	out = append(out, hn...)

	sort.SliceStable(brave, func(i, j int) bool {
		if brave[i].Score != brave[j].Score {
			return brave[i].Score > brave[j].Score
		}
		return brave[i].Timestamp.After(brave[j].Timestamp)
	})
	return append(out, brave...)
}

// summarize produces the analysis text. Without a completion backend, or
// when the backend fails, a deterministic fallback summary is produced and
// the result is marked degraded.
func (a *TrendAnalyzer) summarize(ctx context.Context, query string, trends []TrendItem) (string, bool) {
	if a.completer != nil {
		var b strings.Builder
		fmt.Fprintf(&b, "Analyze the following tech trends for the query %q.\n\nItems:\n", query)
		for i, t := range trends {
			if i >= 20 {
				break
			}
			fmt.Fprintf(&b, "- [%s] %s (%s)\n", t.Source, t.Title, t.URL)
		}
		b.WriteString("\nProvide: a summary of key trends, emerging technologies, " +
			"GitHub repositories mentioned in owner/repo format, and correlations between sources. " +
			"Focus on actionable insights for developers.")

		summary, err := a.completer.Complete(ctx, b.String())
		if err == nil {
			return summary, false
		}
		a.logger.Warn(ctx, "trend summary completion failed", zap.Error(err))
	}

	if len(trends) == 0 {
		return fmt.Sprintf("No trend data could be gathered for %q.", query), true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Top items for %q:\n", query)
	for i, t := range trends {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&b, "%d. %s (%s, score %d)\n", i+1, t.Title, t.Source, t.Score)
	}
	return b.String(), true
}

// detectReferences scans the query, the summary, and the gathered titles
// for repository references.
func (a *TrendAnalyzer) detectReferences(query, summary string, trends []TrendItem) []string {
	var b strings.Builder
	b.WriteString(query)
	b.WriteString("\n")
	b.WriteString(summary)
	for _, t := range trends {
		b.WriteString("\n")
		b.WriteString(t.Title)
		b.WriteString(" ")
		b.WriteString(t.URL)
	}
	return refdetect.Detect(b.String())
}

// confidence scores the analysis 0.5-1.0 from item count, source count,
// and average item score.
func confidence(trends []TrendItem, sources []string) float64 {
	base := 0.5

	trendFactor := float64(len(trends)) / 20
	if trendFactor > 0.3 {
		trendFactor = 0.3
	}

	sourceFactor := float64(len(sources)) * 0.1

	qualityFactor := 0.0
	if len(trends) > 0 {
		total := 0
		for _, t := range trends {
			total += t.Score
		}
		avg := float64(total) / float64(len(trends))
		qualityFactor = avg / 100
		if qualityFactor > 0.2 {
			qualityFactor = 0.2
		}
	}

	score := base + trendFactor + sourceFactor + qualityFactor
	if score > 1.0 {
		score = 1.0
	}
	return score
}

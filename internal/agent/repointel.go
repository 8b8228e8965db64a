package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/trendd/internal/completion"
	"github.com/fyrsmithlabs/trendd/internal/config"
	"github.com/fyrsmithlabs/trendd/internal/gateway"
	"github.com/fyrsmithlabs/trendd/internal/logging"
)

// RepoProfile is the normalized shape of one analyzed repository.
type RepoProfile struct {
	Name        string   `json:"name"`
	FullName    string   `json:"full_name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Stars       int      `json:"stars"`
	Forks       int      `json:"forks"`
	Language    string   `json:"language"`
	Topics      []string `json:"topics"`
	License     string   `json:"license"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// RepoOptions are the tunables of the repo analyst.
type RepoOptions struct {
	// MaxRepos bounds how many references one handoff can resolve.
	MaxRepos int
	// Concurrency bounds parallel tool calls.
	Concurrency int
}

func (o *RepoOptions) applyDefaults() {
	if o.MaxRepos == 0 {
		o.MaxRepos = 5
	}
	if o.Concurrency == 0 {
		o.Concurrency = 3
	}
}

// activityWindow is how recently a repository must have been updated to
// count as active.
const activityWindow = 90 * 24 * time.Hour

// RepoAnalyst resolves repository references into profiles and correlates
// them into an intelligence summary. Partial resolution is a valid
// outcome; only the subset that resolved feeds the correlation.
type RepoAnalyst struct {
	gw        *gateway.Gateway
	completer completion.Client
	logger    *logging.Logger
	opts      RepoOptions
}

// NewRepoAnalyst creates the repository intelligence agent.
func NewRepoAnalyst(gw *gateway.Gateway, completer completion.Client, logger *logging.Logger, opts RepoOptions) *RepoAnalyst {
	if logger == nil {
		logger = logging.NewNop()
	}
	opts.applyDefaults()
	return &RepoAnalyst{
		gw:        gw,
		completer: completer,
		logger:    logger.Named("repo_analyst"),
		opts:      opts,
	}
}

func (a *RepoAnalyst) Name() string { return NameRepoAnalyst }

func (a *RepoAnalyst) Route() string { return RouteRepoIntel }

// Process resolves each reference with bounded concurrency and builds the
// correlation analysis over whatever subset resolved.
func (a *RepoAnalyst) Process(ctx context.Context, req Request) (*Result, error) {
	res := newResult(RouteRepoIntel)

	refs := req.References
	if len(refs) > a.opts.MaxRepos {
		refs = refs[:a.opts.MaxRepos]
	}

	var mu sync.Mutex
	var profiles []RepoProfile
	var failed []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)

	for _, ref := range refs {
		g.Go(func() error {
			profile, ok := a.resolve(gctx, ref)
			mu.Lock()
			defer mu.Unlock()
			if ok {
				profiles = append(profiles, profile)
			} else {
				failed = append(failed, ref)
			}
			return nil
		})
	}
	_ = g.Wait()

	// Concurrent resolution scrambles order; restore the handoff's.
	order := make(map[string]int, len(refs))
	for i, ref := range refs {
		order[strings.ToLower(ref)] = i
	}
	sort.SliceStable(profiles, func(i, j int) bool {
		return order[strings.ToLower(profiles[i].FullName)] < order[strings.ToLower(profiles[j].FullName)]
	})

	res.Degraded = len(failed) > 0
	res.Data["repositories"] = profiles
	res.Data["total_repos"] = len(profiles)
	res.Data["failed"] = failed
	res.Data["context"] = req.Context
	res.Data["correlation"] = correlate(profiles)
	res.Data["insights"] = a.insights(ctx, profiles, req.Context)

	a.logger.Info(ctx, "repository analysis completed",
		zap.Int("resolved", len(profiles)),
		zap.Int("failed", len(failed)),
	)
	return res, nil
}

// resolve fetches one repository's details through the gateway.
func (a *RepoAnalyst) resolve(ctx context.Context, ref string) (RepoProfile, bool) {
	owner, repo, ok := splitRef(ref)
	if !ok {
		a.logger.Warn(ctx, "invalid repository reference", zap.String("reference", ref))
		return RepoProfile{}, false
	}

	call := a.gw.Call(ctx, gateway.Call{
		Provider:  config.ProviderGitHub,
		Operation: "get_repository",
		Args:      map[string]any{"owner": owner, "repo": repo},
	})
	if !call.OK() {
		return RepoProfile{}, false
	}

	data := call.Data
	fullName := payloadString(data, "full_name")
	if fullName == "" {
		fullName = ref
	}

	url := payloadString(data, "url")
	if url == "" {
		url = "https://github.com/" + fullName
	}

	return RepoProfile{
		Name:        payloadString(data, "name"),
		FullName:    fullName,
		Description: payloadString(data, "description"),
		URL:         url,
		Stars:       int(payloadNumber(data, "stars")),
		Forks:       int(payloadNumber(data, "forks")),
		Language:    payloadString(data, "language"),
		Topics:      payloadStrings(data, "topics"),
		License:     payloadString(data, "license"),
		CreatedAt:   payloadString(data, "created_at"),
		UpdatedAt:   payloadString(data, "updated_at"),
	}, true
}

func splitRef(ref string) (owner, repo string, ok bool) {
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// Correlation is the cross-repository analysis attached to a repo intel
// result.
type Correlation struct {
	TrendingTechnologies []string           `json:"trending_technologies"`
	RelatedRepositories  []string           `json:"related_repositories"`
	Score                float64            `json:"correlation_score"`
	KeyInsights          []string           `json:"key_insights"`
	GrowthIndicators     map[string]float64 `json:"growth_indicators"`
	Sentiment            string             `json:"sentiment"`
}

// correlate aggregates profile metrics into a correlation summary.
func correlate(profiles []RepoProfile) Correlation {
	if len(profiles) == 0 {
		return Correlation{
			TrendingTechnologies: []string{},
			RelatedRepositories:  []string{},
			KeyInsights:          []string{"No repositories to analyze"},
			GrowthIndicators:     map[string]float64{},
			Sentiment:            "neutral",
		}
	}

	techSet := make(map[string]bool)
	var technologies, related []string
	totalStars, totalForks, active := 0, 0, 0

	addTech := func(t string) {
		t = strings.ToLower(t)
		if t != "" && !techSet[t] {
			techSet[t] = true
			technologies = append(technologies, t)
		}
	}

	for _, p := range profiles {
		addTech(p.Language)
		for _, topic := range p.Topics {
			addTech(topic)
		}
		totalStars += p.Stars
		totalForks += p.Forks
		if isActive(p.UpdatedAt) {
			active++
		}
		related = append(related, p.FullName)
	}

	n := float64(len(profiles))
	avgStars := float64(totalStars) / n
	avgForks := float64(totalForks) / n
	activityRatio := float64(active) / n

	var insights []string
	if avgStars > 1000 {
		insights = append(insights, "High community interest with significant star counts")
	}
	if avgForks > 100 {
		insights = append(insights, "Strong development activity indicated by fork counts")
	}
	if activityRatio > 0.8 {
		insights = append(insights, "Most repositories are actively maintained")
	}
	if len(technologies) > 5 {
		insights = append(insights, "Diverse technology ecosystem represented")
	}
	if insights == nil {
		insights = []string{}
	}

	if len(technologies) > 10 {
		technologies = technologies[:10]
	}

	return Correlation{
		TrendingTechnologies: technologies,
		RelatedRepositories:  related,
		Score:                correlationScore(avgStars, avgForks, activityRatio, len(techSet)),
		KeyInsights:          insights,
		GrowthIndicators: map[string]float64{
			"average_stars":        avgStars,
			"average_forks":        avgForks,
			"activity_ratio":       activityRatio,
			"technology_diversity": float64(len(techSet)),
		},
		Sentiment: sentiment(avgStars, activityRatio),
	}
}

func isActive(updatedAt string) bool {
	if updatedAt == "" {
		return false
	}
	t, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return false
	}
	return time.Since(t) <= activityWindow
}

// correlationScore weights normalized stars, forks, activity, and
// technology diversity: 0.3, 0.2, 0.3, 0.2.
func correlationScore(avgStars, avgForks, activityRatio float64, techDiversity int) float64 {
	starScore := avgStars / 10000
	if starScore > 1 {
		starScore = 1
	}
	forkScore := avgForks / 1000
	if forkScore > 1 {
		forkScore = 1
	}
	diversityScore := float64(techDiversity) / 20
	if diversityScore > 1 {
		diversityScore = 1
	}

	score := starScore*0.3 + forkScore*0.2 + activityRatio*0.3 + diversityScore*0.2
	return float64(int(score*1000+0.5)) / 1000
}

// sentiment maps aggregate metrics onto a coarse tier.
func sentiment(avgStars, activityRatio float64) string {
	switch {
	case avgStars > 5000 && activityRatio > 0.8:
		return "very_positive"
	case avgStars > 1000 && activityRatio > 0.6:
		return "positive"
	case avgStars > 100 && activityRatio > 0.4:
		return "neutral"
	case activityRatio > 0.2:
		return "cautious"
	default:
		return "negative"
	}
}

// insights produces the narrative analysis. Without a completion backend a
// deterministic one-liner is produced instead.
func (a *RepoAnalyst) insights(ctx context.Context, profiles []RepoProfile, analysisContext string) string {
	if len(profiles) == 0 {
		return "No repositories could be analyzed successfully."
	}

	if a.completer == nil {
		return fmt.Sprintf("Analyzed %d repositories.", len(profiles))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following GitHub repositories with context %q.\n\n", analysisContext)
	for _, p := range profiles {
		fmt.Fprintf(&b, "- %s: %d stars, %d forks, language %s. %s\n",
			p.FullName, p.Stars, p.Forks, p.Language, p.Description)
	}
	b.WriteString("\nProvide a repository health assessment, community engagement evaluation, " +
		"growth potential analysis, and recommendations for developers. " +
		"Focus on actionable, data-driven conclusions.")

	out, err := a.completer.Complete(ctx, b.String())
	if err != nil {
		a.logger.Warn(ctx, "repository insights completion failed", zap.Error(err))
		return fmt.Sprintf("Analyzed %d repositories.", len(profiles))
	}
	return out
}

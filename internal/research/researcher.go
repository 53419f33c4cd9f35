// Package research runs the bounded research loop for one lead: a reasoning
// component chooses search, fetch or finish at each step against the shared
// blackboard until the goal is answered or the page budget runs out.
package research

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"leadscout/internal/blackboard"
	"leadscout/internal/lead"
	"leadscout/internal/tools"
	"leadscout/internal/trace"
)

// stepCeilingFactor bounds loop steps at this multiple of the remaining page
// budget, so a reasoning component that never makes progress still terminates.
const stepCeilingFactor = 3

// Config bounds one research call.
type Config struct {
	ConcurrentFetch int // pages fetched in parallel per fetch step
	QueryAttempts   int // search attempts per query before it is abandoned
	URLAttempts     int // fetch attempts per URL before it is abandoned
}

// DefaultConfig mirrors conservative production settings.
func DefaultConfig() Config {
	return Config{
		ConcurrentFetch: 2,
		QueryAttempts:   2,
		URLAttempts:     2,
	}
}

// Outcome says how a research call ended.
type Outcome string

const (
	// OutcomeSatisfied: the reasoning component decided the goal is answered.
	OutcomeSatisfied Outcome = "satisfied"
	// OutcomeExhausted: page budget or step ceiling ran out. Not an error.
	OutcomeExhausted Outcome = "exhausted"
	// OutcomeFailed: terminal reasoning error, invariant breach or cancellation.
	OutcomeFailed Outcome = "failed"
)

// Result reports one research call.
type Result struct {
	Outcome      Outcome
	Steps        int
	PagesFetched int
	Searches     int
}

// Researcher drives the loop. The attached tracer is scoped to one run, so
// construct a fresh Researcher per lead.
type Researcher struct {
	search  tools.SearchTool
	fetcher tools.PageFetcher
	llm     tools.ReasoningService
	cfg     Config
	logger  *zap.Logger
	tracer  *trace.Recorder
	llmGate chan struct{}
}

// New constructs a Researcher. A nil logger disables logging.
func New(search tools.SearchTool, fetcher tools.PageFetcher, llm tools.ReasoningService, cfg Config, logger *zap.Logger) *Researcher {
	if cfg.ConcurrentFetch <= 0 {
		cfg.ConcurrentFetch = 1
	}
	if cfg.QueryAttempts <= 0 {
		cfg.QueryAttempts = 1
	}
	if cfg.URLAttempts <= 0 {
		cfg.URLAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Researcher{
		search:  search,
		fetcher: fetcher,
		llm:     llm,
		cfg:     cfg,
		logger:  logger,
	}
}

// SetTracer attaches a run-scoped trace recorder.
func (r *Researcher) SetTracer(t *trace.Recorder) { r.tracer = t }

// SetReasoningGate shares a semaphore that serializes reasoning calls across
// concurrent leads, to respect provider rate limits.
func (r *Researcher) SetReasoningGate(gate chan struct{}) { r.llmGate = gate }

type runState struct {
	goal             lead.ResearchGoal
	board            *blackboard.Blackboard
	abandonedQueries map[string]bool
	pages            atomic.Int64
	searches         int
	tracer           *trace.Recorder
}

// Research runs the loop for one goal against the lead's blackboard. The
// returned error is non-nil iff Outcome is OutcomeFailed.
func (r *Researcher) Research(ctx context.Context, goal lead.ResearchGoal, board *blackboard.Blackboard) (*Result, error) {
	res := &Result{}
	rs := &runState{
		goal:             goal,
		board:            board,
		abandonedQueries: make(map[string]bool),
		tracer:           r.tracer,
	}
	defer func() {
		res.PagesFetched = int(rs.pages.Load())
		res.Searches = rs.searches
	}()

	pagesLeft, _ := board.RemainingBudget()
	if pagesLeft <= 0 {
		res.Outcome = OutcomeExhausted
		r.logger.Info("research skipped, no page budget", zap.String("goal", excerpt(goal.Objective, 80)))
		return res, nil
	}
	maxSteps := stepCeilingFactor * pagesLeft

	for res.Steps < maxSteps {
		if err := ctx.Err(); err != nil {
			res.Outcome = OutcomeFailed
			return res, err
		}
		pagesLeft, _ = board.RemainingBudget()
		if pagesLeft <= 0 {
			res.Outcome = OutcomeExhausted
			r.logger.Info("research exhausted page budget",
				zap.Int("steps", res.Steps),
				zap.Int64("pages", rs.pages.Load()))
			return res, nil
		}

		action, err := r.decide(ctx, goal, board)
		res.Steps++
		if err != nil {
			res.Outcome = OutcomeFailed
			return res, err
		}
		rs.tracer.ActionDecided(action.Action, actionTarget(action), nil)

		switch action.Action {
		case actionFinish:
			res.Outcome = OutcomeSatisfied
			r.logger.Info("research satisfied",
				zap.Int("steps", res.Steps),
				zap.Int64("pages", rs.pages.Load()),
				zap.String("reason", action.Reason))
			return res, nil
		case actionSearch:
			r.doSearch(ctx, rs, action.Query)
		case actionFetch:
			if err := r.doFetch(ctx, rs, action.URL); err != nil {
				res.Outcome = OutcomeFailed
				return res, err
			}
		}
	}

	res.Outcome = OutcomeExhausted
	r.logger.Warn("research hit step ceiling",
		zap.Int("steps", res.Steps),
		zap.Int64("pages", rs.pages.Load()))
	return res, nil
}

func (r *Researcher) decide(ctx context.Context, goal lead.ResearchGoal, board *blackboard.Blackboard) (*nextAction, error) {
	release, err := r.acquireGate(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return tools.CompleteJSON[nextAction](ctx, r.llm, tools.CompletionRequest{
		System: researchSystemPrompt,
		Prompt: actionPrompt(goal, board),
		Schema: actionSchema,
	})
}

// doSearch issues one query and merges result URLs into the frontier. Search
// failures are local: retry within the attempt bound, then abandon the query
// for the rest of this call.
func (r *Researcher) doSearch(ctx context.Context, rs *runState, query string) {
	query = strings.TrimSpace(query)
	if rs.abandonedQueries[query] {
		r.logger.Debug("skipping abandoned query", zap.String("query", query))
		return
	}

	var urls []string
	var err error
	for attempt := 1; attempt <= r.cfg.QueryAttempts; attempt++ {
		urls, err = r.search.Search(ctx, query)
		rs.searches++
		rs.tracer.SearchIssued(query, len(urls), err)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return
		}
	}
	if err != nil {
		rs.abandonedQueries[query] = true
		r.logger.Warn("query abandoned",
			zap.String("query", query),
			zap.Int("attempts", r.cfg.QueryAttempts),
			zap.Error(err))
		return
	}

	links := make([]blackboard.FrontierLink, 0, len(urls))
	for _, u := range urls {
		links = append(links, blackboard.FrontierLink{URL: u, Reason: "search: " + query})
	}
	added := rs.board.MergeLinks(links)
	r.logger.Debug("search done",
		zap.String("query", query),
		zap.Int("results", len(urls)),
		zap.Int("new_links", added))
}

// doFetch claims the chosen URL, optionally draws extra frontier links up to
// ConcurrentFetch, and fetches them in parallel. Budget is reserved at claim
// and dequeue time, so concurrent fetches never overshoot the page cap.
func (r *Researcher) doFetch(ctx context.Context, rs *runState, target string) error {
	if !rs.board.ClaimFrontierURL(target) {
		r.logger.Debug("fetch target not claimable", zap.String("url", target))
		return nil
	}

	batch := []blackboard.FrontierLink{{URL: target}}
	if extra := r.cfg.ConcurrentFetch - 1; extra > 0 {
		batch = append(batch, rs.board.NextFrontierLinks(extra)...)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, link := range batch {
		g.Go(func() error {
			return r.fetchOne(gctx, rs, link.URL)
		})
	}
	return g.Wait()
}

// fetchOne fetches, truncates to the per-page char budget, distills a finding
// and records it. Fetch failures are local (bounded retries, then release the
// reservation); reasoning failures and duplicate findings are terminal.
func (r *Researcher) fetchOne(ctx context.Context, rs *runState, url string) error {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.URLAttempts; attempt++ {
		page, err := r.fetcher.Fetch(ctx, url)
		if err != nil {
			rs.tracer.PageFetched(url, 0, err)
			if ctx.Err() != nil {
				rs.board.Release(url)
				return ctx.Err()
			}
			lastErr = err
			var ferr *tools.FetchError
			if errors.As(err, &ferr) {
				r.logger.Warn("fetch failed",
					zap.String("url", url),
					zap.String("reason", string(ferr.Reason)),
					zap.Int("attempt", attempt))
			} else {
				r.logger.Warn("fetch failed", zap.String("url", url), zap.Error(err))
			}
			continue
		}

		content, cut := truncateRunes(page.Content, rs.board.PageCharLimit())
		chars := utf8.RuneCountInString(content)
		rs.tracer.PageFetched(url, chars, nil)

		analysis, err := r.analyze(ctx, rs.goal, page, content, cut || page.Truncated)
		if err != nil {
			rs.board.Release(url)
			return err
		}

		links := make([]blackboard.FrontierLink, 0, len(analysis.Links))
		for _, l := range analysis.Links {
			links = append(links, blackboard.FrontierLink{URL: l.URL, Reason: l.Reason})
		}
		finding := blackboard.PageFinding{
			URL:     url,
			Title:   page.Title,
			Summary: analysis.Summary,
			Links:   links,
			Goal:    rs.goal.Objective,
			Chars:   chars,
		}
		if err := rs.board.Record(finding); err != nil {
			return err
		}
		rs.pages.Add(1)
		rs.tracer.FindingRecorded(url, len(links), rs.board.Stats().Pages)
		return nil
	}

	rs.board.Release(url)
	r.logger.Warn("url abandoned",
		zap.String("url", url),
		zap.Int("attempts", r.cfg.URLAttempts),
		zap.Error(lastErr))
	return nil
}

func (r *Researcher) analyze(ctx context.Context, goal lead.ResearchGoal, page *tools.Page, content string, truncated bool) (*pageAnalysis, error) {
	release, err := r.acquireGate(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return tools.CompleteJSON[pageAnalysis](ctx, r.llm, tools.CompletionRequest{
		System: analysisSystemPrompt,
		Prompt: analysisPrompt(goal, page, content, truncated),
		Schema: analysisSchema,
	})
}

func (r *Researcher) acquireGate(ctx context.Context) (func(), error) {
	if r.llmGate == nil {
		return func() {}, nil
	}
	select {
	case r.llmGate <- struct{}{}:
		return func() { <-r.llmGate }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func actionTarget(a *nextAction) string {
	switch a.Action {
	case actionSearch:
		return a.Query
	case actionFetch:
		return a.URL
	default:
		return ""
	}
}

// truncateRunes cuts s to at most limit runes. The budget counts characters,
// not bytes, so multibyte pages truncate correctly.
func truncateRunes(s string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	return string([]rune(s)[:limit]), true
}

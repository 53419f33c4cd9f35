// Package pipeline wires the research and classification loops, the run
// archive and the trace recorder into the per-lead end-to-end flow, and runs
// batches of leads with bounded concurrency.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"leadscout/internal/blackboard"
	"leadscout/internal/classify"
	"leadscout/internal/lead"
	"leadscout/internal/research"
	"leadscout/internal/store"
	"leadscout/internal/tools"
	"leadscout/internal/trace"
)

// Archiver persists finished runs. *store.Archive satisfies it.
type Archiver interface {
	ArchiveRun(run store.Run, findings []blackboard.PageFinding) (string, error)
}

// Options control the per-lead budgets and the batch shape.
type Options struct {
	// MaxRounds bounds classification rounds per lead.
	MaxRounds int
	// PageBudget / PageCharLimit configure each lead's blackboard.
	PageBudget    int
	PageCharLimit int
	// Concurrency bounds how many leads run in parallel in batch mode.
	Concurrency int
	// LLMSlots sizes the semaphore serializing reasoning calls across leads.
	LLMSlots int
	// TraceDir enables per-run JSONL traces when non-empty.
	TraceDir string
	Research research.Config
	ICP      classify.ICP
}

const (
	defaultMaxRounds   = 5
	defaultConcurrency = 4
)

// Pipeline holds the shared tool adapters. Research and classification state
// is per lead; one Pipeline serves any number of concurrent leads.
type Pipeline struct {
	search  tools.SearchTool
	fetcher tools.PageFetcher
	llm     tools.ReasoningService
	archive Archiver
	logger  *zap.Logger
	opts    Options
	llmGate chan struct{}
}

func New(search tools.SearchTool, fetcher tools.PageFetcher, llm tools.ReasoningService, opts Options, logger *zap.Logger) *Pipeline {
	if opts.MaxRounds < 1 {
		opts.MaxRounds = defaultMaxRounds
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.LLMSlots < 1 {
		opts.LLMSlots = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		search:  search,
		fetcher: fetcher,
		llm:     llm,
		logger:  logger,
		opts:    opts,
		llmGate: make(chan struct{}, opts.LLMSlots),
	}
}

// SetArchive enables run persistence.
func (p *Pipeline) SetArchive(a Archiver) { p.archive = a }

// LeadResult is the outcome of one lead's end-to-end run. Verdict is never
// nil; Err carries the terminal error when the run degraded to the default
// or last-known verdict.
type LeadResult struct {
	Lead     lead.Lead
	Verdict  *lead.Verdict
	RunID    string
	Outcome  research.Outcome
	Stats    blackboard.Stats
	Duration time.Duration
	Err      error
}

// ProcessLead runs one lead end to end: seed the board with the lead URL,
// run the initial research goal, classify (with bounded follow-up rounds),
// archive and trace. A failed initial research still classifies on whatever
// evidence the board holds.
func (p *Pipeline) ProcessLead(ctx context.Context, l lead.Lead) LeadResult {
	started := time.Now()
	out := LeadResult{Lead: l, RunID: uuid.NewString()}
	defer func() { out.Duration = time.Since(started) }()

	if err := l.Validate(); err != nil {
		out.Verdict = lead.DefaultVerdict()
		out.Err = fmt.Errorf("invalid lead: %w", err)
		return out
	}

	tracer := p.openTrace(out.RunID, l.String())
	defer tracer.Close()

	goal := lead.InitialGoal(l)
	tracer.RunStarted(goal.Objective)
	p.logger.Info("lead run started",
		zap.String("lead", l.String()),
		zap.String("run", out.RunID))

	board := blackboard.NewWithBudget(p.opts.PageBudget, p.opts.PageCharLimit)
	board.MergeLinks([]blackboard.FrontierLink{{URL: l.URL, Reason: "lead profile"}})

	researcher := research.New(p.search, p.fetcher, p.llm, p.opts.Research, p.logger)
	researcher.SetTracer(tracer)
	researcher.SetReasoningGate(p.llmGate)

	classifier := classify.New(p.llm, researcher, p.opts.ICP, p.logger)
	classifier.SetTracer(tracer)
	classifier.SetReasoningGate(p.llmGate)

	res, err := researcher.Research(ctx, goal, board)
	out.Outcome = res.Outcome
	if err != nil {
		// Classification proceeds on partial evidence; if reasoning is down
		// it fails there with the default verdict.
		p.logger.Warn("initial research failed, classifying with partial evidence",
			zap.String("lead", l.String()),
			zap.Error(err))
	}

	verdict, err := classifier.Classify(ctx, l, board, p.opts.MaxRounds)
	out.Verdict = verdict
	if err != nil {
		out.Err = err
	}

	out.Stats = board.Stats()
	tracer.VerdictIssued(string(verdict.Label), verdict.Rationale, verdict.Round)

	if p.archive != nil {
		run := store.Run{
			ID:         out.RunID,
			Lead:       l,
			Label:      verdict.Label,
			Rationale:  verdict.Rationale,
			Rounds:     verdict.Round,
			Pages:      out.Stats.Pages,
			Chars:      out.Stats.Chars,
			Outcome:    string(out.Outcome),
			StartedAt:  started,
			FinishedAt: time.Now(),
		}
		if _, aerr := p.archive.ArchiveRun(run, board.AllFindings()); aerr != nil {
			p.logger.Error("failed to archive run",
				zap.String("run", out.RunID),
				zap.Error(aerr))
			if out.Err == nil {
				out.Err = aerr
			}
		}
	}

	tracer.RunFinished(string(out.Outcome), out.Stats.Pages, res.Steps, out.Err)
	p.logger.Info("lead run finished",
		zap.String("lead", l.String()),
		zap.String("run", out.RunID),
		zap.String("label", string(verdict.Label)),
		zap.Int("rounds", verdict.Round),
		zap.Int("pages", out.Stats.Pages),
		zap.Duration("took", time.Since(started)))
	return out
}

// ProcessBatch runs leads in parallel, at most Concurrency at a time. Each
// lead's failure is captured in its result; one bad lead never aborts the
// batch.
func (p *Pipeline) ProcessBatch(ctx context.Context, leads []lead.Lead) []LeadResult {
	results := make([]LeadResult, len(leads))

	var eg errgroup.Group
	eg.SetLimit(p.opts.Concurrency)
	for i, l := range leads {
		eg.Go(func() error {
			results[i] = p.ProcessLead(ctx, l)
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

func (p *Pipeline) openTrace(runID, leadID string) *trace.Recorder {
	if p.opts.TraceDir == "" {
		return nil
	}
	rec, err := trace.NewRecorder(filepath.Join(p.opts.TraceDir, runID+".jsonl"))
	if err != nil {
		p.logger.Warn("trace disabled for run",
			zap.String("run", runID),
			zap.Error(err))
		return nil
	}
	return rec.WithRun(runID, leadID)
}

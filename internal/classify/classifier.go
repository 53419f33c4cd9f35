// Package classify implements the evaluate/investigate loop that turns a
// researched blackboard into a lead verdict. Each round asks the reasoning
// component to either commit to a verdict or name a follow-up research goal;
// follow-ups run through the researcher against the same blackboard, so every
// round sees all evidence gathered so far.
package classify

import (
	"context"

	"go.uber.org/zap"

	"leadscout/internal/blackboard"
	"leadscout/internal/lead"
	"leadscout/internal/research"
	"leadscout/internal/tools"
	"leadscout/internal/trace"
)

// Investigator runs one follow-up research goal against the lead's board.
// *research.Researcher satisfies it.
type Investigator interface {
	Research(ctx context.Context, goal lead.ResearchGoal, board *blackboard.Blackboard) (*research.Result, error)
}

// ICP carries the ideal-customer-profile context embedded in every
// classification prompt.
type ICP struct {
	Offering string
	Profile  string
}

// Classifier evaluates leads against the ICP, requesting bounded follow-up
// research when the evidence is thin. The attached tracer is scoped to one
// run, so construct a fresh Classifier per lead.
type Classifier struct {
	llm          tools.ReasoningService
	investigator Investigator
	icp          ICP
	logger       *zap.Logger
	tracer       *trace.Recorder
	llmGate      chan struct{}
}

func New(llm tools.ReasoningService, inv Investigator, icp ICP, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{llm: llm, investigator: inv, icp: icp, logger: logger}
}

// SetTracer attaches a run-scoped trace recorder.
func (c *Classifier) SetTracer(t *trace.Recorder) { c.tracer = t }

// SetReasoningGate shares the semaphore that serializes reasoning calls
// across concurrent leads.
func (c *Classifier) SetReasoningGate(gate chan struct{}) { c.llmGate = gate }

var verdictSchema = tools.Schema{
	Name:        "lead_verdict",
	Description: "Classification verdict for one lead",
	Properties: map[string]tools.Property{
		"lead_quality": {
			Type:        "string",
			Enum:        labelStrings(),
			Description: "lead quality class",
		},
		"rationale": {
			Type:        "string",
			Description: "rationale for the lead quality classification",
		},
		"needs_more_research": {
			Type:        "boolean",
			Description: "true when a verdict cannot be committed without more evidence",
		},
		"further_investigation": {
			Type:        "string",
			Description: "research goal for further investigation, required when needs_more_research is true",
		},
	},
	Required: []string{"lead_quality", "rationale", "needs_more_research"},
}

func labelStrings() []string {
	out := make([]string, len(lead.Labels))
	for i, l := range lead.Labels {
		out[i] = string(l)
	}
	return out
}

// Classify runs up to maxRounds evaluations of the lead against the board.
// On the last allowed round the prompt demands a committed verdict, so the
// loop always terminates within maxRounds evaluations; maxRounds of one means
// exactly one evaluation and no follow-up research. The returned verdict is
// never nil: on a terminal error it is the last verdict produced, or the
// default one when no round completed, alongside the error.
func (c *Classifier) Classify(ctx context.Context, l lead.Lead, board *blackboard.Blackboard, maxRounds int) (*lead.Verdict, error) {
	if maxRounds < 1 {
		maxRounds = 1
	}

	var last *lead.Verdict
	for round := 1; round <= maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return lastOrDefault(last), err
		}

		forceFinal := round == maxRounds
		v, err := c.evaluate(ctx, l, board, forceFinal)
		if err != nil {
			c.logger.Error("verdict evaluation failed",
				zap.String("lead", l.String()),
				zap.Int("round", round),
				zap.Error(err))
			return lastOrDefault(last), err
		}
		v.Round = round
		last = v
		c.tracer.RoundEvaluated(round, string(v.Label), v.NeedsMoreResearch)

		if forceFinal || v.Final() {
			c.logger.Info("classification final",
				zap.String("lead", l.String()),
				zap.String("label", string(v.Label)),
				zap.Int("rounds", round))
			return v, nil
		}

		goal := lead.ResearchGoal{Objective: v.FollowUp, ParentRound: round}
		res, err := c.investigator.Research(ctx, goal, board)
		if err != nil {
			c.logger.Error("follow-up research failed",
				zap.String("lead", l.String()),
				zap.Int("round", round),
				zap.Error(err))
			return v, err
		}
		c.logger.Info("follow-up research done",
			zap.String("lead", l.String()),
			zap.Int("round", round),
			zap.String("outcome", string(res.Outcome)),
			zap.Int("pages", res.PagesFetched))
	}

	// Unreachable: the forced-final round always returns above.
	return lastOrDefault(last), nil
}

func (c *Classifier) evaluate(ctx context.Context, l lead.Lead, board *blackboard.Blackboard, forceFinal bool) (*lead.Verdict, error) {
	release, err := c.acquireGate(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return tools.CompleteJSON[lead.Verdict](ctx, c.llm, tools.CompletionRequest{
		System: classifySystemPrompt,
		Prompt: verdictPrompt(l, c.icp, board, forceFinal),
		Schema: verdictSchema,
	})
}

func (c *Classifier) acquireGate(ctx context.Context) (func(), error) {
	if c.llmGate == nil {
		return func() {}, nil
	}
	select {
	case c.llmGate <- struct{}{}:
		return func() { <-c.llmGate }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func lastOrDefault(v *lead.Verdict) *lead.Verdict {
	if v != nil {
		return v
	}
	return lead.DefaultVerdict()
}

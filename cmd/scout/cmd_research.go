package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"leadscout/internal/blackboard"
	"leadscout/internal/lead"
	"leadscout/internal/research"
)

var (
	researchUsername string
	researchName     string
	researchURL      string
	researchGoal     string
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Run the research loop for one lead without classifying",
	Long: `Runs a single research goal for a lead and prints the evidence
board: every page the loop fetched, with its summary. Useful for tuning
budgets and prompts before running classification.

Examples:
  scout research --username acme --url https://github.com/acme
  scout research --url https://github.com/acme --goal "find who their paying customers are"`,
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().StringVar(&researchUsername, "username", "", "Lead username or handle")
	researchCmd.Flags().StringVar(&researchName, "name", "", "Lead display name")
	researchCmd.Flags().StringVar(&researchURL, "url", "", "Lead profile URL")
	researchCmd.Flags().StringVar(&researchGoal, "goal", "", "Research objective (default: initial lead research)")
}

func runResearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	l := lead.Lead{Username: researchUsername, Name: researchName, URL: researchURL}
	if err := l.Validate(); err != nil {
		return fmt.Errorf("%w (set --url, plus --username or --name)", err)
	}

	goal := lead.InitialGoal(l)
	if researchGoal != "" {
		goal = lead.ResearchGoal{Objective: researchGoal}
	}

	board := blackboard.NewWithBudget(a.cfg.Research.PageBudget, a.cfg.Research.PageCharLimit)
	board.MergeLinks([]blackboard.FrontierLink{{URL: l.URL, Reason: "lead profile"}})

	researcher := research.New(a.search, a.fetcher, a.llm, research.Config{
		ConcurrentFetch: a.cfg.Research.ConcurrentFetch,
		QueryAttempts:   a.cfg.Research.QueryAttempts,
		URLAttempts:     a.cfg.Research.URLAttempts,
	}, a.logger)

	res, rerr := researcher.Research(ctx, goal, board)

	stats := board.Stats()
	fmt.Print(renderFindings(board.AllFindings()))
	fmt.Printf("outcome=%s steps=%d pages=%d searches=%d chars=%d frontier=%d\n",
		res.Outcome, res.Steps, stats.Pages, res.Searches, stats.Chars, stats.FrontierSize)
	return rerr
}

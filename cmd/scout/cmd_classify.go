package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"leadscout/internal/lead"
	"leadscout/internal/pipeline"
)

var (
	classifyInput    string
	classifyUsername string
	classifyName     string
	classifyURL      string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Research and classify leads against the configured ICP",
	Long: `Classifies a single lead given by flags, or a whole batch from a
JSONL file (one {"username","name","url"} object per line).

Each lead is researched on the open web within the configured page budget,
then judged against the ideal customer profile. The classifier may send the
researcher back out for more evidence, up to the configured round limit.

Examples:
  scout classify --username octocat --url https://github.com/octocat
  scout classify --input leads.jsonl`,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyInput, "input", "i", "", "JSONL file of leads")
	classifyCmd.Flags().StringVar(&classifyUsername, "username", "", "Lead username or handle")
	classifyCmd.Flags().StringVar(&classifyName, "name", "", "Lead display name")
	classifyCmd.Flags().StringVar(&classifyURL, "url", "", "Lead profile URL")
}

// signalContext cancels on SIGINT/SIGTERM so a long batch shuts down cleanly.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if classifyInput != "" {
		return classifyBatch(ctx, a)
	}
	return classifyOne(ctx, a)
}

func classifyOne(ctx context.Context, a *app) error {
	l := lead.Lead{Username: classifyUsername, Name: classifyName, URL: classifyURL}
	if err := l.Validate(); err != nil {
		return fmt.Errorf("%w (set --url, plus --username or --name)", err)
	}

	res := a.pipeline.ProcessLead(ctx, l)
	fmt.Print(renderVerdict(res))
	return res.Err
}

func classifyBatch(ctx context.Context, a *app) error {
	leads, err := pipeline.ReadLeads(classifyInput)
	if err != nil {
		return err
	}
	if len(leads) == 0 {
		fmt.Fprintln(os.Stderr, "no leads in", classifyInput)
		return nil
	}

	results := a.pipeline.ProcessBatch(ctx, leads)
	fmt.Print(renderResults(results))

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d leads failed", failed, len(results))
	}
	return nil
}

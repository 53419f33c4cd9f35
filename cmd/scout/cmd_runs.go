package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"leadscout/internal/config"
	"leadscout/internal/store"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List archived runs, or show one run's evidence board",
	Long: `Without arguments, lists recent archived runs. With a run ID (or an
unambiguous prefix), prints that run's findings.

Examples:
  scout runs
  scout runs --limit 50
  scout runs 3f2a91c0`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "How many runs to list")
}

// runRuns reads the archive only; no API keys are needed.
func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if cfg.Storage.DatabasePath == "" {
		return fmt.Errorf("no archive configured (storage.database_path)")
	}

	archive, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archive.Close()

	if len(args) == 1 {
		return showRun(archive, args[0])
	}

	runs, err := archive.RecentRuns(runsLimit)
	if err != nil {
		return err
	}
	fmt.Print(renderRuns(runs))
	return nil
}

func showRun(archive *store.Archive, prefix string) error {
	runs, err := archive.RecentRuns(1000)
	if err != nil {
		return err
	}

	var match *store.Run
	for i := range runs {
		if strings.HasPrefix(runs[i].ID, prefix) {
			if match != nil {
				return fmt.Errorf("run prefix %q is ambiguous", prefix)
			}
			match = &runs[i]
		}
	}
	if match == nil {
		return fmt.Errorf("no archived run matches %q", prefix)
	}

	fmt.Print(renderRuns([]store.Run{*match}))
	fmt.Println()

	findings, err := archive.RunFindings(match.ID)
	if err != nil {
		return err
	}
	fmt.Print(renderFindings(findings))
	return nil
}

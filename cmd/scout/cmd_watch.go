package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"leadscout/internal/pipeline"
)

var watchDir string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a drop folder and classify lead files as they land",
	Long: `Watches a directory for *.jsonl lead files. Each file that lands is
parsed (one lead per line), run through research and classification, and
moved to <dir>/done/ when finished. Runs until interrupted.

Example:
  scout watch --dir leads/drop`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchDir, "dir", "d", "leads", "Directory to watch for *.jsonl files")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	w, err := pipeline.NewWatcher(a.pipeline, watchDir, a.logger)
	if err != nil {
		return err
	}
	w.SetBatchHandler(func(file string, results []pipeline.LeadResult) {
		fmt.Printf("\n%s\n", filepath.Base(file))
		fmt.Print(renderResults(results))
	})

	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Printf("watching %s (ctrl-c to stop)\n", watchDir)
	<-ctx.Done()
	return nil
}

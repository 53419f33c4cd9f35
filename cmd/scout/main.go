// scout finds and classifies sales leads: point it at a lead (or a JSONL
// file of leads), let the research loop gather evidence from the web, and
// get back a strong_fit / weak_fit / not_a_fit verdict with its rationale.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const appVersion = "0.3.0"

var (
	cfgPath string
	verbose bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "scout",
	Short: "scout - iterative lead research and classification",
	Long: `scout researches sales leads on the open web and classifies them
against your ideal customer profile.

Each lead gets its own evidence board. A bounded research loop searches,
fetches and summarizes pages onto the board; the classifier reads the board
and either issues a verdict or sends the researcher back out with a sharper
goal, up to a fixed number of rounds.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			config.Encoding = "console"
			config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the scout version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scout %s\n", appVersion)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "leadscout.yaml", "Config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(researchCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Package cli provides the command-line interface for tbench.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/muxbench/tbench/internal/config"
	"github.com/muxbench/tbench/internal/fetch"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "tbench",
	Short: "Terminal-Bench result analysis and leaderboard submission tooling",
	Long: `tbench aggregates Terminal-Bench results from nightly CI runs and the
community leaderboard snapshot.

It answers two questions:
  - Which tasks does the target agent fail that top competitors pass?
    (analyze: failure-rate ratios against a reference cohort)
  - How do several independent runs become one leaderboard submission?
    (prepare: collision-free merge of job folders, grouped by model)

Plus supporting commands to list nightly runs, inspect run logs, and
clean local caches.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for help
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		// Setup logger
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))

		// Load config
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./tbench.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(prepareCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(versionCmd)
}

// newFetcher builds the gh-backed artifact fetcher from the loaded config.
func newFetcher() *fetch.GHClient {
	return &fetch.GHClient{
		Repo:           cfg.Benchmark.GitHubRepo,
		Workflow:       cfg.Benchmark.Workflow,
		ArtifactPrefix: cfg.Benchmark.ArtifactPrefix,
		Logger:         logger,
	}
}

// Version information (set by build flags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tbench version %s\n", Version)
		fmt.Printf("  commit: %s\n", Commit)
		fmt.Printf("  built:  %s\n", BuildDate)
	},
}

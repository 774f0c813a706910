package cli

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muxbench/tbench/internal/submission"
)

var (
	prepareRunIDs        []int64
	prepareArtifactsDirs []string
	prepareNRuns         int
	prepareOutputDir     string
	prepareModels        []string
	prepareIncludeSmoke  bool
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Merge benchmark runs into a leaderboard submission bundle",
	Long: `Builds the leaderboard submission folder structure from one or more
downloaded benchmark runs.

The leaderboard computes pass@k from multiple attempts per task. Provide
multiple runs (via --run-id or --n-runs) so each becomes its own job folder
inside the submission: five separate single-attempt runs produce the same
structure as one five-attempt run.

Examples:
  tbench prepare --n-runs 5
  tbench prepare --run-id 111 --run-id 222 --run-id 333
  tbench prepare --artifacts-dir ./run1 --artifacts-dir ./run2
  tbench prepare --models anthropic/claude-opus-4-5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if prepareOutputDir == "" {
			prepareOutputDir = cfg.Submission.OutputDir
		}

		var sources []string
		var tempDirs []string
		runDate := time.Now().Format("2006-01-02")

		for _, dir := range prepareArtifactsDirs {
			if _, err := os.Stat(dir); err != nil {
				return fmt.Errorf("artifacts directory %s does not exist", dir)
			}
			sources = append(sources, dir)
		}

		runIDs := prepareRunIDs
		if prepareNRuns > 0 {
			fmt.Printf("Fetching latest %d successful nightly run(s)...\n", prepareNRuns)
			runs, err := newFetcher().ListRuns(ctx, prepareNRuns, "success")
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				return fmt.Errorf("no successful nightly runs found")
			}
			if len(runs) < prepareNRuns {
				fmt.Printf("Warning: only found %d successful nightly run(s) (requested %d)\n",
					len(runs), prepareNRuns)
			}
			runDate = runs[0].Date()
			for _, run := range runs {
				runIDs = append(runIDs, run.ID)
			}
		}

		// Default: latest single successful nightly run.
		if len(sources) == 0 && len(runIDs) == 0 {
			fmt.Println("Fetching latest successful nightly run...")
			runs, err := newFetcher().ListRuns(ctx, 1, "success")
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				return fmt.Errorf("no successful nightly runs found")
			}
			runDate = runs[0].Date()
			runIDs = []int64{runs[0].ID}
		}

		for _, id := range runIDs {
			dir, err := os.MkdirTemp("", "tbench-")
			if err != nil {
				return fmt.Errorf("creating temp directory: %w", err)
			}
			tempDirs = append(tempDirs, dir)
			if err := downloadRun(ctx, id, dir, prepareIncludeSmoke, prepareModels); err != nil {
				return err
			}
			sources = append(sources, dir)
		}

		m := &submission.Merger{
			Benchmark:      "terminal-bench",
			DatasetVersion: cfg.Benchmark.DatasetVersion,
			AgentName:      cfg.Benchmark.TargetAgent,
			Exclude:        cfg.Submission.ExcludePatterns,
			ModelMeta:      cfg.ModelMeta,
			Metadata:       cfg.Agent,
			Logger:         logger,
		}

		fmt.Printf("\nPreparing submission from %d source(s) in %s...\n", len(sources), prepareOutputDir)
		plan, err := m.BuildPlan(sources, prepareModels)
		if err != nil {
			return err
		}
		for _, warning := range plan.Warnings {
			logger.Warn(warning)
		}
		if plan.Skipped > 0 {
			logger.Info("trials without result descriptors skipped", "count", plan.Skipped)
		}
		if len(plan.Agents) == 0 {
			return fmt.Errorf("no valid submissions to create")
		}

		dirs, err := m.Execute(plan, prepareOutputDir)
		if err != nil {
			return err
		}

		fmt.Printf("\nCreated %d submission(s):\n", len(dirs))
		folders := make([]string, 0, len(dirs))
		for folder := range dirs {
			folders = append(folders, folder)
		}
		sort.Strings(folders)
		for _, folder := range folders {
			agent := plan.Agents[folder]
			trials := 0
			for _, job := range agent.Jobs {
				trials += len(job.Trials)
			}
			fmt.Printf("  - %s: %d job(s), %d trial(s)\n", agent.Model, len(agent.Jobs), trials)
		}

		fmt.Println("\nNext steps - submit with hf CLI:")
		fmt.Printf("  hf upload %s \\\n", cfg.Benchmark.LeaderboardRepo)
		fmt.Printf("    %s/submissions submissions \\\n", prepareOutputDir)
		fmt.Println("    --repo-type dataset --create-pr \\")
		fmt.Printf("    --commit-message %q\n", fmt.Sprintf("%s submission (%s)", cfg.Benchmark.TargetAgent, runDate))

		if len(tempDirs) > 0 {
			fmt.Printf("\nNote: temp artifacts in %d director(ies):\n", len(tempDirs))
			for _, dir := range tempDirs {
				fmt.Printf("  %s\n", dir)
			}
			fmt.Println("      Delete with: rm -rf " + strings.Join(tempDirs, " "))
		}
		return nil
	},
}

func init() {
	prepareCmd.Flags().Int64SliceVar(&prepareRunIDs, "run-id", nil, "CI run id (repeatable; each becomes a job folder)")
	prepareCmd.Flags().StringArrayVar(&prepareArtifactsDirs, "artifacts-dir", nil, "existing artifact directory (repeatable)")
	prepareCmd.Flags().IntVar(&prepareNRuns, "n-runs", 0, "fetch the latest N successful nightly runs")
	prepareCmd.Flags().StringVar(&prepareOutputDir, "output-dir", "", "output directory (default: from config)")
	prepareCmd.Flags().StringSliceVar(&prepareModels, "models", nil, "only process specific models")
	prepareCmd.Flags().BoolVar(&prepareIncludeSmoke, "include-smoke-test", false, "include the smoke-test model in the submission")
}

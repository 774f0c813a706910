package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muxbench/tbench/internal/inspect"
	"github.com/muxbench/tbench/internal/result"
	"github.com/muxbench/tbench/internal/submission"
)

var (
	logsRunID        int64
	logsTask         string
	logsModel        string
	logsFailuresOnly bool
	logsOutputDir    string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Download and inspect trial logs from a benchmark run",
	Long: `Downloads the result artifacts for a CI run and prints per-trial
outcomes, with failure detail (agent stderr, verifier exceptions, rewards)
for every failed trial.

Examples:
  tbench logs                         # latest completed nightly run
  tbench logs --run-id 1234567
  tbench logs --task sanitize-git-repo
  tbench logs --model anthropic/claude-opus-4-5 --failures-only`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runID := logsRunID
		if runID == 0 {
			run, err := latestCompletedRun(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Using latest completed run %d (%s)\n", run.ID, run.Date())
			runID = run.ID
		}

		var models []string
		if logsModel != "" {
			models = []string{logsModel}
		}

		dir := logsOutputDir
		if dir == "" {
			var err error
			dir, err = ensureRunDownloaded(ctx, runID, true, models)
			if err != nil {
				return err
			}
		} else if err := downloadRun(ctx, runID, dir, true, models); err != nil {
			return err
		}

		records, err := result.LoadTree(dir)
		if err != nil {
			return err
		}
		if logsTask != "" {
			var kept []result.TrialRecord
			for _, rec := range records {
				if rec.TaskName == logsTask || result.ExtractTaskID(rec.TaskName) == logsTask {
					kept = append(kept, rec)
				}
			}
			records = kept
		}
		if len(records) == 0 {
			return fmt.Errorf("no trial results found under %s", dir)
		}

		byModel := make(map[string][]result.TrialRecord)
		for _, rec := range records {
			model := "unknown"
			if m, ok := submission.ModelFromConfig(filepath.Join(filepath.Dir(rec.Path), "config.json")); ok {
				model = m
			} else if m, ok := modelFromArtifactPath(rec.Path, cfg.Benchmark.ArtifactPrefix); ok {
				model = m
			}
			byModel[model] = append(byModel[model], rec)
		}

		modelNames := make([]string, 0, len(byModel))
		for model := range byModel {
			modelNames = append(modelNames, model)
		}
		sort.Strings(modelNames)

		for _, model := range modelNames {
			recs := byModel[model]
			passed := 0
			for _, rec := range recs {
				if rec.Outcome == result.OutcomePass {
					passed++
				}
			}

			fmt.Printf("\n%s\n", strings.Repeat("=", 80))
			fmt.Printf("Model: %s (%d/%d passed)\n", model, passed, len(recs))
			fmt.Println(strings.Repeat("=", 80))

			for _, rec := range recs {
				if logsFailuresOnly && rec.Outcome != result.OutcomeFail {
					continue
				}
				fmt.Printf("  %s  %s\n", result.OutcomeSymbol[rec.Outcome], rec.TaskName)
				if rec.Outcome != result.OutcomeFail {
					continue
				}
				detail := inspect.Summarize(rec)
				if detail.Empty() {
					fmt.Println("      (no failure detail captured)")
					continue
				}
				fmt.Print(inspect.Format(detail))
			}
		}

		fmt.Printf("\nLogs downloaded to: %s\n", dir)
		return nil
	},
}

func init() {
	logsCmd.Flags().Int64Var(&logsRunID, "run-id", 0, "CI run id (default: latest completed run)")
	logsCmd.Flags().StringVar(&logsTask, "task", "", "only show trials for this task")
	logsCmd.Flags().StringVar(&logsModel, "model", "", "only download and show a specific model")
	logsCmd.Flags().BoolVar(&logsFailuresOnly, "failures-only", false, "only list failed trials")
	logsCmd.Flags().StringVar(&logsOutputDir, "output-dir", "", "download into this directory instead of the cache")
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muxbench/tbench/internal/leaderboard"
	"github.com/muxbench/tbench/internal/rank"
	"github.com/muxbench/tbench/internal/result"
	"github.com/muxbench/tbench/internal/store"
	"github.com/muxbench/tbench/internal/submission"
	"github.com/muxbench/tbench/internal/watch"
)

var (
	analyzeTop       int
	analyzeModel     string
	analyzeTopAgents int
	analyzeRefresh   bool
	analyzeJSON      bool
	analyzeRunsDirs  []string
	analyzeRunIDs    []int64
	analyzeWatch     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Rank tasks where the target agent underperforms top competitors",
	Long: `Compares the target agent's per-task failure rates against the average
failure rate of the top leaderboard agents on the same tasks.

Target results come from local run directories or downloaded nightly runs;
reference results come from a cached leaderboard snapshot. Tasks are ranked
by the ratio of target failure rate to (epsilon-smoothed) reference failure
rate: the higher the ratio, the bigger the relative gap.

Examples:
  tbench analyze
  tbench analyze --top 50
  tbench analyze --model claude-sonnet
  tbench analyze --runs-dir ./run1 --runs-dir ./run2
  tbench analyze --runs-dir ./nightly --watch
  tbench analyze --refresh --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runsDirs, err := collectTargetRunDirs(ctx)
		if err != nil {
			return err
		}

		if analyzeWatch {
			if len(analyzeRunsDirs) != 1 {
				return fmt.Errorf("--watch requires exactly one --runs-dir")
			}
			if err := runAnalysis(ctx, runsDirs); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "\nWatching for new results... (Ctrl+C to stop)")
			w := watch.New(analyzeRunsDirs[0], 2*time.Second, func() {
				if err := runAnalysis(ctx, runsDirs); err != nil {
					logger.Error("analysis failed", "error", err)
				}
			}, logger)
			if err := w.Watch(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		}

		return runAnalysis(ctx, runsDirs)
	},
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeTop, "top", 20, "number of top opportunities to show")
	analyzeCmd.Flags().StringVar(&analyzeModel, "model", "", "filter to specific target model (substring match)")
	analyzeCmd.Flags().IntVar(&analyzeTopAgents, "top-agents", 10, "number of top agents to compare against")
	analyzeCmd.Flags().BoolVar(&analyzeRefresh, "refresh", false, "force re-download of leaderboard data")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "output results as JSON")
	analyzeCmd.Flags().StringArrayVar(&analyzeRunsDirs, "runs-dir", nil, "local run directory with target results (repeatable)")
	analyzeCmd.Flags().Int64SliceVar(&analyzeRunIDs, "run-id", nil, "CI run id to download target results from (repeatable)")
	analyzeCmd.Flags().BoolVar(&analyzeWatch, "watch", false, "re-run analysis when the runs directory changes")
}

// collectTargetRunDirs resolves where target results come from: explicit
// directories, explicit run ids, or (default) the latest completed nightly
// run.
func collectTargetRunDirs(ctx context.Context) ([]string, error) {
	var dirs []string
	for _, dir := range analyzeRunsDirs {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("runs directory %s does not exist", dir)
		}
		dirs = append(dirs, dir)
	}

	runIDs := analyzeRunIDs
	if len(dirs) == 0 && len(runIDs) == 0 {
		run, err := latestCompletedRun(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info("using latest completed run", "run", run.ID, "date", run.Date())
		runIDs = []int64{run.ID}
	}

	for _, id := range runIDs {
		dir, err := ensureRunDownloaded(ctx, id, true, nil)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

// runAnalysis performs one full analysis pass and prints the outcome.
func runAnalysis(ctx context.Context, runsDirs []string) error {
	s := store.New()

	// Target trials. Model identity comes from each trial's own config,
	// falling back to the artifact directory name.
	assign := targetAssigner(cfg.Benchmark.TargetAgent)
	targetTrials, skipped := 0, 0
	for _, dir := range runsDirs {
		records, err := result.LoadTree(dir)
		if err != nil {
			return err
		}
		skipped += s.Ingest(records, assign)
		targetTrials += len(records)
	}
	fmt.Fprintf(os.Stderr, "Found %d target results in %d run director(ies)\n", targetTrials-skipped, len(runsDirs))
	if skipped > 0 {
		logger.Warn("trials without resolvable model identity skipped", "count", skipped)
	}
	if s.Unknown() > 0 {
		fmt.Fprintf(os.Stderr, "  (%d incomplete trials excluded from rates)\n", s.Unknown())
	}

	// Reference trials from the leaderboard snapshot.
	cache := &leaderboard.Cache{
		Dir:        cfg.Cache.Dir,
		Repo:       cfg.Benchmark.LeaderboardRepo,
		StaleAfter: time.Duration(cfg.Cache.StaleAfterHrs) * time.Hour,
		Logger:     logger,
	}
	repoPath, err := cache.Ensure(ctx, analyzeRefresh)
	if err != nil {
		return err
	}
	entries, err := leaderboard.ParseSubmissions(repoPath, "terminal-bench", cfg.Benchmark.DatasetVersion, cfg.Benchmark.TargetAgent)
	if err != nil {
		return err
	}
	for _, e := range entries {
		s.Add(store.Trial{TaskID: e.Record.TaskName, Outcome: e.Record.Outcome, AgentKey: e.AgentKey})
	}
	fmt.Fprintf(os.Stderr, "Found %d results from other agents\n", len(entries))

	if s.Len() == 0 {
		return fmt.Errorf("no results to analyze")
	}

	res := rank.Find(s, rank.Options{
		TargetPrefix: cfg.Benchmark.TargetAgent + store.KeySep,
		ModelFilter:  analyzeModel,
		CohortSize:   analyzeTopAgents,
	})

	if len(res.TargetAgents) == 0 {
		fmt.Fprintln(os.Stderr, "Warning: no target agents found in results")
	}
	if len(res.Cohort) == 0 {
		fmt.Fprintln(os.Stderr, "Warning: no reference agents found")
	}
	printCohort(res)

	if analyzeJSON {
		opps := res.Opportunities
		if analyzeTop < len(opps) {
			opps = opps[:analyzeTop]
		}
		if opps == nil {
			opps = []rank.Opportunity{}
		}
		data, err := json.MarshalIndent(opps, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling opportunities: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printOpportunities(res.Opportunities, analyzeTop)
	return nil
}

func targetAssigner(targetAgent string) func(result.TrialRecord) (string, bool) {
	return func(rec result.TrialRecord) (string, bool) {
		dir := filepath.Dir(rec.Path)
		if model, ok := submission.ModelFromConfig(filepath.Join(dir, "config.json")); ok {
			return store.Key(targetAgent, model), true
		}
		if model, ok := modelFromArtifactPath(rec.Path, cfg.Benchmark.ArtifactPrefix); ok {
			return store.Key(targetAgent, model), true
		}
		return "", false
	}
}

// modelFromArtifactPath recovers the model from an artifact directory name
// like terminal-bench-results-anthropic-claude-opus-4-5 on the trial's path.
func modelFromArtifactPath(path, prefix string) (string, bool) {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if strings.HasPrefix(part, prefix+"-") {
			return strings.TrimPrefix(part, prefix+"-"), true
		}
	}
	return "", false
}

func printCohort(res rank.Result) {
	if len(res.TargetAgents) == 0 || len(res.Cohort) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "\nAnalyzing target agents: %s\n", strings.Join(res.TargetAgents, ", "))
	fmt.Fprintf(os.Stderr, "Comparing against top %d agents:\n", len(res.Cohort))
	for i, agent := range res.Cohort {
		if i >= 5 {
			fmt.Fprintf(os.Stderr, "  ... and %d more\n", len(res.Cohort)-5)
			break
		}
		st := res.Stats[agent]
		fmt.Fprintf(os.Stderr, "  - %s: %.1f%% (%d/%d)\n", agent, st.PassRate()*100, st.NPassed, st.NTasks)
	}
}

func printOpportunities(opps []rank.Opportunity, top int) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("OPTIMIZATION OPPORTUNITIES (sorted by failure-rate ratio)")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%-40s %10s %11s %10s %-20s\n", "Task ID", "Target%", "Avg Ref%", "Ratio", "Agent")
	fmt.Println(strings.Repeat("-", 80))

	for i, o := range opps {
		if i >= top {
			break
		}
		fmt.Printf("%-40s %9.1f%% %10.1f%% %10.2f %-20s\n",
			o.TaskID,
			o.TargetFailRate*100,
			o.ReferenceFailRate*100,
			o.Ratio,
			o.TargetAgent)
	}
	if len(opps) > top {
		fmt.Printf("\n... and %d more tasks\n", len(opps)-top)
	}

	if len(opps) == 0 {
		fmt.Println("\nNo opportunities found.")
		return
	}

	high, medium := 0, 0
	for _, o := range opps {
		switch {
		case o.Ratio > 2.0:
			high++
		case o.Ratio > 1.0:
			medium++
		}
	}
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Total tasks with target failures: %d\n", len(opps))
	fmt.Printf("  High priority (ratio > 2.0):          %d\n", high)
	fmt.Printf("  Medium priority (1.0 < ratio <= 2.0): %d\n", medium)
}

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/muxbench/tbench/internal/fetch"
)

// latestCompletedRun returns the newest run that actually finished,
// skipping in-progress ones.
func latestCompletedRun(ctx context.Context) (fetch.Run, error) {
	runs, err := newFetcher().ListRuns(ctx, 5, "")
	if err != nil {
		return fetch.Run{}, err
	}
	for _, run := range runs {
		if run.Completed() {
			return run, nil
		}
	}
	return fetch.Run{}, fmt.Errorf("no completed runs found")
}

// runCacheDir is where a run's downloaded artifacts live.
func runCacheDir(runID int64) string {
	return filepath.Join(cfg.Cache.Dir, "runs", fmt.Sprint(runID))
}

// ensureRunDownloaded downloads a run's result artifacts into the cache,
// reusing any previous download. includeSmokeTest keeps the smoke-test
// model's artifact (wanted for log inspection, not for submissions);
// models, when non-empty, restricts the download to those model ids.
func ensureRunDownloaded(ctx context.Context, runID int64, includeSmokeTest bool, models []string) (string, error) {
	dir := runCacheDir(runID)
	if _, err := os.Stat(dir); err == nil {
		logger.Info("using cached run data", "dir", dir)
		return dir, nil
	}
	if err := downloadRun(ctx, runID, dir, includeSmokeTest, models); err != nil {
		return "", err
	}
	return dir, nil
}

// downloadRun fetches a run's result artifacts into dir.
func downloadRun(ctx context.Context, runID int64, dir string, includeSmokeTest bool, models []string) error {
	f := newFetcher()

	artifacts, err := f.ListArtifacts(ctx, runID)
	if err != nil {
		return err
	}
	if !includeSmokeTest {
		artifacts = fetch.ExcludeModel(artifacts, cfg.Benchmark.SmokeTestModel)
	}
	artifacts = fetch.MatchModels(artifacts, models)
	if len(artifacts) == 0 {
		return fmt.Errorf("no matching artifacts found for run %d", runID)
	}

	names := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		names = append(names, a.Name)
	}
	logger.Info("downloading artifacts", "run", runID, "count", len(names), "dir", dir)
	return f.Download(ctx, runID, dir, names)
}

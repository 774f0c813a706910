// Package leaderboard maintains a local snapshot of the community
// leaderboard dataset and parses its submission trees into normalized
// trial records.
package leaderboard

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/muxbench/tbench/internal/result"
	"github.com/muxbench/tbench/internal/store"
)

// markerFile records when the snapshot was last synced.
const markerFile = ".last_download"

// Cache manages a git clone of the leaderboard dataset. Cloning via git
// avoids dataset-API rate limits; submissions span many commits, so the
// clone is full, not shallow.
type Cache struct {
	Dir        string // parent directory for the clone
	Repo       string // dataset id, e.g. "alexgshaw/terminal-bench-2-leaderboard"
	BaseURL    string // defaults to huggingface datasets
	StaleAfter time.Duration
	Logger     *slog.Logger
}

// Path returns where the snapshot lives (whether or not it exists yet).
func (c *Cache) Path() string {
	base := filepath.Base(c.Repo)
	return filepath.Join(c.Dir, base)
}

func (c *Cache) url() string {
	base := c.BaseURL
	if base == "" {
		base = "https://huggingface.co/datasets"
	}
	return base + "/" + c.Repo
}

// fresh reports whether the snapshot is recent enough to skip syncing.
func (c *Cache) fresh() (bool, time.Duration) {
	info, err := os.Stat(filepath.Join(c.Path(), markerFile))
	if err != nil {
		return false, 0
	}
	age := time.Since(info.ModTime())
	return age < c.StaleAfter, age
}

// Ensure makes the snapshot available and returns its path. A fresh
// snapshot is reused unless refresh forces a sync. A failed sync over an
// existing clone degrades to the cached data with a warning; a failed
// initial clone is fatal.
func (c *Cache) Ensure(ctx context.Context, refresh bool) (string, error) {
	repoPath := c.Path()

	if _, err := os.Stat(repoPath); err == nil && !refresh {
		if ok, age := c.fresh(); ok {
			c.Logger.Info("using cached leaderboard data", "age", age.Round(time.Minute))
			return repoPath, nil
		}
	}

	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}

	var cmd *exec.Cmd
	if _, err := os.Stat(repoPath); err == nil {
		c.Logger.Info("updating leaderboard data", "url", c.url())
		cmd = exec.CommandContext(ctx, "git", "pull", "--ff-only")
		cmd.Dir = repoPath
	} else {
		c.Logger.Info("cloning leaderboard data", "url", c.url())
		cmd = exec.CommandContext(ctx, "git", "clone", c.url(), repoPath)
	}

	if out, err := cmd.CombinedOutput(); err != nil {
		if _, statErr := os.Stat(repoPath); statErr == nil {
			c.Logger.Warn("leaderboard sync failed, using cached data",
				"error", err, "output", strings.TrimSpace(string(out)))
			return repoPath, nil
		}
		return "", fmt.Errorf("cloning leaderboard: %w (%s)", err, strings.TrimSpace(string(out)))
	}

	if err := touch(filepath.Join(repoPath, markerFile)); err != nil {
		c.Logger.Warn("could not write snapshot marker", "error", err)
	}
	return repoPath, nil
}

func touch(path string) error {
	now := time.Now()
	if err := os.Chtimes(path, now, now); err == nil {
		return nil
	}
	return os.WriteFile(path, nil, 0644)
}

// Entry is one community trial plus the agent key it belongs to.
type Entry struct {
	AgentKey string
	Record   result.TrialRecord
}

// ParseSubmissions walks a snapshot's submission tree for one benchmark
// version and returns every trial-level result, keyed by the agent
// identity encoded in the submission folder name (<Agent>__<Model>).
// Agents whose name matches excludeAgent (case-insensitive) are skipped;
// the analysis target comes from its own runs, not the leaderboard.
func ParseSubmissions(repoPath, benchmark, version, excludeAgent string) ([]Entry, error) {
	submissionsDir := filepath.Join(repoPath, "submissions", benchmark, version)
	agentDirs, err := os.ReadDir(submissionsDir)
	if err != nil {
		return nil, fmt.Errorf("no submissions found at %s: %w", submissionsDir, err)
	}

	var entries []Entry
	for _, agentDir := range agentDirs {
		if !agentDir.IsDir() {
			continue
		}
		agentName, _ := store.SplitKey(agentDir.Name())
		if excludeAgent != "" && strings.EqualFold(agentName, excludeAgent) {
			continue
		}

		root := filepath.Join(submissionsDir, agentDir.Name())
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || d.Name() != "result.json" {
				return nil
			}
			// Job-level result.json sits two levels below the agent dir;
			// trial-level results are at least three.
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if len(strings.Split(rel, string(filepath.Separator))) < 3 {
				return nil
			}
			rec, err := result.ReadRecord(path)
			if err != nil {
				return nil // partial or corrupt trial: skip, not fatal
			}
			entries = append(entries, Entry{AgentKey: agentDir.Name(), Record: rec})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}

	return entries, nil
}

// Package fetch is the boundary to the external artifact store. It lists
// benchmark runs and downloads their result artifacts via the gh CLI; it
// implements no transport, auth, or retry of its own.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Run is one CI run that produced benchmark artifacts.
type Run struct {
	ID           int64  `json:"databaseId"`
	Status       string `json:"status"`
	Conclusion   string `json:"conclusion"`
	CreatedAt    string `json:"createdAt"`
	DisplayTitle string `json:"displayTitle"`
}

// Date returns the run's creation date (YYYY-MM-DD).
func (r Run) Date() string {
	if len(r.CreatedAt) >= 10 {
		return r.CreatedAt[:10]
	}
	return r.CreatedAt
}

// Completed reports whether the run finished, successfully or not.
func (r Run) Completed() bool {
	return r.Conclusion == "success" || r.Conclusion == "failure"
}

// Artifact is one downloadable artifact attached to a run.
type Artifact struct {
	Name        string `json:"name"`
	ID          int64  `json:"id"`
	SizeInBytes int64  `json:"size_in_bytes"`
}

// Fetcher lists available runs and fetches their artifacts into local
// directories. Consumers depend on this interface so tests can substitute
// already-materialized trees.
type Fetcher interface {
	ListRuns(ctx context.Context, limit int, status string) ([]Run, error)
	ListArtifacts(ctx context.Context, runID int64) ([]Artifact, error)
	Download(ctx context.Context, runID int64, dir string, names []string) error
}

// GHClient implements Fetcher with the gh CLI.
type GHClient struct {
	Repo           string // e.g. "coder/mux"
	Workflow       string // workflow file producing nightly runs
	ArtifactPrefix string // only artifacts with this prefix are benchmark results
	Logger         *slog.Logger
}

func (g *GHClient) run(ctx context.Context, args ...string) ([]byte, error) {
	g.Logger.Debug("running gh", "args", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, "gh", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("gh %s: %w (%s)", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// ListRuns returns recent runs of the configured workflow, newest first.
func (g *GHClient) ListRuns(ctx context.Context, limit int, status string) ([]Run, error) {
	args := []string{
		"run", "list",
		"--repo=" + g.Repo,
		"--workflow=" + g.Workflow,
		fmt.Sprintf("--limit=%d", limit),
		"--json=databaseId,status,conclusion,createdAt,displayTitle",
	}
	if status != "" {
		args = append(args, "--status="+status)
	}
	out, err := g.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	var runs []Run
	if err := json.Unmarshal(out, &runs); err != nil {
		return nil, fmt.Errorf("parsing run list: %w", err)
	}
	return runs, nil
}

// ListArtifacts returns the benchmark result artifacts of a run, filtered
// to the configured name prefix.
func (g *GHClient) ListArtifacts(ctx context.Context, runID int64) ([]Artifact, error) {
	out, err := g.run(ctx, "api", fmt.Sprintf("repos/%s/actions/runs/%d/artifacts", g.Repo, runID))
	if err != nil {
		return nil, err
	}
	var resp struct {
		Artifacts []Artifact `json:"artifacts"`
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("parsing artifact list: %w", err)
	}
	var artifacts []Artifact
	for _, a := range resp.Artifacts {
		if strings.HasPrefix(a.Name, g.ArtifactPrefix) {
			artifacts = append(artifacts, a)
		}
	}
	return artifacts, nil
}

// Download fetches the named artifacts (or all of the run's artifacts when
// names is empty) into dir.
func (g *GHClient) Download(ctx context.Context, runID int64, dir string, names []string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}
	args := []string{
		"run", "download", fmt.Sprintf("%d", runID),
		"--repo=" + g.Repo,
		"--dir=" + dir,
	}
	for _, name := range names {
		args = append(args, "--name", name)
	}
	if _, err := g.run(ctx, args...); err != nil {
		return fmt.Errorf("downloading artifacts for run %d: %w", runID, err)
	}
	return nil
}

// ExcludeModel filters out artifacts whose name embeds the given model id
// (slashes folded to dashes, the artifact naming convention). Used to drop
// the smoke-test model from submissions by default.
func ExcludeModel(artifacts []Artifact, model string) []Artifact {
	if model == "" {
		return artifacts
	}
	pattern := strings.ReplaceAll(model, "/", "-")
	var out []Artifact
	for _, a := range artifacts {
		if strings.Contains(a.Name, pattern) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// MatchModels keeps artifacts matching any of the given model ids. An
// empty filter keeps everything.
func MatchModels(artifacts []Artifact, models []string) []Artifact {
	if len(models) == 0 {
		return artifacts
	}
	var out []Artifact
	for _, a := range artifacts {
		for _, model := range models {
			if strings.Contains(a.Name, strings.ReplaceAll(model, "/", "-")) {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

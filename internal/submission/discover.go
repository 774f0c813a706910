// Package submission merges job-folder trees from independently downloaded
// benchmark runs into one leaderboard submission bundle, grouped by agent
// and model, without losing trials or job-level provenance.
package submission

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/muxbench/tbench/internal/result"
)

// JobFolder is one benchmark run's output directory, owning trial subfolders.
type JobFolder struct {
	Path string // absolute or caller-relative path to the job directory
	Name string // job identity, typically a YYYY-MM-DD__HH-MM-SS timestamp
}

// detectRule is one format-detection predicate paired with its normalizer.
// Rules are evaluated in priority order; the first match wins.
type detectRule struct {
	name   string
	detect func(root string) ([]JobFolder, bool)
}

// detectRules recognizes the layouts job folders arrive in:
//  1. the root itself is a job folder (extracted tarball, raw job dir)
//  2. the root has a jobs/ child whose children are jobs
//  3. the root holds per-artifact subdirectories, each with a jobs/ child
var detectRules = []detectRule{
	{"job-folder-root", detectSelf},
	{"jobs-child", detectJobsChild},
	{"per-artifact", detectPerArtifact},
}

// DiscoverJobFolders normalizes a source root into its job folders. A root
// matching no rule yields an error naming the root, never a silent empty
// result.
func DiscoverJobFolders(root string) ([]JobFolder, error) {
	for _, rule := range detectRules {
		if jobs, ok := rule.detect(root); ok {
			return jobs, nil
		}
	}
	return nil, fmt.Errorf("no job folders found under %s", root)
}

func detectSelf(root string) ([]JobFolder, bool) {
	if !isJobFolder(root) {
		return nil, false
	}
	return []JobFolder{{Path: root, Name: filepath.Base(root)}}, true
}

func detectJobsChild(root string) ([]JobFolder, bool) {
	jobs := collectJobs(filepath.Join(root, "jobs"))
	return jobs, len(jobs) > 0
}

func detectPerArtifact(root string) ([]JobFolder, bool) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, false
	}
	var jobs []JobFolder
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		jobs = append(jobs, collectJobs(filepath.Join(root, entry.Name(), "jobs"))...)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Path < jobs[j].Path })
	return jobs, len(jobs) > 0
}

func collectJobs(jobsDir string) []JobFolder {
	entries, err := os.ReadDir(jobsDir)
	if err != nil {
		return nil
	}
	var jobs []JobFolder
	for _, entry := range entries {
		if entry.IsDir() {
			jobs = append(jobs, JobFolder{
				Path: filepath.Join(jobsDir, entry.Name()),
				Name: entry.Name(),
			})
		}
	}
	return jobs
}

// isJobFolder reports whether path holds trial subfolders or a job-level
// config descriptor.
func isJobFolder(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	if _, err := os.Stat(filepath.Join(path, "config.json")); err == nil {
		return true
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if !entry.IsDir() || !strings.Contains(entry.Name(), result.TaskSep) {
			continue
		}
		if _, err := os.Stat(filepath.Join(path, entry.Name(), "result.json")); err == nil {
			return true
		}
	}
	return false
}

// ModelFromConfig extracts the model identity from a trial's own config
// descriptor. A missing or malformed descriptor yields "", false; the
// caller decides how loudly to report that.
func ModelFromConfig(configPath string) (string, bool) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", false
	}
	var cfg struct {
		Agent struct {
			ModelName string `json:"model_name"`
		} `json:"agent"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return "", false
	}
	if cfg.Agent.ModelName == "" {
		return "", false
	}
	return cfg.Agent.ModelName, true
}

package submission

import (
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/muxbench/tbench/internal/config"
	"github.com/muxbench/tbench/internal/result"
)

// Merger plans and executes submission merges. All fields are set at
// construction; nothing is read from ambient process state.
type Merger struct {
	Benchmark      string   // benchmark path segment, e.g. "terminal-bench"
	DatasetVersion string   // e.g. "2.0"
	AgentName      string   // submission agent, e.g. "Mux"
	Exclude        []string // base-name glob patterns never copied
	ModelMeta      func(id string) (config.ModelMetadata, bool)
	Metadata       config.AgentMetadata
	Logger         *slog.Logger
}

// TrialCopy maps one source trial folder to its destination name inside a
// job directory. DestName differs from the source base name only on
// collision.
type TrialCopy struct {
	Src      string
	DestName string
}

// JobPlan is one job identity inside an agent group: its trial copies plus
// the source job whose config/result metadata carries through.
type JobPlan struct {
	Name     string
	MetaSrc  string // job folder providing job-level config.json/result.json
	Trials   []TrialCopy
}

// AgentPlan is everything destined for one agent__model submission folder.
type AgentPlan struct {
	Model     string // raw model id, e.g. anthropic/claude-opus-4-5
	FolderName string
	Jobs      map[string]*JobPlan
}

// Plan is the full in-memory merge mapping, resolved before any I/O.
type Plan struct {
	Agents   map[string]*AgentPlan // keyed by submission folder name
	Skipped  int                   // trials lacking a result descriptor
	Warnings []string
}

// TrialCount returns the total number of trials across the plan.
func (p *Plan) TrialCount() int {
	n := 0
	for _, a := range p.Agents {
		for _, j := range a.Jobs {
			n += len(j.Trials)
		}
	}
	return n
}

// BuildPlan resolves every trial under every source root into a
// collision-free destination mapping. Sources are processed in order, so
// the first writer always keeps its natural name. modelsFilter, when
// non-empty, restricts the plan to those model ids.
func (m *Merger) BuildPlan(sources []string, modelsFilter []string) (*Plan, error) {
	plan := &Plan{Agents: make(map[string]*AgentPlan)}

	keep := make(map[string]bool, len(modelsFilter))
	for _, model := range modelsFilter {
		keep[model] = true
	}

	var jobs []JobFolder
	for _, root := range sources {
		found, err := DiscoverJobFolders(root)
		if err != nil {
			plan.Warnings = append(plan.Warnings, err.Error())
			continue
		}
		jobs = append(jobs, found...)
	}
	if len(jobs) == 0 {
		return plan, fmt.Errorf("no job folders found in %d source(s)", len(sources))
	}

	for _, job := range jobs {
		entries, err := os.ReadDir(job.Path)
		if err != nil {
			return nil, fmt.Errorf("reading job folder %s: %w", job.Path, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			trialPath := filepath.Join(job.Path, entry.Name())
			if _, err := os.Stat(filepath.Join(trialPath, "result.json")); err != nil {
				plan.Skipped++
				continue
			}

			// Agent identity comes from the trial's own config, never
			// from the job or source.
			model, ok := ModelFromConfig(filepath.Join(trialPath, "config.json"))
			if !ok {
				plan.Warnings = append(plan.Warnings,
					fmt.Sprintf("could not determine model for %s", entry.Name()))
				continue
			}
			if len(keep) > 0 && !keep[model] {
				continue
			}

			m.addTrial(plan, job, model, trialPath, entry.Name())
		}
	}

	return plan, nil
}

func (m *Merger) addTrial(plan *Plan, job JobFolder, model, trialPath, trialName string) {
	meta, known := m.ModelMeta(model)
	if !known && m.Logger != nil {
		m.Logger.Warn("unknown model, using derived metadata", "model", model)
	}
	folder := fmt.Sprintf("%s%s%s", m.AgentName, result.TaskSep, meta.FolderName)

	agent := plan.Agents[folder]
	if agent == nil {
		agent = &AgentPlan{Model: model, FolderName: folder, Jobs: make(map[string]*JobPlan)}
		plan.Agents[folder] = agent
	}

	jp := agent.Jobs[job.Name]
	if jp == nil {
		jp = &JobPlan{Name: job.Name, MetaSrc: job.Path}
		agent.Jobs[job.Name] = jp
	}

	dest := trialName
	for _, existing := range jp.Trials {
		if existing.DestName != dest {
			continue
		}
		if existing.Src == trialPath {
			// Same trial seen again; re-merging identical inputs no-ops.
			return
		}
		// Genuine collision: suffix the second writer with a stable
		// digest of its source path so repeated merges reproduce the
		// same name.
		dest = fmt.Sprintf("%s%sdup-%s", trialName, result.TaskSep, pathDigest(trialPath))
	}
	jp.Trials = append(jp.Trials, TrialCopy{Src: trialPath, DestName: dest})
}

// pathDigest returns a short stable digest of a source path.
func pathDigest(path string) string {
	sum := blake3.Sum256([]byte(path))
	return hex.EncodeToString(sum[:4])
}

// Execute materializes a plan under outputDir. Sources are never mutated;
// the destination is a fresh tree at
// <outputDir>/submissions/<benchmark>/<version>/<Agent__Model>/.
// Returns the submission directory per agent folder name.
func (m *Merger) Execute(plan *Plan, outputDir string) (map[string]string, error) {
	out := make(map[string]string, len(plan.Agents))

	folders := make([]string, 0, len(plan.Agents))
	for folder := range plan.Agents {
		folders = append(folders, folder)
	}
	sort.Strings(folders)

	for _, folder := range folders {
		agent := plan.Agents[folder]
		submissionDir := filepath.Join(outputDir, "submissions", m.Benchmark, m.DatasetVersion, folder)
		if err := os.MkdirAll(submissionDir, 0755); err != nil {
			return nil, fmt.Errorf("creating submission directory: %w", err)
		}

		if err := m.writeMetadata(submissionDir, agent.Model); err != nil {
			return nil, err
		}

		jobNames := make([]string, 0, len(agent.Jobs))
		for name := range agent.Jobs {
			jobNames = append(jobNames, name)
		}
		sort.Strings(jobNames)

		for _, name := range jobNames {
			jp := agent.Jobs[name]
			jobDir := filepath.Join(submissionDir, name)
			if err := os.MkdirAll(jobDir, 0755); err != nil {
				return nil, fmt.Errorf("creating job directory: %w", err)
			}

			// Job-level metadata carries through so downstream pass@k
			// tooling can tell N one-attempt runs from one N-attempt run.
			for _, filename := range []string{"config.json", "result.json"} {
				src := filepath.Join(jp.MetaSrc, filename)
				if _, err := os.Stat(src); err != nil {
					continue
				}
				if err := copyFile(src, filepath.Join(jobDir, filename)); err != nil {
					return nil, err
				}
			}

			for _, tc := range jp.Trials {
				if err := m.copyTrialTree(tc.Src, filepath.Join(jobDir, tc.DestName)); err != nil {
					return nil, err
				}
			}
		}

		if m.Logger != nil {
			m.Logger.Info("submission prepared", "model", agent.Model, "jobs", len(agent.Jobs))
		}
		out[folder] = submissionDir
	}

	return out, nil
}

// copyTrialTree copies a trial folder into dest, dropping files matching
// the exclusion patterns. An existing dest is replaced so re-merges
// deterministically overwrite rather than duplicate.
func (m *Merger) copyTrialTree(src, dest string) error {
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("clearing %s: %w", dest, err)
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if m.excluded(d.Name()) {
			return nil
		}
		return copyFile(path, target)
	})
}

func (m *Merger) excluded(name string) bool {
	for _, pattern := range m.Exclude {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copying to %s: %w", dest, err)
	}
	return out.Close()
}

package submission

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/muxbench/tbench/internal/config"
)

func testMerger() *Merger {
	cfg := config.Default
	return &Merger{
		Benchmark:      "terminal-bench",
		DatasetVersion: "2.0",
		AgentName:      "Mux",
		Exclude:        []string{"mux-app.tar.gz", "*.log"},
		ModelMeta:      cfg.ModelMeta,
		Metadata:       cfg.Agent,
	}
}

// sourceWithJob builds <root>/jobs/<jobName> holding the given trials.
func sourceWithJob(t *testing.T, jobName string, trials map[string]string) string {
	t.Helper()
	root := t.TempDir()
	jobDir := filepath.Join(root, "jobs", jobName)
	writeFile(t, filepath.Join(jobDir, "config.json"), `{"n_attempts": 1}`)
	writeFile(t, filepath.Join(jobDir, "result.json"), `{"n_trials": 1}`)
	for trial, model := range trials {
		writeTrial(t, jobDir, trial, model)
	}
	return root
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestMergeDisjointSources(t *testing.T) {
	t.Parallel()

	model := "anthropic/claude-opus-4-5"
	src1 := sourceWithJob(t, "2026-02-01__00-15-05", map[string]string{"task-a__H1": model})
	src2 := sourceWithJob(t, "2026-02-02__00-15-05", map[string]string{"task-b__H2": model})

	m := testMerger()
	plan, err := m.BuildPlan([]string{src1, src2}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if plan.TrialCount() != 2 {
		t.Fatalf("trial count = %d, want 2", plan.TrialCount())
	}

	out := t.TempDir()
	dirs, err := m.Execute(plan, out)
	if err != nil {
		t.Fatal(err)
	}
	subDir, ok := dirs["Mux__Claude-Opus-4.5"]
	if !ok {
		t.Fatalf("submission dirs = %v", dirs)
	}

	// Two independent runs surface as two job-level subdirectories.
	names := listDir(t, subDir)
	want := []string{"2026-02-01__00-15-05", "2026-02-02__00-15-05", "metadata.yaml"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("submission contents = %v, want %v", names, want)
	}

	// Job-level metadata carried through.
	for _, job := range want[:2] {
		if _, err := os.Stat(filepath.Join(subDir, job, "config.json")); err != nil {
			t.Fatalf("job-level config.json missing in %s", job)
		}
		if _, err := os.Stat(filepath.Join(subDir, job, "result.json")); err != nil {
			t.Fatalf("job-level result.json missing in %s", job)
		}
	}

	if _, err := os.Stat(filepath.Join(subDir, "2026-02-01__00-15-05", "task-a__H1", "result.json")); err != nil {
		t.Fatal("trial not copied")
	}
}

func TestMergeGroupsByModel(t *testing.T) {
	t.Parallel()

	src := sourceWithJob(t, "2026-02-01__00-15-05", map[string]string{
		"task-a__H1": "anthropic/claude-opus-4-5",
		"task-b__H2": "openai/gpt-5.2",
	})

	m := testMerger()
	plan, err := m.BuildPlan([]string{src}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Agents) != 2 {
		t.Fatalf("agent groups = %d, want 2", len(plan.Agents))
	}

	// Models filter restricts the plan.
	filtered, err := m.BuildPlan([]string{src}, []string{"openai/gpt-5.2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered.Agents) != 1 {
		t.Fatalf("filtered agent groups = %d, want 1", len(filtered.Agents))
	}
	if _, ok := filtered.Agents["Mux__GPT-5.2"]; !ok {
		t.Fatalf("filtered agents = %v", filtered.Agents)
	}
}

func TestMergeCollisionIsDeterministic(t *testing.T) {
	t.Parallel()

	model := "anthropic/claude-opus-4-5"
	// Same job identity and trial name in both sources.
	src1 := sourceWithJob(t, "2026-02-01__00-15-05", map[string]string{"task-a__H1": model})
	src2 := sourceWithJob(t, "2026-02-01__00-15-05", map[string]string{"task-a__H1": model})

	m := testMerger()

	var runs [][]string
	for i := 0; i < 2; i++ {
		plan, err := m.BuildPlan([]string{src1, src2}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if plan.TrialCount() != 2 {
			t.Fatalf("collision dropped a trial: count = %d", plan.TrialCount())
		}
		out := t.TempDir()
		dirs, err := m.Execute(plan, out)
		if err != nil {
			t.Fatal(err)
		}
		jobDir := filepath.Join(dirs["Mux__Claude-Opus-4.5"], "2026-02-01__00-15-05")
		var trials []string
		for _, name := range listDir(t, jobDir) {
			if strings.HasPrefix(name, "task-a__") {
				trials = append(trials, name)
			}
		}
		runs = append(runs, trials)
	}

	if len(runs[0]) != 2 {
		t.Fatalf("trial folders = %v, want 2 distinct", runs[0])
	}
	if runs[0][0] == runs[0][1] {
		t.Fatalf("collision not disambiguated: %v", runs[0])
	}
	if strings.Join(runs[0], ",") != strings.Join(runs[1], ",") {
		t.Fatalf("disambiguation not reproducible: %v vs %v", runs[0], runs[1])
	}
	// The second writer carries the suffix; the first keeps its name.
	if runs[0][0] != "task-a__H1" {
		t.Fatalf("first writer renamed: %v", runs[0])
	}
	if !strings.HasPrefix(runs[0][1], "task-a__H1__dup-") {
		t.Fatalf("unexpected suffix scheme: %q", runs[0][1])
	}
}

func TestMergeSameSourceTwiceNoOps(t *testing.T) {
	t.Parallel()

	model := "anthropic/claude-opus-4-5"
	src := sourceWithJob(t, "2026-02-01__00-15-05", map[string]string{"task-a__H1": model})

	m := testMerger()
	plan, err := m.BuildPlan([]string{src, src}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if plan.TrialCount() != 1 {
		t.Fatalf("identical input listed twice duplicated trials: %d", plan.TrialCount())
	}
}

func TestMergeExcludesPayloadFiles(t *testing.T) {
	t.Parallel()

	model := "anthropic/claude-opus-4-5"
	src := sourceWithJob(t, "2026-02-01__00-15-05", map[string]string{"task-a__H1": model})
	trialDir := filepath.Join(src, "jobs", "2026-02-01__00-15-05", "task-a__H1")
	writeFile(t, filepath.Join(trialDir, "mux-app.tar.gz"), "binary")
	writeFile(t, filepath.Join(trialDir, "agent", "command-0", "stdout.log"), "noise")
	writeFile(t, filepath.Join(trialDir, "agent", "command-0", "command.txt"), "ls")

	m := testMerger()
	plan, err := m.BuildPlan([]string{src}, nil)
	if err != nil {
		t.Fatal(err)
	}
	out := t.TempDir()
	dirs, err := m.Execute(plan, out)
	if err != nil {
		t.Fatal(err)
	}

	destTrial := filepath.Join(dirs["Mux__Claude-Opus-4.5"], "2026-02-01__00-15-05", "task-a__H1")
	if _, err := os.Stat(filepath.Join(destTrial, "mux-app.tar.gz")); err == nil {
		t.Fatal("excluded binary present in output")
	}
	if _, err := os.Stat(filepath.Join(destTrial, "agent", "command-0", "stdout.log")); err == nil {
		t.Fatal("excluded log present in output")
	}
	if _, err := os.Stat(filepath.Join(destTrial, "agent", "command-0", "command.txt")); err != nil {
		t.Fatal("non-excluded file missing from output")
	}
}

func TestMergeSkipsAndWarns(t *testing.T) {
	t.Parallel()

	src := sourceWithJob(t, "2026-02-01__00-15-05", map[string]string{
		"task-a__H1": "anthropic/claude-opus-4-5",
		"task-b__H2": "", // no config.json: unresolvable model
	})
	// Trial without a result descriptor is skipped entirely.
	if err := os.MkdirAll(filepath.Join(src, "jobs", "2026-02-01__00-15-05", "task-c__H3"), 0755); err != nil {
		t.Fatal(err)
	}

	m := testMerger()
	plan, err := m.BuildPlan([]string{src}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if plan.TrialCount() != 1 {
		t.Fatalf("trial count = %d, want 1", plan.TrialCount())
	}
	if plan.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", plan.Skipped)
	}
	if len(plan.Warnings) != 1 || !strings.Contains(plan.Warnings[0], "task-b__H2") {
		t.Fatalf("warnings = %v", plan.Warnings)
	}
}

func TestMergeNoJobFoldersAnywhere(t *testing.T) {
	t.Parallel()

	m := testMerger()
	if _, err := m.BuildPlan([]string{t.TempDir()}, nil); err == nil {
		t.Fatal("expected error when no source yields job folders")
	}
}

func TestMetadataYAMLContents(t *testing.T) {
	t.Parallel()

	model := "anthropic/claude-opus-4-5"
	src := sourceWithJob(t, "2026-02-01__00-15-05", map[string]string{"task-a__H1": model})

	m := testMerger()
	plan, err := m.BuildPlan([]string{src}, nil)
	if err != nil {
		t.Fatal(err)
	}
	dirs, err := m.Execute(plan, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dirs["Mux__Claude-Opus-4.5"], "metadata.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{
		"agent_display_name: Mux",
		"model_name: claude-opus-4-5",
		"model_provider: anthropic",
		"model_org_display_name: Anthropic",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metadata.yaml missing %q:\n%s", want, text)
		}
	}
}

func TestMergeRerunIntoSameDestination(t *testing.T) {
	t.Parallel()

	model := "anthropic/claude-opus-4-5"
	src := sourceWithJob(t, "2026-02-01__00-15-05", map[string]string{"task-a__H1": model})

	m := testMerger()
	out := t.TempDir()
	for i := 0; i < 2; i++ {
		plan, err := m.BuildPlan([]string{src}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := m.Execute(plan, out); err != nil {
			t.Fatal(err)
		}
	}

	jobDir := filepath.Join(out, "submissions", "terminal-bench", "2.0", "Mux__Claude-Opus-4.5", "2026-02-01__00-15-05")
	names := listDir(t, jobDir)
	count := 0
	for _, n := range names {
		if strings.HasPrefix(n, "task-a__") {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("re-merge duplicated trials: %v", names)
	}
}

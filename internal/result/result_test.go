package result

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  map[string]any
		want Outcome
	}{
		{
			name: "explicit_passed_true",
			raw:  map[string]any{"passed": true},
			want: OutcomePass,
		},
		{
			name: "explicit_passed_false",
			raw:  map[string]any{"passed": false},
			want: OutcomeFail,
		},
		{
			name: "passed_wins_over_score",
			raw:  map[string]any{"passed": false, "score": 1.0},
			want: OutcomeFail,
		},
		{
			name: "passed_wins_over_verifier_result",
			raw: map[string]any{
				"passed":          true,
				"verifier_result": map[string]any{"passed": false},
			},
			want: OutcomePass,
		},
		{
			name: "null_passed_falls_through_to_score",
			raw:  map[string]any{"passed": nil, "score": 0.5},
			want: OutcomePass,
		},
		{
			name: "score_positive",
			raw:  map[string]any{"score": 1.0},
			want: OutcomePass,
		},
		{
			name: "score_zero",
			raw:  map[string]any{"score": 0.0},
			want: OutcomeFail,
		},
		{
			name: "verifier_passed",
			raw:  map[string]any{"verifier_result": map[string]any{"passed": true}},
			want: OutcomePass,
		},
		{
			name: "verifier_passed_numeric_coercion",
			raw:  map[string]any{"verifier_result": map[string]any{"passed": 1.0}},
			want: OutcomePass,
		},
		{
			name: "verifier_passed_null_coerces_to_fail",
			raw:  map[string]any{"verifier_result": map[string]any{"passed": nil}},
			want: OutcomeFail,
		},
		{
			name: "verifier_reward_positive",
			raw: map[string]any{
				"verifier_result": map[string]any{
					"rewards": map[string]any{"reward": 1.0},
				},
			},
			want: OutcomePass,
		},
		{
			name: "verifier_reward_zero",
			raw: map[string]any{
				"verifier_result": map[string]any{
					"rewards": map[string]any{"reward": 0.0},
				},
			},
			want: OutcomeFail,
		},
		{
			name: "verifier_rewards_without_reward_field",
			raw: map[string]any{
				"verifier_result": map[string]any{"rewards": map[string]any{}},
			},
			want: OutcomeFail,
		},
		{
			name: "empty_record",
			raw:  map[string]any{},
			want: OutcomeUnknown,
		},
		{
			name: "unrelated_fields_only",
			raw:  map[string]any{"exception_info": "boom", "task_name": "foo"},
			want: OutcomeUnknown,
		},
		{
			name: "empty_verifier_result",
			raw:  map[string]any{"verifier_result": map[string]any{}},
			want: OutcomeUnknown,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tt.raw); got != tt.want {
				t.Fatalf("Normalize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractTaskID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"chess-best-move__ABC123", "chess-best-move"},
		{"feal-differential-cryptanalysis__X9", "feal-differential-cryptanalysis"},
		{"no-hash-task", "no-hash-task"},
		{"double__sep__HASH", "double__sep"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ExtractTaskID(tt.in); got != tt.want {
			t.Fatalf("ExtractTaskID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsJobFolderName(t *testing.T) {
	t.Parallel()

	if !IsJobFolderName("2026-02-01__00-15-05") {
		t.Fatal("timestamp folder not recognized as job folder")
	}
	if IsJobFolderName("chess-best-move__ABC123") {
		t.Fatal("trial folder misrecognized as job folder")
	}
}

func writeResultJSON(t *testing.T, dir string, raw map[string]any) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "result.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadRecordFolderNameFallback(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "chess-best-move__ABC123")
	path := writeResultJSON(t, dir, map[string]any{"passed": true})

	rec, err := ReadRecord(path)
	if err != nil {
		t.Fatal(err)
	}
	if rec.TaskName != "chess-best-move" {
		t.Fatalf("task name = %q, want %q", rec.TaskName, "chess-best-move")
	}
	if rec.TrialName != "chess-best-move__ABC123" {
		t.Fatalf("trial name = %q, want folder name", rec.TrialName)
	}
	if rec.Outcome != OutcomePass {
		t.Fatalf("outcome = %q, want pass", rec.Outcome)
	}
}

func TestReadRecordJSONFieldWins(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "folder-name__HASH")
	path := writeResultJSON(t, dir, map[string]any{
		"task_name":  "json-task",
		"trial_name": "json-task__Z1",
		"score":      1.0,
	})

	rec, err := ReadRecord(path)
	if err != nil {
		t.Fatal(err)
	}
	if rec.TaskName != "json-task" {
		t.Fatalf("task name = %q, want json field", rec.TaskName)
	}
	if rec.TrialName != "json-task__Z1" {
		t.Fatalf("trial name = %q, want json field", rec.TrialName)
	}
}

func TestLoadTree(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	job := filepath.Join(root, "jobs", "2026-02-01__00-15-05")

	// Job-level result.json must be skipped.
	writeResultJSON(t, job, map[string]any{"n_trials": 2.0})

	writeResultJSON(t, filepath.Join(job, "task-b__H1"), map[string]any{"passed": true})
	writeResultJSON(t, filepath.Join(job, "task-a__H2"), map[string]any{"passed": false})

	// Verifier-internal result.json must be skipped.
	writeResultJSON(t, filepath.Join(job, "task-a__H2", "verifier"), map[string]any{"passed": true})

	// Malformed file is skipped, not fatal.
	badDir := filepath.Join(job, "task-c__H3")
	if err := os.MkdirAll(badDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(badDir, "result.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := LoadTree(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].TaskName != "task-a" || records[1].TaskName != "task-b" {
		t.Fatalf("records not sorted by task name: %q, %q", records[0].TaskName, records[1].TaskName)
	}
	if records[0].Outcome != OutcomeFail || records[1].Outcome != OutcomePass {
		t.Fatalf("unexpected outcomes: %q, %q", records[0].Outcome, records[1].Outcome)
	}
}

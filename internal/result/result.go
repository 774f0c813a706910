// Package result normalizes raw Terminal-Bench trial results into a single
// tri-state pass/fail signal, independent of which result-schema variant
// produced them.
package result

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Outcome is the normalized status of a single trial.
type Outcome string

const (
	OutcomePass    Outcome = "pass"
	OutcomeFail    Outcome = "fail"
	OutcomeUnknown Outcome = "unknown" // still running, crashed before writing, or malformed
)

// OutcomeSymbol maps outcomes to their terminal representations.
var OutcomeSymbol = map[Outcome]string{
	OutcomePass:    "✓ PASS",
	OutcomeFail:    "✗ FAIL",
	OutcomeUnknown: "? UNKNOWN",
}

// Passed reports whether the outcome is a definite pass.
func (o Outcome) Passed() bool { return o == OutcomePass }

// Failed reports whether the outcome is a definite fail. Unknown is neither.
func (o Outcome) Failed() bool { return o == OutcomeFail }

// TaskSep separates a task name from its trial hash in folder names
// (e.g. chess-best-move__ABC123).
const TaskSep = "__"

// jobFolderPattern matches job-level folder names (YYYY-MM-DD__HH-MM-SS).
var jobFolderPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}__\d{2}-\d{2}-\d{2}$`)

// IsJobFolderName reports whether name follows the timestamp convention
// used for job-level folders.
func IsJobFolderName(name string) bool {
	return jobFolderPattern.MatchString(name)
}

// ExtractTaskID strips the trial-hash suffix from a trial folder name.
// The split is on the last occurrence of the separator; names without a
// separator are returned unchanged.
func ExtractTaskID(folderName string) string {
	if i := strings.LastIndex(folderName, TaskSep); i >= 0 {
		return folderName[:i]
	}
	return folderName
}

// Normalize extracts a tri-state outcome from a raw trial result record.
//
// Resolution order, first match wins:
//  1. explicit non-null boolean "passed"
//  2. numeric "score" > 0
//  3. nested "verifier_result": its "passed" (truthy coercion), else
//     "rewards"."reward" > 0
//
// Anything not matched is OutcomeUnknown, never guessed as pass or fail.
func Normalize(raw map[string]any) Outcome {
	if v, ok := raw["passed"]; ok && v != nil {
		if b, ok := v.(bool); ok {
			return fromBool(b)
		}
	}
	if v, ok := raw["score"]; ok {
		if n, ok := asNumber(v); ok {
			return fromBool(n > 0)
		}
	}
	if vr, ok := raw["verifier_result"].(map[string]any); ok {
		if v, ok := vr["passed"]; ok {
			return fromBool(truthy(v))
		}
		if rewards, ok := vr["rewards"].(map[string]any); ok {
			n, _ := asNumber(rewards["reward"])
			return fromBool(n > 0)
		}
	}
	return OutcomeUnknown
}

func fromBool(passed bool) Outcome {
	if passed {
		return OutcomePass
	}
	return OutcomeFail
}

// asNumber converts JSON-decoded numeric values to float64.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// truthy approximates the loose boolean coercion applied to
// verifier_result.passed across schema variants.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	default:
		if n, ok := asNumber(v); ok {
			return n != 0
		}
		return true
	}
}

// TrialRecord is one trial's result descriptor as found on disk.
type TrialRecord struct {
	Path      string // path to the result.json file
	TaskName  string // canonical task id, hash suffix stripped
	TrialName string // trial folder name, hash included
	Outcome   Outcome
	Raw       map[string]any // decoded result.json for detail inspection
}

// ReadRecord loads and normalizes a single result.json file. The trial
// folder name is the authoritative fallback for task/trial identity when
// the JSON omits those fields.
func ReadRecord(path string) (TrialRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TrialRecord{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return TrialRecord{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	trialFolder := filepath.Base(filepath.Dir(path))
	taskName := stringField(raw, "task_name")
	if taskName == "" {
		taskName = ExtractTaskID(trialFolder)
	}
	trialName := stringField(raw, "trial_name")
	if trialName == "" {
		trialName = trialFolder
	}

	return TrialRecord{
		Path:      path,
		TaskName:  taskName,
		TrialName: trialName,
		Outcome:   Normalize(raw),
		Raw:       raw,
	}, nil
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

// nonTrialParents are folder names whose result.json files describe
// something other than a trial.
var nonTrialParents = map[string]bool{
	"logs":     true,
	"output":   true,
	"verifier": true,
	"agent":    true,
}

// LoadTree finds and normalizes every trial-level result.json under root.
// Job-level descriptors (inside timestamp-named folders) and execution
// artifacts are skipped, as are unparseable files: those are partial
// trials, not errors. Records are sorted by task name.
func LoadTree(root string) ([]TrialRecord, error) {
	var records []TrialRecord
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != "result.json" {
			return nil
		}
		parent := filepath.Base(filepath.Dir(path))
		if IsJobFolderName(parent) || nonTrialParents[parent] {
			return nil
		}
		rec, err := ReadRecord(path)
		if err != nil {
			return nil
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].TaskName < records[j].TaskName
	})
	return records, nil
}

// Package inspect summarizes why a trial failed from the execution
// artifacts left in its folder.
package inspect

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/muxbench/tbench/internal/result"
)

// StderrTailLines is how many trailing stderr lines a failure summary keeps.
const StderrTailLines = 10

// MaxLineWidth truncates pathological log lines in summaries.
const MaxLineWidth = 100

// CommandLog is one agent command's captured stderr tail.
type CommandLog struct {
	Command string // command directory name, e.g. command-0
	Stderr  []string
}

// FailureDetail is everything worth showing about a failed trial.
type FailureDetail struct {
	ExceptionInfo string
	Rewards       string // verifier rewards, JSON-encoded
	Commands      []CommandLog
}

// Empty reports whether the trial left nothing to summarize.
func (d FailureDetail) Empty() bool {
	return d.ExceptionInfo == "" && d.Rewards == "" && len(d.Commands) == 0
}

// Summarize collects failure detail for a trial record: the stderr tails
// of its agent commands, any recorded exception, and the verifier rewards.
// Missing or unreadable side files yield no data, never an error.
func Summarize(rec result.TrialRecord) FailureDetail {
	var detail FailureDetail

	if info, ok := rec.Raw["exception_info"].(string); ok {
		detail.ExceptionInfo = info
	}
	if vr, ok := rec.Raw["verifier_result"].(map[string]any); ok {
		if rewards, ok := vr["rewards"]; ok {
			if data, err := json.Marshal(rewards); err == nil {
				detail.Rewards = string(data)
			}
		}
	}

	trialDir := filepath.Dir(rec.Path)
	agentDir := filepath.Join(trialDir, "agent")
	entries, err := os.ReadDir(agentDir)
	if err != nil {
		return detail
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), "command-") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		tail := stderrTail(filepath.Join(agentDir, name, "stderr.txt"))
		if len(tail) > 0 {
			detail.Commands = append(detail.Commands, CommandLog{Command: name, Stderr: tail})
		}
	}
	return detail
}

// stderrTail returns the last non-empty portion of a stderr capture,
// truncated per line.
func stderrTail(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > StderrTailLines {
		lines = lines[len(lines)-StderrTailLines:]
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if len(line) > MaxLineWidth {
			line = line[:MaxLineWidth]
		}
		out = append(out, line)
	}
	return out
}

// Format renders a failure detail as indented terminal lines.
func Format(detail FailureDetail) string {
	var sb strings.Builder
	for _, cmd := range detail.Commands {
		fmt.Fprintf(&sb, "         stderr (last %d lines, %s):\n", len(cmd.Stderr), cmd.Command)
		for _, line := range cmd.Stderr {
			fmt.Fprintf(&sb, "           %s\n", line)
		}
	}
	if detail.ExceptionInfo != "" {
		fmt.Fprintf(&sb, "         exception: %s\n", detail.ExceptionInfo)
	}
	if detail.Rewards != "" {
		fmt.Fprintf(&sb, "         verifier: %s\n", detail.Rewards)
	}
	return sb.String()
}

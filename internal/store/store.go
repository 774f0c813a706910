// Package store collects normalized trial results and computes per-agent
// aggregate statistics over them.
package store

import (
	"sort"
	"strings"

	"github.com/muxbench/tbench/internal/result"
)

// KeySep joins the agent name and model variant into a composite agent key
// (e.g. Mux__claude-sonnet@high).
const KeySep = "__"

// Key builds a composite agent key from an agent name and model variant.
func Key(agentName, modelVariant string) string {
	return agentName + KeySep + modelVariant
}

// SplitKey splits a composite agent key back into agent name and model
// variant. Keys without a separator yield an "unknown" variant.
func SplitKey(key string) (agentName, modelVariant string) {
	if i := strings.Index(key, KeySep); i >= 0 {
		return key[:i], key[i+len(KeySep):]
	}
	return key, "unknown"
}

// Trial is one agent's attempt at one task. Immutable after ingestion.
type Trial struct {
	TaskID   string
	Outcome  result.Outcome
	AgentKey string
}

// Store is an in-memory collection of normalized trials.
type Store struct {
	trials  []Trial
	unknown int // ingested records with an unknown outcome, tracked separately
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Add appends a single pre-built trial.
func (s *Store) Add(t Trial) {
	if t.Outcome == result.OutcomeUnknown {
		s.unknown++
	}
	s.trials = append(s.trials, t)
}

// Ingest builds trials from raw records. The caller supplies the agent
// identity per record, since different sources derive it differently;
// records for which assign reports no identity are skipped and counted.
func (s *Store) Ingest(records []result.TrialRecord, assign func(result.TrialRecord) (string, bool)) (skipped int) {
	for _, rec := range records {
		key, ok := assign(rec)
		if !ok {
			skipped++
			continue
		}
		s.Add(Trial{TaskID: rec.TaskName, Outcome: rec.Outcome, AgentKey: key})
	}
	return skipped
}

// Len returns the number of ingested trials.
func (s *Store) Len() int { return len(s.trials) }

// Unknown returns the number of ingested trials with an unknown outcome.
func (s *Store) Unknown() int { return s.unknown }

// Trials returns the ingested trials in ingestion order.
func (s *Store) Trials() []Trial { return s.trials }

// ByAgent groups trials by agent key.
func (s *Store) ByAgent() map[string][]Trial {
	out := make(map[string][]Trial)
	for _, t := range s.trials {
		out[t.AgentKey] = append(out[t.AgentKey], t)
	}
	return out
}

// ByTaskAgent groups trials by task id, then agent key. Only the agents in
// keep are included; a nil keep set includes everything.
func (s *Store) ByTaskAgent(keep map[string]bool) map[string]map[string][]Trial {
	out := make(map[string]map[string][]Trial)
	for _, t := range s.trials {
		if keep != nil && !keep[t.AgentKey] {
			continue
		}
		agents := out[t.TaskID]
		if agents == nil {
			agents = make(map[string][]Trial)
			out[t.TaskID] = agents
		}
		agents[t.AgentKey] = append(agents[t.AgentKey], t)
	}
	return out
}

// AgentStats aggregates all trials sharing an agent key. Recomputed fresh
// from a store snapshot; never mutated incrementally.
type AgentStats struct {
	AgentKey string
	NTasks   int // trials with a definite outcome
	NPassed  int
	NUnknown int // tracked but excluded from the rates
}

// PassRate is NPassed/NTasks, or 0 when the agent has no definite trials.
func (a AgentStats) PassRate() float64 {
	if a.NTasks == 0 {
		return 0
	}
	return float64(a.NPassed) / float64(a.NTasks)
}

// FailRate is 1 - PassRate.
func (a AgentStats) FailRate() float64 { return 1 - a.PassRate() }

// Aggregate computes stats for every agent in one pass over the store.
func (s *Store) Aggregate() map[string]AgentStats {
	stats := make(map[string]AgentStats)
	for _, t := range s.trials {
		a := stats[t.AgentKey]
		a.AgentKey = t.AgentKey
		switch t.Outcome {
		case result.OutcomePass:
			a.NTasks++
			a.NPassed++
		case result.OutcomeFail:
			a.NTasks++
		default:
			a.NUnknown++
		}
		stats[t.AgentKey] = a
	}
	return stats
}

// TopAgents returns the n best agent keys by pass rate, excluding any key
// with the given prefix (so a target agent never lands in its own reference
// cohort). Ties break on the key itself for determinism.
func TopAgents(stats map[string]AgentStats, n int, excludePrefix string) []string {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		if excludePrefix != "" && strings.HasPrefix(k, excludePrefix) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := stats[keys[i]].PassRate(), stats[keys[j]].PassRate()
		if ri != rj {
			return ri > rj
		}
		return keys[i] < keys[j]
	})
	if n < len(keys) {
		keys = keys[:n]
	}
	return keys
}

// FailRateOn computes an agent's failure rate restricted to one task's
// trials. Unknown outcomes contribute nothing. The second return is false
// when the agent has no definite trial on the task.
func FailRateOn(trials []Trial) (float64, bool) {
	total, failed := 0, 0
	for _, t := range trials {
		switch t.Outcome {
		case result.OutcomePass:
			total++
		case result.OutcomeFail:
			total++
			failed++
		}
	}
	if total == 0 {
		return 0, false
	}
	return float64(failed) / float64(total), true
}

// Package rank identifies the tasks where a target agent underperforms
// relative to the top of the leaderboard.
package rank

import (
	"sort"
	"strings"

	"github.com/muxbench/tbench/internal/store"
)

// DefaultEpsilon smooths the reference failure rate in the ratio so a task
// the cohort always passes cannot produce an unbounded ratio.
const DefaultEpsilon = 0.01

// Opportunity is one (target agent, task) pair where the target fails more
// often than the reference cohort.
type Opportunity struct {
	TaskID            string  `json:"task_id"`
	TargetFailRate    float64 `json:"target_fail_rate"`
	ReferenceFailRate float64 `json:"reference_avg_fail_rate"`
	Ratio             float64 `json:"ratio"`
	TargetAgent       string  `json:"target_agent"`
	ReferenceAgents   int     `json:"n_reference_agents"`
}

// Options controls an opportunity search.
type Options struct {
	TargetPrefix string  // agent keys starting with this are target variants
	ModelFilter  string  // optional case-insensitive substring over target keys
	CohortSize   int     // number of top non-target agents to compare against
	Epsilon      float64 // ratio smoothing constant; DefaultEpsilon when zero
}

// Result carries the ranked opportunities plus the cohort they were
// measured against.
type Result struct {
	Opportunities []Opportunity
	TargetAgents  []string
	Cohort        []string
	Stats         map[string]store.AgentStats
}

// Find ranks every task where a target agent has failures against the
// reference cohort's averaged failure rate on the same task. An empty
// target set or cohort yields an empty result, not an error.
func Find(s *store.Store, opts Options) Result {
	epsilon := opts.Epsilon
	if epsilon == 0 {
		epsilon = DefaultEpsilon
	}

	stats := s.Aggregate()
	res := Result{Stats: stats}

	for key := range stats {
		if !strings.HasPrefix(key, opts.TargetPrefix) {
			continue
		}
		if opts.ModelFilter != "" && !strings.Contains(strings.ToLower(key), strings.ToLower(opts.ModelFilter)) {
			continue
		}
		res.TargetAgents = append(res.TargetAgents, key)
	}
	sort.Strings(res.TargetAgents)
	if len(res.TargetAgents) == 0 {
		return res
	}

	res.Cohort = store.TopAgents(stats, opts.CohortSize, opts.TargetPrefix)
	if len(res.Cohort) == 0 {
		return res
	}

	relevant := make(map[string]bool, len(res.TargetAgents)+len(res.Cohort))
	for _, k := range res.TargetAgents {
		relevant[k] = true
	}
	for _, k := range res.Cohort {
		relevant[k] = true
	}
	byTask := s.ByTaskAgent(relevant)

	tasks := make([]string, 0, len(byTask))
	for task := range byTask {
		tasks = append(tasks, task)
	}
	sort.Strings(tasks)

	for _, target := range res.TargetAgents {
		for _, task := range tasks {
			agents := byTask[task]
			targetFail, ok := store.FailRateOn(agents[target])
			if !ok || targetFail == 0 {
				continue
			}

			// Unweighted mean over reference agents that actually attempted
			// the task; an absent agent contributes nothing, not a zero.
			sum, n := 0.0, 0
			for _, ref := range res.Cohort {
				if rate, ok := store.FailRateOn(agents[ref]); ok {
					sum += rate
					n++
				}
			}
			if n == 0 {
				continue
			}
			refFail := sum / float64(n)

			res.Opportunities = append(res.Opportunities, Opportunity{
				TaskID:            task,
				TargetFailRate:    targetFail,
				ReferenceFailRate: refFail,
				Ratio:             targetFail / (refFail + epsilon),
				TargetAgent:       target,
				ReferenceAgents:   n,
			})
		}
	}

	sort.SliceStable(res.Opportunities, func(i, j int) bool {
		return res.Opportunities[i].Ratio > res.Opportunities[j].Ratio
	})
	return res
}

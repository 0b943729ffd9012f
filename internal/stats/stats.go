// Package stats computes run and plan progress figures from grouped counts.
package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// Summary is the status breakdown of one run's case-runs.
type Summary struct {
	RunID    string             `json:"run_id"`
	Counts   map[string]int     `json:"counts"`
	Percents map[string]float64 `json:"percents"`
	Total    int                `json:"total"`
	Complete int                `json:"complete"`
	Failure  int                `json:"failure"`

	CompletePercent          float64 `json:"complete_percent"`
	FailurePercentInComplete float64 `json:"failure_percent_in_complete"`
	FailurePercentInTotal    float64 `json:"failure_percent_in_total"`
}

// Progress is one assignee's share of a run.
type Progress struct {
	AssigneeID string  `json:"assignee_id"`
	Total      int     `json:"total"`
	Complete   int     `json:"complete"`
	Percent    float64 `json:"percent"`
}

// Percent returns n/total as a percentage rounded to one decimal.
// A zero total yields 0.
func Percent(n, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(n)*1000/float64(total)) / 10
}

// GroupByPercent maps every count to its percentage of total.
func GroupByPercent(counts map[string]int, total int) map[string]float64 {
	out := make(map[string]float64, len(counts))
	for k, n := range counts {
		out[k] = Percent(n, total)
	}
	return out
}

// summarize fills a Summary from raw status counts. Every case-run status
// appears in Counts, with 0 for statuses that have no case-runs.
func summarize(runID string, raw map[string]int) Summary {
	s := Summary{RunID: runID, Counts: make(map[string]int, len(types.CaseRunStatuses))}
	for _, st := range types.CaseRunStatuses {
		n := raw[st]
		s.Counts[st] = n
		s.Total += n
		if types.IsCompleteStatus(st) {
			s.Complete += n
		}
		if types.IsFailureStatus(st) {
			s.Failure += n
		}
	}
	s.Percents = GroupByPercent(s.Counts, s.Total)
	s.CompletePercent = Percent(s.Complete, s.Total)
	s.FailurePercentInComplete = Percent(s.Failure, s.Complete)
	s.FailurePercentInTotal = Percent(s.Failure, s.Total)
	return s
}

// RunStatusSummary returns the status breakdown of one run.
func RunStatusSummary(q types.Querier, runID string) (Summary, error) {
	all, err := RunsStatusSummary(q, runID)
	if err != nil {
		return Summary{}, err
	}
	return all[runID], nil
}

// RunsStatusSummary returns the status breakdown of several runs, keyed by
// run ID. Counts for all runs come from a single grouped query.
func RunsStatusSummary(q types.Querier, runIDs ...string) (map[string]Summary, error) {
	counts, err := q.CaseRunStatusCounts(runIDs...)
	if err != nil {
		return nil, fmt.Errorf("summarizing runs: %w", err)
	}
	out := make(map[string]Summary, len(runIDs))
	for _, id := range runIDs {
		out[id] = summarize(id, counts[id])
	}
	return out, nil
}

// PlanCaseStatusCounts returns the number of a plan's cases in each case
// status. Every status is present.
func PlanCaseStatusCounts(q types.Querier, planID string) (map[string]int, error) {
	raw, err := q.CaseStatusCounts(planID)
	if err != nil {
		return nil, fmt.Errorf("counting plan cases: %w", err)
	}
	out := make(map[string]int, len(types.CaseStatuses))
	for _, st := range types.CaseStatuses {
		out[st] = raw[st]
	}
	return out, nil
}

// AssigneeProgress returns per-assignee totals for a run, sorted by
// assignee ID. Unassigned case-runs are reported under the empty ID.
func AssigneeProgress(q types.Querier, runID string) ([]Progress, error) {
	raw, err := q.AssigneeStatusCounts(runID)
	if err != nil {
		return nil, fmt.Errorf("computing assignee progress: %w", err)
	}
	out := make([]Progress, 0, len(raw))
	for assignee, byStatus := range raw {
		p := Progress{AssigneeID: assignee}
		for st, n := range byStatus {
			p.Total += n
			if types.IsCompleteStatus(st) {
				p.Complete += n
			}
		}
		p.Percent = Percent(p.Complete, p.Total)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssigneeID < out[j].AssigneeID })
	return out, nil
}

package tcms

import (
	"sort"

	"github.com/mesh-intelligence/nitrate/internal/stats"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// Recent is a user's current workload.
type Recent struct {
	Plans    []*types.TestPlan `json:"plans"`
	Runs     []*types.TestRun  `json:"runs"`
	CaseRuns []*types.CaseRun  `json:"case_runs"`
}

// SearchCases returns cases matching q.
func (s *Service) SearchCases(q types.CaseQuery) ([]*types.TestCase, error) {
	return s.store.SearchCases(q)
}

// SearchPlans returns plans matching q.
func (s *Service) SearchPlans(q types.PlanQuery) ([]*types.TestPlan, error) {
	return s.store.SearchPlans(q)
}

// SearchRuns returns runs matching q.
func (s *Service) SearchRuns(q types.RunQuery) ([]*types.TestRun, error) {
	return s.store.SearchRuns(q)
}

// RecentActivity returns the plans a user authored or owns with active
// plans first, the running runs they manage or default-test, and their
// assigned case-runs that are not complete.
func (s *Service) RecentActivity(userID string) (*Recent, error) {
	if err := s.exists(types.TableUsers, userID); err != nil {
		return nil, err
	}
	var out Recent

	seen := make(map[string]bool)
	for _, key := range []string{"author_id", "owner_id"} {
		plans, err := s.ListPlans(types.Filter{key: userID})
		if err != nil {
			return nil, err
		}
		for _, p := range plans {
			if !seen[p.PlanID] {
				seen[p.PlanID] = true
				out.Plans = append(out.Plans, p)
			}
		}
	}
	sort.SliceStable(out.Plans, func(i, j int) bool {
		return out.Plans[i].IsActive && !out.Plans[j].IsActive
	})

	clear(seen)
	for _, key := range []string{"manager_id", "default_tester_id"} {
		runs, err := s.ListRuns(types.Filter{key: userID})
		if err != nil {
			return nil, err
		}
		for _, r := range runs {
			if !r.IsFinished() && !seen[r.RunID] {
				seen[r.RunID] = true
				out.Runs = append(out.Runs, r)
			}
		}
	}
	sort.SliceStable(out.Runs, func(i, j int) bool {
		return out.Runs[i].StartDate.Before(out.Runs[j].StartDate)
	})

	caseRuns, err := s.ListCaseRuns(types.Filter{"assignee_id": userID})
	if err != nil {
		return nil, err
	}
	for _, cr := range caseRuns {
		if !cr.IsComplete() {
			out.CaseRuns = append(out.CaseRuns, cr)
		}
	}
	return &out, nil
}

// RunStats summarizes a run's case-run statuses.
func (s *Service) RunStats(runID string) (stats.Summary, error) {
	if err := s.exists(types.TableRuns, runID); err != nil {
		return stats.Summary{}, err
	}
	return stats.RunStatusSummary(s.store, runID)
}

// PlanRunsStats summarizes every run of a plan.
func (s *Service) PlanRunsStats(planID string) (map[string]stats.Summary, error) {
	runs, err := s.PlanRuns(planID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.RunID
	}
	return stats.RunsStatusSummary(s.store, ids...)
}

// PlanCaseStats counts a plan's cases by status.
func (s *Service) PlanCaseStats(planID string) (map[string]int, error) {
	if err := s.exists(types.TablePlans, planID); err != nil {
		return nil, err
	}
	return stats.PlanCaseStatusCounts(s.store, planID)
}

// RunAssigneeProgress reports per-assignee progress within a run.
func (s *Service) RunAssigneeProgress(runID string) ([]stats.Progress, error) {
	if err := s.exists(types.TableRuns, runID); err != nil {
		return nil, err
	}
	return stats.AssigneeProgress(s.store, runID)
}

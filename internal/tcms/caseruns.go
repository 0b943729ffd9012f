package tcms

import (
	"context"

	"github.com/mesh-intelligence/nitrate/internal/signals"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// GetCaseRun returns a case-run by ID.
func (s *Service) GetCaseRun(id string) (*types.CaseRun, error) {
	return get[types.CaseRun](s, types.TableCaseRuns, id)
}

// ListCaseRuns returns case-runs matching filter.
func (s *Service) ListCaseRuns(filter types.Filter) ([]*types.CaseRun, error) {
	return fetch[types.CaseRun](s, types.TableCaseRuns, filter)
}

// UpdateCaseRunStatus records a case-run result and re-evaluates the run's
// completion. testerID becomes the case-run's tested_by.
func (s *Service) UpdateCaseRunStatus(ctx context.Context, caseRunID, status, testerID string) (*types.CaseRun, error) {
	cr, err := s.GetCaseRun(caseRunID)
	if err != nil {
		return nil, err
	}
	prev := cr.Status
	if err := cr.SetStatus(status, testerID, s.now()); err != nil {
		return nil, err
	}
	if _, err := s.save(types.TableCaseRuns, caseRunID, cr); err != nil {
		return nil, err
	}
	if prev != status {
		s.emit(ctx, signals.CaseRunStatusChanged, types.ObjectCaseRun, caseRunID, testerID, map[string]string{
			"from":   prev,
			"status": status,
			"run_id": cr.RunID,
		})
	}
	if err := s.updateRunCompletion(ctx, cr.RunID, testerID); err != nil {
		return nil, err
	}
	return cr, nil
}

// AssignCaseRun sets a case-run's assignee. An empty assigneeID unassigns.
func (s *Service) AssignCaseRun(ctx context.Context, caseRunID, assigneeID string) (*types.CaseRun, error) {
	if assigneeID != "" {
		if err := s.exists(types.TableUsers, assigneeID); err != nil {
			return nil, err
		}
	}
	return s.updateCaseRun(caseRunID, func(cr *types.CaseRun) { cr.AssigneeID = assigneeID })
}

// UpdateCaseRunNotes replaces a case-run's notes.
func (s *Service) UpdateCaseRunNotes(ctx context.Context, caseRunID, notes string) (*types.CaseRun, error) {
	return s.updateCaseRun(caseRunID, func(cr *types.CaseRun) { cr.Notes = notes })
}

// SetCaseRunSortKey moves a case-run within its run.
func (s *Service) SetCaseRunSortKey(ctx context.Context, caseRunID string, key int) (*types.CaseRun, error) {
	return s.updateCaseRun(caseRunID, func(cr *types.CaseRun) { cr.SortKey = key })
}

func (s *Service) updateCaseRun(caseRunID string, fn func(*types.CaseRun)) (*types.CaseRun, error) {
	cr, err := s.GetCaseRun(caseRunID)
	if err != nil {
		return nil, err
	}
	fn(cr)
	if _, err := s.save(types.TableCaseRuns, caseRunID, cr); err != nil {
		return nil, err
	}
	return cr, nil
}

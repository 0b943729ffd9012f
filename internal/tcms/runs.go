package tcms

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/nitrate/internal/signals"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// NewRun describes a run to create.
type NewRun struct {
	Summary             string
	PlanID              string
	BuildID             string
	ProductVersionID    string // Defaults to the plan's version.
	ManagerID           string
	DefaultTesterID     string
	EstimatedTime       int64
	Notes               string
	AutoUpdateRunStatus bool
	CaseIDs             []string // Empty means the plan's CONFIRMED cases.
	Tags                []string
	CCIDs               []string
	EnvValueIDs         []string
}

// CloneRunOptions controls CloneRun. Empty fields keep the source's value.
type CloneRunOptions struct {
	Summary         string
	ManagerID       string
	BuildID         string
	DefaultTesterID string
}

// CreateRun creates a run with one IDLE case-run per case.
func (s *Service) CreateRun(ctx context.Context, nr NewRun) (*types.TestRun, error) {
	plan, err := s.GetPlan(nr.PlanID)
	if err != nil {
		return nil, err
	}
	if err := s.checkBuild(plan.ProductID, nr.BuildID); err != nil {
		return nil, err
	}
	if nr.ProductVersionID == "" {
		nr.ProductVersionID = plan.ProductVersionID
	} else if err := s.checkVersion(plan.ProductID, nr.ProductVersionID); err != nil {
		return nil, err
	}
	caseIDs := nr.CaseIDs
	if len(caseIDs) == 0 {
		if caseIDs, err = s.confirmedCases(nr.PlanID); err != nil {
			return nil, err
		}
	}

	if err := s.checkRunRefs(caseIDs, nr.CCIDs, nr.EnvValueIDs); err != nil {
		return nil, err
	}

	r := &types.TestRun{
		Summary:             nr.Summary,
		PlanID:              nr.PlanID,
		BuildID:             nr.BuildID,
		ProductVersionID:    nr.ProductVersionID,
		ManagerID:           nr.ManagerID,
		DefaultTesterID:     nr.DefaultTesterID,
		EstimatedTime:       nr.EstimatedTime,
		Notes:               nr.Notes,
		AutoUpdateRunStatus: nr.AutoUpdateRunStatus,
	}
	id, err := s.save(types.TableRuns, "", r)
	if err != nil {
		return nil, err
	}
	if r, err = s.populateRun(ctx, id, caseIDs, nr); err != nil {
		if rmErr := s.remove(types.TableRuns, id); rmErr != nil {
			s.logger.Error("removing partially created run", zap.String("run_id", id), zap.Error(rmErr))
		}
		return nil, err
	}
	s.emit(ctx, signals.RunCreated, types.ObjectRun, id, nr.ManagerID, map[string]string{"summary": r.Summary})
	return r, nil
}

// checkRunRefs verifies every case, CC user and environment value exists
// before a run is stored.
func (s *Service) checkRunRefs(caseIDs, ccIDs, envValueIDs []string) error {
	for _, ref := range []struct {
		table string
		ids   []string
	}{
		{types.TableCases, caseIDs},
		{types.TableUsers, ccIDs},
		{types.TableEnvValues, envValueIDs},
	} {
		for _, id := range ref.ids {
			if err := s.exists(ref.table, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// populateRun adds the case-runs, tags, CC users and environment values of
// a freshly stored run.
func (s *Service) populateRun(ctx context.Context, id string, caseIDs []string, nr NewRun) (*types.TestRun, error) {
	r, err := s.GetRun(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.addCaseRuns(r, caseIDs); err != nil {
		return nil, err
	}
	for _, name := range nr.Tags {
		if err := s.addTag(types.LinkRunTag, id, name); err != nil {
			return nil, err
		}
	}
	for _, userID := range nr.CCIDs {
		if err := s.AddRunCC(ctx, id, userID); err != nil {
			return nil, err
		}
	}
	for _, valueID := range nr.EnvValueIDs {
		if err := s.AddRunEnvValue(ctx, id, valueID); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (s *Service) checkBuild(productID, buildID string) error {
	b, err := get[types.Build](s, types.TableBuilds, buildID)
	if err != nil {
		return err
	}
	if b.ProductID != productID {
		return fmt.Errorf("build %s belongs to another product: %w", buildID, types.ErrInvalidReference)
	}
	return nil
}

func (s *Service) confirmedCases(planID string) ([]string, error) {
	cases, err := s.PlanCases(planID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, pc := range cases {
		if pc.Case.Status == types.CaseStatusConfirmed {
			ids = append(ids, pc.Case.CaseID)
		}
	}
	return ids, nil
}

// addCaseRuns creates IDLE case-runs for the cases not yet in the run. Each
// carries the case's latest text version and plan sort key, and is
// assigned to the run's default tester or else the case's.
func (s *Service) addCaseRuns(r *types.TestRun, caseIDs []string) ([]*types.CaseRun, error) {
	links, err := s.linksFrom(types.LinkPlanCase, r.PlanID)
	if err != nil {
		return nil, err
	}
	sortKeys := make(map[string]int, len(links))
	for _, l := range links {
		sortKeys[l.ToID] = l.SortKey
	}
	existing, err := s.RunCaseRuns(r.RunID)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(existing))
	for _, cr := range existing {
		if cr.BuildID == r.BuildID && cr.EnvironmentID == 0 {
			present[cr.CaseID] = true
		}
	}

	var added []*types.CaseRun
	for _, caseID := range caseIDs {
		if present[caseID] {
			continue
		}
		c, err := s.GetCase(caseID)
		if err != nil {
			return nil, err
		}
		version := 0
		if text, err := s.LatestCaseText(caseID); err == nil {
			version = text.Version
		} else if !errors.Is(err, types.ErrNotFound) {
			return nil, err
		}
		assignee := r.DefaultTesterID
		if assignee == "" {
			assignee = c.DefaultTesterID
		}
		cr := &types.CaseRun{
			RunID:           r.RunID,
			CaseID:          caseID,
			CaseTextVersion: version,
			AssigneeID:      assignee,
			Status:          types.CaseRunIdle,
			BuildID:         r.BuildID,
			SortKey:         sortKeys[caseID],
		}
		if cr.CaseRunID, err = s.save(types.TableCaseRuns, "", cr); err != nil {
			return nil, err
		}
		present[caseID] = true
		added = append(added, cr)
	}
	return added, nil
}

// GetRun returns a run by ID.
func (s *Service) GetRun(id string) (*types.TestRun, error) {
	return get[types.TestRun](s, types.TableRuns, id)
}

// ListRuns returns runs matching filter.
func (s *Service) ListRuns(filter types.Filter) ([]*types.TestRun, error) {
	return fetch[types.TestRun](s, types.TableRuns, filter)
}

// RunCaseRuns returns a run's case-runs in sort-key order.
func (s *Service) RunCaseRuns(runID string) ([]*types.CaseRun, error) {
	return fetch[types.CaseRun](s, types.TableCaseRuns, types.Filter{"run_id": runID})
}

// AddCasesToRun adds case-runs for cases not yet in the run.
func (s *Service) AddCasesToRun(ctx context.Context, runID string, caseIDs ...string) ([]*types.CaseRun, error) {
	r, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}
	added, err := s.addCaseRuns(r, caseIDs)
	if err != nil {
		return nil, err
	}
	if err := s.updateRunCompletion(ctx, runID, ""); err != nil {
		return nil, err
	}
	return added, nil
}

// RemoveCaseRuns deletes case-runs from a run.
func (s *Service) RemoveCaseRuns(ctx context.Context, runID string, caseRunIDs ...string) error {
	for _, id := range caseRunIDs {
		cr, err := s.GetCaseRun(id)
		if err != nil {
			return err
		}
		if cr.RunID != runID {
			return fmt.Errorf("case-run %s is not in run %s: %w", id, runID, types.ErrInvalidReference)
		}
		if err := s.remove(types.TableCaseRuns, id); err != nil {
			return err
		}
	}
	return s.updateRunCompletion(ctx, runID, "")
}

// UpdateRun applies fn to a run and saves it. The run ID and plan cannot
// change and the build must belong to the plan's product.
func (s *Service) UpdateRun(ctx context.Context, runID string, fn func(*types.TestRun) error) (*types.TestRun, error) {
	r, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}
	planID := r.PlanID
	if err := fn(r); err != nil {
		return nil, err
	}
	r.RunID, r.PlanID = runID, planID
	plan, err := s.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	if err := s.checkBuild(plan.ProductID, r.BuildID); err != nil {
		return nil, err
	}
	if err := s.checkVersion(plan.ProductID, r.ProductVersionID); err != nil {
		return nil, err
	}
	if _, err := s.save(types.TableRuns, runID, r); err != nil {
		return nil, err
	}
	return r, nil
}

// FinishRun stamps the run's stop date. Finishing a finished run is a no-op.
func (s *Service) FinishRun(ctx context.Context, runID, actorID string) (*types.TestRun, error) {
	r, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if r.IsFinished() {
		return r, nil
	}
	r.Finish(s.now())
	if _, err := s.save(types.TableRuns, runID, r); err != nil {
		return nil, err
	}
	s.emit(ctx, signals.RunFinished, types.ObjectRun, runID, actorID, map[string]string{"summary": r.Summary})
	return r, nil
}

// ReopenRun clears the run's stop date.
func (s *Service) ReopenRun(ctx context.Context, runID string) (*types.TestRun, error) {
	r, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if !r.IsFinished() {
		return r, nil
	}
	r.Reopen()
	if _, err := s.save(types.TableRuns, runID, r); err != nil {
		return nil, err
	}
	return r, nil
}

// updateRunCompletion finishes an auto-updating run once every case-run is
// complete and reopens it when one is not.
func (s *Service) updateRunCompletion(ctx context.Context, runID, actorID string) error {
	r, err := s.GetRun(runID)
	if err != nil {
		return err
	}
	if !r.AutoUpdateRunStatus {
		return nil
	}
	caseRuns, err := s.RunCaseRuns(runID)
	if err != nil {
		return err
	}
	complete := len(caseRuns) > 0
	for _, cr := range caseRuns {
		if !cr.IsComplete() {
			complete = false
			break
		}
	}
	switch {
	case complete && !r.IsFinished():
		_, err = s.FinishRun(ctx, runID, actorID)
	case !complete && r.IsFinished():
		_, err = s.ReopenRun(ctx, runID)
	}
	return err
}

// CloneRun creates a new run of the same plan with the same cases, tags, CC
// users and environment values. Every case-run starts IDLE.
func (s *Service) CloneRun(ctx context.Context, runID string, opts CloneRunOptions) (*types.TestRun, error) {
	src, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}
	nr := NewRun{
		Summary:             src.Summary,
		PlanID:              src.PlanID,
		BuildID:             src.BuildID,
		ProductVersionID:    src.ProductVersionID,
		ManagerID:           src.ManagerID,
		DefaultTesterID:     src.DefaultTesterID,
		EstimatedTime:       src.EstimatedTime,
		Notes:               src.Notes,
		AutoUpdateRunStatus: src.AutoUpdateRunStatus,
	}
	if opts.Summary != "" {
		nr.Summary = opts.Summary
	}
	if opts.ManagerID != "" {
		nr.ManagerID = opts.ManagerID
	}
	if opts.BuildID != "" {
		nr.BuildID = opts.BuildID
	}
	if opts.DefaultTesterID != "" {
		nr.DefaultTesterID = opts.DefaultTesterID
	}

	caseRuns, err := s.RunCaseRuns(runID)
	if err != nil {
		return nil, err
	}
	if len(caseRuns) == 0 {
		return nil, fmt.Errorf("cloning run %s without case-runs: %w", runID, types.ErrInvalidData)
	}
	for _, cr := range caseRuns {
		nr.CaseIDs = append(nr.CaseIDs, cr.CaseID)
	}
	tags, err := s.RunTags(runID)
	if err != nil {
		return nil, err
	}
	for _, t := range tags {
		nr.Tags = append(nr.Tags, t.Name)
	}
	if nr.CCIDs, err = s.linkedIDs(types.LinkRunCC, runID); err != nil {
		return nil, err
	}
	if nr.EnvValueIDs, err = s.linkedIDs(types.LinkRunEnvValue, runID); err != nil {
		return nil, err
	}
	return s.CreateRun(ctx, nr)
}

// AddRunTag tags a run, creating the tag if needed.
func (s *Service) AddRunTag(ctx context.Context, runID, name string) error {
	if err := s.exists(types.TableRuns, runID); err != nil {
		return err
	}
	return s.addTag(types.LinkRunTag, runID, name)
}

// RemoveRunTag removes a tag from a run.
func (s *Service) RemoveRunTag(ctx context.Context, runID, name string) error {
	return s.removeTag(types.LinkRunTag, runID, name)
}

// RunTags returns a run's tags by name.
func (s *Service) RunTags(runID string) ([]*types.Tag, error) {
	return s.tagsOf(types.LinkRunTag, runID)
}

// AddRunCC copies a user on a run's notifications.
func (s *Service) AddRunCC(ctx context.Context, runID, userID string) error {
	if err := s.exists(types.TableRuns, runID); err != nil {
		return err
	}
	if err := s.exists(types.TableUsers, userID); err != nil {
		return err
	}
	return s.link(types.LinkRunCC, runID, userID, 0)
}

// RemoveRunCC removes a user from a run's CC list.
func (s *Service) RemoveRunCC(ctx context.Context, runID, userID string) error {
	return s.unlink(types.LinkRunCC, runID, userID)
}

// RunCC returns the users copied on a run.
func (s *Service) RunCC(runID string) ([]*types.User, error) {
	ids, err := s.linkedIDs(types.LinkRunCC, runID)
	if err != nil {
		return nil, err
	}
	return s.ListUsers(types.Filter{"user_id": ids})
}

// AddRunEnvValue records an environment value a run executes under.
func (s *Service) AddRunEnvValue(ctx context.Context, runID, valueID string) error {
	if err := s.exists(types.TableRuns, runID); err != nil {
		return err
	}
	if err := s.exists(types.TableEnvValues, valueID); err != nil {
		return err
	}
	return s.link(types.LinkRunEnvValue, runID, valueID, 0)
}

// RemoveRunEnvValue removes an environment value from a run.
func (s *Service) RemoveRunEnvValue(ctx context.Context, runID, valueID string) error {
	return s.unlink(types.LinkRunEnvValue, runID, valueID)
}

// RunEnvValues returns the environment values of a run.
func (s *Service) RunEnvValues(runID string) ([]*types.EnvValue, error) {
	ids, err := s.linkedIDs(types.LinkRunEnvValue, runID)
	if err != nil {
		return nil, err
	}
	return fetch[types.EnvValue](s, types.TableEnvValues, types.Filter{"env_value_id": ids})
}

package tcms

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mesh-intelligence/nitrate/internal/signals"
	"github.com/mesh-intelligence/nitrate/internal/tracker"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// NewIssue describes an issue to attach. CaseID may be left empty when
// CaseRunID is set.
type NewIssue struct {
	TrackerID   string
	IssueKey    string
	CaseID      string
	CaseRunID   string
	Summary     string
	Description string
	ActorID     string
}

// CreateTracker stores an issue tracker and binds it to products.
func (s *Service) CreateTracker(ctx context.Context, t *types.IssueTracker, productIDs ...string) (*types.IssueTracker, error) {
	if _, err := tracker.New(t); err != nil {
		return nil, err
	}
	if t.ValidateRegex != "" {
		if _, err := regexp.Compile(t.ValidateRegex); err != nil {
			return nil, fmt.Errorf("%w: validate regex: %v", types.ErrInvalidData, err)
		}
	}
	id, err := s.save(types.TableTrackers, "", t)
	if err != nil {
		return nil, err
	}
	for _, productID := range productIDs {
		if err := s.BindTrackerProduct(ctx, id, productID); err != nil {
			return nil, err
		}
	}
	return s.GetTracker(id)
}

// GetTracker returns an issue tracker by ID.
func (s *Service) GetTracker(id string) (*types.IssueTracker, error) {
	return get[types.IssueTracker](s, types.TableTrackers, id)
}

// TrackerByName returns the tracker named name.
func (s *Service) TrackerByName(name string) (*types.IssueTracker, error) {
	return first[types.IssueTracker](s, types.TableTrackers, types.Filter{"name": name})
}

// ListTrackers returns every issue tracker.
func (s *Service) ListTrackers() ([]*types.IssueTracker, error) {
	return fetch[types.IssueTracker](s, types.TableTrackers, nil)
}

// BindTrackerProduct allows a product's cases to file issues in a tracker.
func (s *Service) BindTrackerProduct(ctx context.Context, trackerID, productID string) error {
	if err := s.exists(types.TableTrackers, trackerID); err != nil {
		return err
	}
	if err := s.exists(types.TableProducts, productID); err != nil {
		return err
	}
	return s.link(types.LinkTrackerProduct, trackerID, productID, 0)
}

// AttachIssue links an external issue to a case and optionally a case-run.
// The key must pass the tracker's validation and the tracker must be bound
// to the case's product.
func (s *Service) AttachIssue(ctx context.Context, ni NewIssue) (*types.Issue, error) {
	t, err := s.GetTracker(ni.TrackerID)
	if err != nil {
		return nil, err
	}
	svc, err := tracker.New(t)
	if err != nil {
		return nil, err
	}
	if err := svc.ValidateKey(ni.IssueKey); err != nil {
		return nil, err
	}

	if ni.CaseRunID != "" {
		cr, err := s.GetCaseRun(ni.CaseRunID)
		if err != nil {
			return nil, err
		}
		if ni.CaseID == "" {
			ni.CaseID = cr.CaseID
		} else if ni.CaseID != cr.CaseID {
			return nil, fmt.Errorf("case-run %s does not run case %s: %w", ni.CaseRunID, ni.CaseID, types.ErrInvalidReference)
		}
	}
	c, err := s.GetCase(ni.CaseID)
	if err != nil {
		return nil, err
	}
	productID, err := s.productOfCase(c)
	if err != nil {
		return nil, err
	}
	bound, err := fetch[types.Link](s, types.TableLinks, types.Filter{
		"link_type": types.LinkTrackerProduct, "from_id": t.TrackerID, "to_id": productID,
	})
	if err != nil {
		return nil, err
	}
	if len(bound) == 0 {
		return nil, fmt.Errorf("tracker %s: %w", t.Name, ErrTrackerNotBound)
	}

	existing, err := fetch[types.Issue](s, types.TableIssues, types.Filter{
		"tracker_id": t.TrackerID, "issue_key": ni.IssueKey, "case_id": ni.CaseID,
	})
	if err != nil {
		return nil, err
	}
	for _, e := range existing {
		if e.CaseRunID == ni.CaseRunID {
			return nil, fmt.Errorf("%s on case %s: %w", ni.IssueKey, ni.CaseID, ErrDuplicateIssue)
		}
	}

	issue := &types.Issue{
		IssueKey:    ni.IssueKey,
		TrackerID:   t.TrackerID,
		CaseID:      ni.CaseID,
		CaseRunID:   ni.CaseRunID,
		Summary:     ni.Summary,
		Description: ni.Description,
	}
	if issue.IssueID, err = s.save(types.TableIssues, "", issue); err != nil {
		return nil, err
	}

	objectType, objectID := types.ObjectCase, ni.CaseID
	if ni.CaseRunID != "" {
		objectType, objectID = types.ObjectCaseRun, ni.CaseRunID
	}
	s.emit(ctx, signals.IssueAttached, objectType, objectID, ni.ActorID, map[string]string{
		"issue_key": ni.IssueKey,
		"tracker":   t.Name,
	})
	return issue, nil
}

// DetachIssue removes every attachment of issueKey from a case, including
// those recorded on its case-runs.
func (s *Service) DetachIssue(ctx context.Context, caseID, issueKey string) error {
	issues, err := fetch[types.Issue](s, types.TableIssues, types.Filter{"case_id": caseID, "issue_key": issueKey})
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		return fmt.Errorf("issue %s on case %s: %w", issueKey, caseID, types.ErrNotFound)
	}
	for _, i := range issues {
		if err := s.remove(types.TableIssues, i.IssueID); err != nil {
			return err
		}
	}
	return nil
}

// ListIssues returns the issues of a case-run when caseRunID is set, and
// otherwise every issue of the case.
func (s *Service) ListIssues(caseID, caseRunID string) ([]*types.Issue, error) {
	if caseRunID != "" {
		return fetch[types.Issue](s, types.TableIssues, types.Filter{"case_run_id": caseRunID})
	}
	return fetch[types.Issue](s, types.TableIssues, types.Filter{"case_id": caseID})
}

// IssueURL returns the browser URL of an attached issue.
func (s *Service) IssueURL(issue *types.Issue) (string, error) {
	t, err := s.GetTracker(issue.TrackerID)
	if err != nil {
		return "", err
	}
	svc, err := tracker.New(t)
	if err != nil {
		return "", err
	}
	return svc.IssueURL(issue.IssueKey), nil
}

// ReportIssueURL builds the tracker URL that files a new issue for a
// case-run, prefilled from the case-run's context.
func (s *Service) ReportIssueURL(caseRunID, trackerID string) (string, error) {
	t, err := s.GetTracker(trackerID)
	if err != nil {
		return "", err
	}
	svc, err := tracker.New(t)
	if err != nil {
		return "", err
	}
	rc, err := s.reportContext(caseRunID)
	if err != nil {
		return "", err
	}
	return svc.ReportURL(rc)
}

func (s *Service) reportContext(caseRunID string) (tracker.ReportContext, error) {
	var rc tracker.ReportContext
	cr, err := s.GetCaseRun(caseRunID)
	if err != nil {
		return rc, err
	}
	run, err := s.GetRun(cr.RunID)
	if err != nil {
		return rc, err
	}
	plan, err := s.GetPlan(run.PlanID)
	if err != nil {
		return rc, err
	}
	product, err := s.GetProduct(plan.ProductID)
	if err != nil {
		return rc, err
	}
	version, err := get[types.Version](s, types.TableVersions, run.ProductVersionID)
	if err != nil {
		return rc, err
	}
	build, err := get[types.Build](s, types.TableBuilds, cr.BuildID)
	if err != nil {
		return rc, err
	}
	c, err := s.GetCase(cr.CaseID)
	if err != nil {
		return rc, err
	}
	comps, err := s.CaseComponents(c.CaseID)
	if err != nil {
		return rc, err
	}
	names := make([]string, len(comps))
	for i, comp := range comps {
		names[i] = comp.Name
	}

	rc = tracker.ReportContext{
		Product:     product.Name,
		Version:     version.Value,
		Build:       build.Name,
		Component:   strings.Join(names, ", "),
		CaseSummary: c.Summary,
		RunSummary:  run.Summary,
		CaseRunURL:  s.baseURL + "/caseruns/" + caseRunID,
	}
	if text, err := s.CaseText(c.CaseID, cr.CaseTextVersion); err == nil {
		rc.CaseText = text.Action
	}
	return rc, nil
}

package tcms

import (
	"context"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/nitrate/internal/signals"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// SortKeyStep separates the sort keys assigned to cases added to a plan.
const SortKeyStep = 10

// NewPlan describes a plan to create.
type NewPlan struct {
	Name             string
	ProductID        string
	ProductVersionID string
	TypeID           string
	AuthorID         string
	OwnerID          string
	ParentID         string
	ExtraLink        string
	Text             string // Optional initial document.
}

// PlanCase is a case as it appears in a plan.
type PlanCase struct {
	Case    *types.TestCase
	SortKey int
}

// ClonePlanOptions controls ClonePlan.
type ClonePlanOptions struct {
	Name             string // Defaults to "Copy of <source name>".
	AuthorID         string // Defaults to the source author.
	ProductID        string // Defaults to the source product.
	ProductVersionID string // Required when ProductID changes.
	CopyCases        bool   // Deep-copy cases instead of linking them.
	SetParent        bool   // Make the source the clone's parent.
}

// checkVersion verifies that versionID belongs to productID.
func (s *Service) checkVersion(productID, versionID string) error {
	v, err := get[types.Version](s, types.TableVersions, versionID)
	if err != nil {
		return err
	}
	if v.ProductID != productID {
		return fmt.Errorf("version %s is not a version of product %s: %w", versionID, productID, types.ErrInvalidReference)
	}
	return nil
}

// CreatePlan creates an active plan and stores its initial text.
func (s *Service) CreatePlan(ctx context.Context, np NewPlan) (*types.TestPlan, error) {
	if err := s.checkVersion(np.ProductID, np.ProductVersionID); err != nil {
		return nil, err
	}
	if np.ParentID != "" {
		if err := s.exists(types.TablePlans, np.ParentID); err != nil {
			return nil, err
		}
	}
	p := &types.TestPlan{
		Name:             np.Name,
		ProductID:        np.ProductID,
		ProductVersionID: np.ProductVersionID,
		TypeID:           np.TypeID,
		AuthorID:         np.AuthorID,
		OwnerID:          np.OwnerID,
		ParentID:         np.ParentID,
		ExtraLink:        np.ExtraLink,
		IsActive:         true,
	}
	id, err := s.save(types.TablePlans, "", p)
	if err != nil {
		return nil, err
	}
	if np.Text != "" {
		if _, _, err := s.StorePlanText(ctx, id, np.AuthorID, np.Text); err != nil {
			return nil, err
		}
	}
	p, err = s.GetPlan(id)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, signals.PlanCreated, types.ObjectPlan, id, np.AuthorID, map[string]string{"name": p.Name})
	return p, nil
}

// GetPlan returns a plan by ID.
func (s *Service) GetPlan(id string) (*types.TestPlan, error) {
	return get[types.TestPlan](s, types.TablePlans, id)
}

// ListPlans returns plans matching filter.
func (s *Service) ListPlans(filter types.Filter) ([]*types.TestPlan, error) {
	return fetch[types.TestPlan](s, types.TablePlans, filter)
}

// UpdatePlan applies fn to a plan and saves it. The plan ID cannot change
// and the version must still belong to the product.
func (s *Service) UpdatePlan(ctx context.Context, planID string, fn func(*types.TestPlan) error) (*types.TestPlan, error) {
	p, err := s.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	p.PlanID = planID
	if p.ParentID == planID {
		return nil, fmt.Errorf("plan cannot be its own parent: %w", types.ErrInvalidReference)
	}
	if err := s.checkVersion(p.ProductID, p.ProductVersionID); err != nil {
		return nil, err
	}
	if _, err := s.save(types.TablePlans, planID, p); err != nil {
		return nil, err
	}
	return p, nil
}

// StorePlanText stores text as a new version of the plan's document unless
// it matches the latest version. It returns the latest text and whether a
// new version was created.
func (s *Service) StorePlanText(ctx context.Context, planID, authorID, text string) (*types.PlanText, bool, error) {
	if err := s.exists(types.TablePlans, planID); err != nil {
		return nil, false, err
	}
	latest, err := s.LatestPlanText(planID)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return nil, false, err
	}
	version := 1
	if latest != nil {
		if latest.Checksum == types.Checksum(text) {
			return latest, false, nil
		}
		version = latest.Version + 1
	}
	pt := &types.PlanText{PlanID: planID, Version: version, AuthorID: authorID, Text: text}
	id, err := s.save(types.TablePlanTexts, "", pt)
	if err != nil {
		return nil, false, err
	}
	pt, err = get[types.PlanText](s, types.TablePlanTexts, id)
	return pt, err == nil, err
}

// LatestPlanText returns the newest version of a plan's document.
func (s *Service) LatestPlanText(planID string) (*types.PlanText, error) {
	texts, err := fetch[types.PlanText](s, types.TablePlanTexts, types.Filter{"plan_id": planID})
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("text of plan %s: %w", planID, types.ErrNotFound)
	}
	return texts[len(texts)-1], nil
}

// PlanText returns one version of a plan's document. Version 0 means latest.
func (s *Service) PlanText(planID string, version int) (*types.PlanText, error) {
	if version == 0 {
		return s.LatestPlanText(planID)
	}
	return first[types.PlanText](s, types.TablePlanTexts, types.Filter{"plan_id": planID, "version": version})
}

// AddCasesToPlan links cases to a plan after its current last case. Cases
// already in the plan keep their position.
func (s *Service) AddCasesToPlan(ctx context.Context, planID string, caseIDs ...string) error {
	if err := s.exists(types.TablePlans, planID); err != nil {
		return err
	}
	key, err := s.store.MaxPlanSortKey(planID)
	if err != nil {
		return err
	}
	for _, caseID := range caseIDs {
		if err := s.exists(types.TableCases, caseID); err != nil {
			return err
		}
		linked, err := fetch[types.Link](s, types.TableLinks, types.Filter{
			"link_type": types.LinkPlanCase, "from_id": planID, "to_id": caseID,
		})
		if err != nil {
			return err
		}
		if len(linked) > 0 {
			continue
		}
		key += SortKeyStep
		if err := s.link(types.LinkPlanCase, planID, caseID, key); err != nil {
			return err
		}
	}
	return nil
}

// RemoveCaseFromPlan unlinks a case from a plan.
func (s *Service) RemoveCaseFromPlan(ctx context.Context, planID, caseID string) error {
	return s.unlink(types.LinkPlanCase, planID, caseID)
}

// PlanCases returns a plan's cases in sort-key order.
func (s *Service) PlanCases(planID string) ([]PlanCase, error) {
	links, err := s.linksFrom(types.LinkPlanCase, planID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(links))
	for i, l := range links {
		ids[i] = l.ToID
	}
	cases, err := fetch[types.TestCase](s, types.TableCases, types.Filter{"case_id": ids})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*types.TestCase, len(cases))
	for _, c := range cases {
		byID[c.CaseID] = c
	}
	out := make([]PlanCase, 0, len(links))
	for _, l := range links {
		if c, ok := byID[l.ToID]; ok {
			out = append(out, PlanCase{Case: c, SortKey: l.SortKey})
		}
	}
	return out, nil
}

// SetSortKey moves a case within a plan.
func (s *Service) SetSortKey(ctx context.Context, planID, caseID string, key int) error {
	links, err := fetch[types.Link](s, types.TableLinks, types.Filter{
		"link_type": types.LinkPlanCase, "from_id": planID, "to_id": caseID,
	})
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return fmt.Errorf("case %s in plan %s: %w", caseID, planID, ErrNotLinked)
	}
	l := links[0]
	l.SortKey = key
	_, err = s.save(types.TableLinks, l.LinkID, l)
	return err
}

// ClonePlan copies a plan with its latest text, tags and components. Cases
// are linked to the clone, or deep-copied when opts.CopyCases is set.
func (s *Service) ClonePlan(ctx context.Context, planID string, opts ClonePlanOptions) (*types.TestPlan, error) {
	src, err := s.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	np := NewPlan{
		Name:             opts.Name,
		ProductID:        src.ProductID,
		ProductVersionID: src.ProductVersionID,
		TypeID:           src.TypeID,
		AuthorID:         src.AuthorID,
		OwnerID:          src.OwnerID,
		ExtraLink:        src.ExtraLink,
	}
	if np.Name == "" {
		np.Name = "Copy of " + src.Name
	}
	if opts.AuthorID != "" {
		np.AuthorID = opts.AuthorID
	}
	if opts.ProductID != "" && opts.ProductID != src.ProductID {
		np.ProductID = opts.ProductID
		np.ProductVersionID = ""
	}
	if opts.ProductVersionID != "" {
		np.ProductVersionID = opts.ProductVersionID
	}
	if np.ProductVersionID == "" {
		return nil, fmt.Errorf("cloning plan into another product needs a version: %w", types.ErrInvalidReference)
	}
	if opts.SetParent {
		np.ParentID = src.PlanID
	}
	if text, err := s.LatestPlanText(planID); err == nil {
		np.Text = text.Text
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	dst, err := s.CreatePlan(ctx, np)
	if err != nil {
		return nil, err
	}

	tags, err := s.PlanTags(planID)
	if err != nil {
		return nil, err
	}
	for _, t := range tags {
		if err := s.link(types.LinkPlanTag, dst.PlanID, t.TagID, 0); err != nil {
			return nil, err
		}
	}
	if dst.ProductID == src.ProductID {
		compIDs, err := s.linkedIDs(types.LinkPlanComponent, planID)
		if err != nil {
			return nil, err
		}
		for _, id := range compIDs {
			if err := s.link(types.LinkPlanComponent, dst.PlanID, id, 0); err != nil {
				return nil, err
			}
		}
	}

	cases, err := s.PlanCases(planID)
	if err != nil {
		return nil, err
	}
	for _, pc := range cases {
		caseID := pc.Case.CaseID
		if opts.CopyCases {
			c, err := s.CloneCase(ctx, caseID, CloneCaseOptions{AuthorID: opts.AuthorID, ProductID: dst.ProductID})
			if err != nil {
				return nil, err
			}
			caseID = c.CaseID
		}
		if err := s.link(types.LinkPlanCase, dst.PlanID, caseID, pc.SortKey); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

// ChildPlans returns the plans whose parent is planID.
func (s *Service) ChildPlans(planID string) ([]*types.TestPlan, error) {
	return s.ListPlans(types.Filter{"parent_id": planID})
}

// PlanRuns returns the runs of a plan ordered by start date.
func (s *Service) PlanRuns(planID string) ([]*types.TestRun, error) {
	return fetch[types.TestRun](s, types.TableRuns, types.Filter{"plan_id": planID})
}

// AddPlanTag tags a plan, creating the tag if needed.
func (s *Service) AddPlanTag(ctx context.Context, planID, name string) error {
	if err := s.exists(types.TablePlans, planID); err != nil {
		return err
	}
	return s.addTag(types.LinkPlanTag, planID, name)
}

// RemovePlanTag removes a tag from a plan.
func (s *Service) RemovePlanTag(ctx context.Context, planID, name string) error {
	return s.removeTag(types.LinkPlanTag, planID, name)
}

// PlanTags returns a plan's tags by name.
func (s *Service) PlanTags(planID string) ([]*types.Tag, error) {
	return s.tagsOf(types.LinkPlanTag, planID)
}

// AddPlanComponent files a plan under a component of its product.
func (s *Service) AddPlanComponent(ctx context.Context, planID, componentID string) error {
	p, err := s.GetPlan(planID)
	if err != nil {
		return err
	}
	c, err := get[types.Component](s, types.TableComponents, componentID)
	if err != nil {
		return err
	}
	if c.ProductID != p.ProductID {
		return fmt.Errorf("component %s belongs to another product: %w", componentID, types.ErrInvalidReference)
	}
	return s.link(types.LinkPlanComponent, planID, componentID, 0)
}

// RemovePlanComponent removes a component from a plan.
func (s *Service) RemovePlanComponent(ctx context.Context, planID, componentID string) error {
	return s.unlink(types.LinkPlanComponent, planID, componentID)
}

// PlanComponents returns a plan's components.
func (s *Service) PlanComponents(planID string) ([]*types.Component, error) {
	ids, err := s.linkedIDs(types.LinkPlanComponent, planID)
	if err != nil {
		return nil, err
	}
	return fetch[types.Component](s, types.TableComponents, types.Filter{"component_id": ids})
}

// AddPlanEnvGroup requires an environment group for a plan's runs.
func (s *Service) AddPlanEnvGroup(ctx context.Context, planID, groupID string) error {
	if err := s.exists(types.TablePlans, planID); err != nil {
		return err
	}
	if err := s.exists(types.TableEnvGroups, groupID); err != nil {
		return err
	}
	return s.link(types.LinkPlanEnvGroup, planID, groupID, 0)
}

// PlanEnvGroups returns the environment groups a plan requires.
func (s *Service) PlanEnvGroups(planID string) ([]*types.EnvGroup, error) {
	ids, err := s.linkedIDs(types.LinkPlanEnvGroup, planID)
	if err != nil {
		return nil, err
	}
	return fetch[types.EnvGroup](s, types.TableEnvGroups, types.Filter{"env_group_id": ids})
}

package tcms

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/nitrate/internal/signals"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// CaseTextInput is the step text of a case.
type CaseTextInput struct {
	Action    string
	Effect    string
	Setup     string
	Breakdown string
}

// IsEmpty reports whether every field is blank.
func (in CaseTextInput) IsEmpty() bool {
	return in.Action == "" && in.Effect == "" && in.Setup == "" && in.Breakdown == ""
}

// NewCase describes a case to create.
type NewCase struct {
	Summary             string
	CategoryID          string
	Priority            string // Defaults to P3.
	Status              string // Defaults to PROPOSED.
	AuthorID            string
	DefaultTesterID     string
	ReviewerID          string
	IsAutomated         int
	IsAutomatedProposed bool
	Script              string
	Arguments           string
	ExtraLink           string
	Requirement         string
	Alias               string
	EstimatedTime       int64
	Notes               string
	Text                CaseTextInput
	PlanIDs             []string
	Tags                []string
	ComponentIDs        []string
}

// CloneCaseOptions controls CloneCase.
type CloneCaseOptions struct {
	AuthorID  string   // Defaults to the source author.
	ProductID string   // Remaps the category by name into this product.
	PlanIDs   []string // Plans the copy joins.
}

// CreateCase creates a case with its initial text, links it to the given
// plans and applies its tags and components. A failure after the case row
// exists removes it again.
func (s *Service) CreateCase(ctx context.Context, nc NewCase) (*types.TestCase, error) {
	cat, err := get[types.Category](s, types.TableCategories, nc.CategoryID)
	if err != nil {
		return nil, err
	}
	for _, planID := range nc.PlanIDs {
		if err := s.exists(types.TablePlans, planID); err != nil {
			return nil, err
		}
	}
	for _, compID := range nc.ComponentIDs {
		if err := s.checkComponent(cat.ProductID, compID); err != nil {
			return nil, err
		}
	}

	c := &types.TestCase{
		Summary:             nc.Summary,
		Status:              nc.Status,
		CategoryID:          nc.CategoryID,
		Priority:            nc.Priority,
		AuthorID:            nc.AuthorID,
		DefaultTesterID:     nc.DefaultTesterID,
		ReviewerID:          nc.ReviewerID,
		IsAutomated:         nc.IsAutomated,
		IsAutomatedProposed: nc.IsAutomatedProposed,
		Script:              nc.Script,
		Arguments:           nc.Arguments,
		ExtraLink:           nc.ExtraLink,
		Requirement:         nc.Requirement,
		Alias:               nc.Alias,
		EstimatedTime:       nc.EstimatedTime,
		Notes:               nc.Notes,
	}
	id, err := s.save(types.TableCases, "", c)
	if err != nil {
		return nil, err
	}
	if err := s.populateCase(ctx, id, nc); err != nil {
		if derr := s.remove(types.TableCases, id); derr != nil {
			s.logger.Warn("rolling back case failed", zap.String("case_id", id), zap.Error(derr))
		}
		return nil, err
	}

	c, err = s.GetCase(id)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, signals.CaseCreated, types.ObjectCase, id, nc.AuthorID, map[string]string{"summary": c.Summary})
	return c, nil
}

func (s *Service) populateCase(ctx context.Context, caseID string, nc NewCase) error {
	if !nc.Text.IsEmpty() {
		if _, _, err := s.StoreCaseText(ctx, caseID, nc.AuthorID, nc.Text); err != nil {
			return err
		}
	}
	for _, planID := range nc.PlanIDs {
		if err := s.AddCasesToPlan(ctx, planID, caseID); err != nil {
			return err
		}
	}
	for _, name := range nc.Tags {
		if err := s.addTag(types.LinkCaseTag, caseID, name); err != nil {
			return err
		}
	}
	for _, compID := range nc.ComponentIDs {
		if err := s.link(types.LinkCaseComponent, caseID, compID, 0); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) checkComponent(productID, componentID string) error {
	comp, err := get[types.Component](s, types.TableComponents, componentID)
	if err != nil {
		return err
	}
	if comp.ProductID != productID {
		return fmt.Errorf("component %s belongs to another product: %w", componentID, types.ErrInvalidReference)
	}
	return nil
}

// GetCase returns a case by ID.
func (s *Service) GetCase(id string) (*types.TestCase, error) {
	return get[types.TestCase](s, types.TableCases, id)
}

// ListCases returns cases matching filter.
func (s *Service) ListCases(filter types.Filter) ([]*types.TestCase, error) {
	return fetch[types.TestCase](s, types.TableCases, filter)
}

// UpdateCase applies fn to a case and saves it. The case ID cannot change.
func (s *Service) UpdateCase(ctx context.Context, caseID string, fn func(*types.TestCase) error) (*types.TestCase, error) {
	c, err := s.GetCase(caseID)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	c.CaseID = caseID
	if _, err := s.save(types.TableCases, caseID, c); err != nil {
		return nil, err
	}
	return c, nil
}

// SetCaseStatus changes a case's status.
func (s *Service) SetCaseStatus(ctx context.Context, caseID, status string) (*types.TestCase, error) {
	return s.UpdateCase(ctx, caseID, func(c *types.TestCase) error { return c.SetStatus(status) })
}

// StoreCaseText stores in as a new version of the case's text unless it
// matches the latest version by checksum. It returns the latest text and
// whether a new version was created.
func (s *Service) StoreCaseText(ctx context.Context, caseID, authorID string, in CaseTextInput) (*types.CaseText, bool, error) {
	if err := s.exists(types.TableCases, caseID); err != nil {
		return nil, false, err
	}
	latest, err := s.LatestCaseText(caseID)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return nil, false, err
	}
	ct := &types.CaseText{
		CaseID:    caseID,
		Version:   1,
		AuthorID:  authorID,
		Action:    in.Action,
		Effect:    in.Effect,
		Setup:     in.Setup,
		Breakdown: in.Breakdown,
	}
	ct.ComputeChecksums()
	if latest != nil {
		if ct.SameContent(latest) {
			return latest, false, nil
		}
		ct.Version = latest.Version + 1
	}
	id, err := s.save(types.TableCaseTexts, "", ct)
	if err != nil {
		return nil, false, err
	}
	ct, err = get[types.CaseText](s, types.TableCaseTexts, id)
	return ct, err == nil, err
}

// LatestCaseText returns the newest version of a case's text.
func (s *Service) LatestCaseText(caseID string) (*types.CaseText, error) {
	texts, err := fetch[types.CaseText](s, types.TableCaseTexts, types.Filter{"case_id": caseID})
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("text of case %s: %w", caseID, types.ErrNotFound)
	}
	return texts[len(texts)-1], nil
}

// CaseText returns one version of a case's text. Version 0 means latest.
func (s *Service) CaseText(caseID string, version int) (*types.CaseText, error) {
	if version == 0 {
		return s.LatestCaseText(caseID)
	}
	return first[types.CaseText](s, types.TableCaseTexts, types.Filter{"case_id": caseID, "version": version})
}

// CloneCase copies a case with its latest text, tags and components.
func (s *Service) CloneCase(ctx context.Context, caseID string, opts CloneCaseOptions) (*types.TestCase, error) {
	src, err := s.GetCase(caseID)
	if err != nil {
		return nil, err
	}
	srcProduct, err := s.productOfCase(src)
	if err != nil {
		return nil, err
	}
	nc := NewCase{
		Summary:             src.Summary,
		CategoryID:          src.CategoryID,
		Priority:            src.Priority,
		Status:              src.Status,
		AuthorID:            src.AuthorID,
		DefaultTesterID:     src.DefaultTesterID,
		ReviewerID:          src.ReviewerID,
		IsAutomated:         src.IsAutomated,
		IsAutomatedProposed: src.IsAutomatedProposed,
		Script:              src.Script,
		Arguments:           src.Arguments,
		ExtraLink:           src.ExtraLink,
		Requirement:         src.Requirement,
		Alias:               src.Alias,
		EstimatedTime:       src.EstimatedTime,
		Notes:               src.Notes,
		PlanIDs:             opts.PlanIDs,
	}
	if opts.AuthorID != "" {
		nc.AuthorID = opts.AuthorID
	}
	if text, err := s.LatestCaseText(caseID); err == nil {
		nc.Text = CaseTextInput{Action: text.Action, Effect: text.Effect, Setup: text.Setup, Breakdown: text.Breakdown}
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}
	tags, err := s.CaseTags(caseID)
	if err != nil {
		return nil, err
	}
	for _, t := range tags {
		nc.Tags = append(nc.Tags, t.Name)
	}

	if opts.ProductID != "" && opts.ProductID != srcProduct {
		if nc.CategoryID, err = s.remapCategory(src.CategoryID, opts.ProductID); err != nil {
			return nil, err
		}
	} else if nc.ComponentIDs, err = s.linkedIDs(types.LinkCaseComponent, caseID); err != nil {
		return nil, err
	}
	return s.CreateCase(ctx, nc)
}

// remapCategory finds the category in productID named like categoryID,
// falling back to the product's default category.
func (s *Service) remapCategory(categoryID, productID string) (string, error) {
	cat, err := get[types.Category](s, types.TableCategories, categoryID)
	if err != nil {
		return "", err
	}
	for _, name := range []string{cat.Name, types.DefaultCategoryName} {
		target, err := s.CategoryByName(productID, name)
		if err == nil {
			return target.CategoryID, nil
		}
		if !errors.Is(err, types.ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("no category for product %s: %w", productID, types.ErrNotFound)
}

// LinkPlan adds a case to a plan.
func (s *Service) LinkPlan(ctx context.Context, caseID, planID string) error {
	return s.AddCasesToPlan(ctx, planID, caseID)
}

// UnlinkPlan removes a case from a plan.
func (s *Service) UnlinkPlan(ctx context.Context, caseID, planID string) error {
	return s.RemoveCaseFromPlan(ctx, planID, caseID)
}

// CasePlans returns the plans a case belongs to.
func (s *Service) CasePlans(caseID string) ([]*types.TestPlan, error) {
	links, err := s.linksTo(types.LinkPlanCase, caseID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(links))
	for i, l := range links {
		ids[i] = l.FromID
	}
	return s.ListPlans(types.Filter{"plan_id": ids})
}

// AddCaseTag tags a case, creating the tag if needed.
func (s *Service) AddCaseTag(ctx context.Context, caseID, name string) error {
	if err := s.exists(types.TableCases, caseID); err != nil {
		return err
	}
	return s.addTag(types.LinkCaseTag, caseID, name)
}

// RemoveCaseTag removes a tag from a case.
func (s *Service) RemoveCaseTag(ctx context.Context, caseID, name string) error {
	return s.removeTag(types.LinkCaseTag, caseID, name)
}

// CaseTags returns a case's tags by name.
func (s *Service) CaseTags(caseID string) ([]*types.Tag, error) {
	return s.tagsOf(types.LinkCaseTag, caseID)
}

// AddCaseComponent files a case under a component of its product.
func (s *Service) AddCaseComponent(ctx context.Context, caseID, componentID string) error {
	c, err := s.GetCase(caseID)
	if err != nil {
		return err
	}
	productID, err := s.productOfCase(c)
	if err != nil {
		return err
	}
	if err := s.checkComponent(productID, componentID); err != nil {
		return err
	}
	return s.link(types.LinkCaseComponent, caseID, componentID, 0)
}

// RemoveCaseComponent removes a component from a case.
func (s *Service) RemoveCaseComponent(ctx context.Context, caseID, componentID string) error {
	return s.unlink(types.LinkCaseComponent, caseID, componentID)
}

// CaseComponents returns a case's components.
func (s *Service) CaseComponents(caseID string) ([]*types.Component, error) {
	ids, err := s.linkedIDs(types.LinkCaseComponent, caseID)
	if err != nil {
		return nil, err
	}
	return fetch[types.Component](s, types.TableComponents, types.Filter{"component_id": ids})
}

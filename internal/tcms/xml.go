package tcms

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mesh-intelligence/nitrate/internal/xmlcase"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// planResolver resolves document names against the store for one product.
type planResolver struct {
	s         *Service
	productID string
}

func (r planResolver) UserID(nameOrEmail string) (string, error) {
	u, err := r.s.UserByName(nameOrEmail)
	if err != nil {
		return "", err
	}
	return u.UserID, nil
}

func (r planResolver) CategoryID(name string) (string, error) {
	c, err := r.s.CategoryByName(r.productID, name)
	if err != nil {
		return "", err
	}
	return c.CategoryID, nil
}

// ImportCasesXML reads a testopia document and creates its cases in a
// plan. Every case is validated before any is created.
func (s *Service) ImportCasesXML(ctx context.Context, planID string, r io.Reader) ([]*types.TestCase, error) {
	plan, err := s.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	doc, err := xmlcase.Decode(r)
	if err != nil {
		return nil, err
	}
	imported, err := doc.Validate(planResolver{s: s, productID: plan.ProductID})
	if err != nil {
		return nil, err
	}

	out := make([]*types.TestCase, 0, len(imported))
	for _, imp := range imported {
		c, err := s.CreateCase(ctx, NewCase{
			Summary:         imp.Case.Summary,
			CategoryID:      imp.Case.CategoryID,
			Priority:        imp.Case.Priority,
			Status:          imp.Case.Status,
			AuthorID:        imp.Case.AuthorID,
			DefaultTesterID: imp.Case.DefaultTesterID,
			IsAutomated:     imp.Case.IsAutomated,
			Notes:           imp.Case.Notes,
			Text: CaseTextInput{
				Action:    imp.Text.Action,
				Effect:    imp.Text.Effect,
				Setup:     imp.Text.Setup,
				Breakdown: imp.Text.Breakdown,
			},
			PlanIDs: []string{planID},
			Tags:    imp.Tags,
		})
		if err != nil {
			return out, fmt.Errorf("importing %q: %w", imp.Case.Summary, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// ExportCasesXML writes a plan's cases as a testopia document in plan order.
func (s *Service) ExportCasesXML(w io.Writer, planID string) error {
	plan, err := s.GetPlan(planID)
	if err != nil {
		return err
	}
	planType := ""
	if pt, err := get[types.PlanType](s, types.TablePlanTypes, plan.TypeID); err == nil {
		planType = pt.Name
	}
	planCases, err := s.PlanCases(planID)
	if err != nil {
		return err
	}

	usernames := make(map[string]string)
	username := func(id string) (string, error) {
		if id == "" {
			return "", nil
		}
		if name, ok := usernames[id]; ok {
			return name, nil
		}
		u, err := s.GetUser(id)
		if err != nil {
			return "", err
		}
		usernames[id] = u.Username
		return u.Username, nil
	}

	out := make([]xmlcase.Case, 0, len(planCases))
	for _, pc := range planCases {
		c := pc.Case
		author, err := username(c.AuthorID)
		if err != nil {
			return err
		}
		tester, err := username(c.DefaultTesterID)
		if err != nil {
			return err
		}
		cat, err := get[types.Category](s, types.TableCategories, c.CategoryID)
		if err != nil {
			return err
		}
		xc := xmlcase.Case{
			Author:         author,
			Priority:       c.Priority,
			Automated:      xmlcase.FormatAutomated(c.IsAutomated),
			Status:         c.Status,
			Summary:        c.Summary,
			CategoryName:   cat.Name,
			DefaultTester:  tester,
			Notes:          c.Notes,
			PlanReferences: []xmlcase.PlanRef{{Type: planType, Name: plan.Name}},
		}
		if text, err := s.LatestCaseText(c.CaseID); err == nil {
			xc.Action, xc.ExpectedResults = text.Action, text.Effect
			xc.Setup, xc.Breakdown = text.Setup, text.Breakdown
		} else if !errors.Is(err, types.ErrNotFound) {
			return err
		}
		tags, err := s.CaseTags(c.CaseID)
		if err != nil {
			return err
		}
		for _, t := range tags {
			xc.Tags = append(xc.Tags, t.Name)
		}
		out = append(out, xc)
	}
	return xmlcase.Encode(w, out)
}

package rpc

import (
	"context"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/nitrate/internal/tcms"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

func (s *Server) registerPlan() {
	s.Register(Method{Name: "TestPlan.create", Perm: types.PermAddPlan, Handler: s.planCreate})
	s.Register(Method{Name: "TestPlan.get", Handler: s.planGet})
	s.Register(Method{Name: "TestPlan.filter", Handler: s.planFilter})
	s.Register(Method{Name: "TestPlan.update", Perm: types.PermChangePlan, Handler: s.planUpdate})
	s.Register(Method{Name: "TestPlan.get_text", Handler: s.planGetText})
	s.Register(Method{Name: "TestPlan.store_text", Perm: types.PermChangePlan, Handler: s.planStoreText})
	s.Register(Method{Name: "TestPlan.add_tag", Perm: types.PermAddPlanTag, Handler: s.planAddTag})
	s.Register(Method{Name: "TestPlan.remove_tag", Perm: types.PermDeletePlanTag, Handler: s.planRemoveTag})
	s.Register(Method{Name: "TestPlan.get_tags", Handler: s.planGetTags})
	s.Register(Method{Name: "TestPlan.get_test_cases", Handler: s.planGetTestCases})
	s.Register(Method{Name: "TestPlan.get_test_runs", Handler: s.planGetTestRuns})
	s.Register(Method{Name: "TestPlan.import_case_via_XML", Perm: types.PermAddCase, Handler: s.planImportCases})
}

// resolvePlanType finds a plan type by ID or name.
func (s *Server) resolvePlanType(ref string) (*types.PlanType, error) {
	planTypes, err := s.svc.ListPlanTypes()
	if err != nil {
		return nil, err
	}
	for _, pt := range planTypes {
		if pt.PlanTypeID == ref || strings.EqualFold(pt.Name, ref) {
			return pt, nil
		}
	}
	return nil, fmt.Errorf("plan type %q: %w", ref, types.ErrNotFound)
}

// resolveVersion finds a product version by ID or value.
func (s *Server) resolveVersion(productID, ref string) (*types.Version, error) {
	versions, err := s.svc.ListVersions(productID)
	if err != nil {
		return nil, err
	}
	for _, v := range versions {
		if v.VersionID == ref || v.Value == ref {
			return v, nil
		}
	}
	return nil, fmt.Errorf("version %q of product %s: %w", ref, productID, types.ErrInvalidReference)
}

// planCreate takes {name, product, product_version, type, text, parent,
// extra_link, owner}. The caller is the author.
func (s *Server) planCreate(ctx context.Context, call *Call) (any, error) {
	f, err := call.Args.Struct(0)
	if err != nil {
		return nil, err
	}
	np := tcms.NewPlan{AuthorID: call.User.UserID}
	if np.Name, err = f.Required("name"); err != nil {
		return nil, err
	}
	p, err := s.productField(f, "product")
	if err != nil {
		return nil, err
	}
	np.ProductID = p.ProductID

	versionRef, err := f.Required("product_version")
	if err != nil {
		return nil, err
	}
	v, err := s.resolveVersion(p.ProductID, versionRef)
	if err != nil {
		return nil, err
	}
	np.ProductVersionID = v.VersionID

	typeRef, err := f.Required("type")
	if err != nil {
		return nil, err
	}
	pt, err := s.resolvePlanType(typeRef)
	if err != nil {
		return nil, err
	}
	np.TypeID = pt.PlanTypeID

	if np.OwnerID, err = s.userIDField(f, "owner", ""); err != nil {
		return nil, err
	}
	if np.ParentID, err = f.String("parent"); err != nil {
		return nil, err
	}
	if np.ExtraLink, err = f.String("extra_link"); err != nil {
		return nil, err
	}
	if np.Text, err = f.String("text"); err != nil {
		return nil, err
	}

	plan, err := s.svc.CreatePlan(ctx, np)
	if err != nil {
		return nil, err
	}
	return planStruct(plan), nil
}

func (s *Server) planGet(_ context.Context, call *Call) (any, error) {
	id, err := call.Args.String(0)
	if err != nil {
		return nil, err
	}
	p, err := s.svc.GetPlan(id)
	if err != nil {
		return nil, err
	}
	return planStruct(p), nil
}

func (s *Server) planFilter(_ context.Context, call *Call) (any, error) {
	filter, err := filterArg(call.Args, 0)
	if err != nil {
		return nil, err
	}
	plans, err := s.svc.ListPlans(filter)
	if err != nil {
		return nil, err
	}
	return list(plans, planStruct), nil
}

// planUpdate applies {name, type, product, product_version, owner, parent,
// is_active, extra_link} to each listed plan.
func (s *Server) planUpdate(ctx context.Context, call *Call) (any, error) {
	ids, err := call.Args.List(0)
	if err != nil {
		return nil, err
	}
	f, err := call.Args.Struct(1)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		p, err := s.svc.UpdatePlan(ctx, id, func(p *types.TestPlan) error {
			return s.applyPlanFields(p, f)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, planStruct(p))
	}
	return out, nil
}

func (s *Server) applyPlanFields(p *types.TestPlan, f Fields) error {
	var err error
	if f.Has("name") {
		if p.Name, err = f.Required("name"); err != nil {
			return err
		}
	}
	if f.Has("type") {
		ref, err := f.Required("type")
		if err != nil {
			return err
		}
		pt, err := s.resolvePlanType(ref)
		if err != nil {
			return err
		}
		p.TypeID = pt.PlanTypeID
	}
	if f.Has("product") {
		prod, err := s.productField(f, "product")
		if err != nil {
			return err
		}
		p.ProductID = prod.ProductID
	}
	if f.Has("product_version") {
		ref, err := f.Required("product_version")
		if err != nil {
			return err
		}
		v, err := s.resolveVersion(p.ProductID, ref)
		if err != nil {
			return err
		}
		p.ProductVersionID = v.VersionID
	}
	if f.Has("owner") {
		if p.OwnerID, err = s.userIDField(f, "owner", ""); err != nil {
			return err
		}
	}
	if f.Has("parent") {
		if p.ParentID, err = f.String("parent"); err != nil {
			return err
		}
	}
	if f.Has("extra_link") {
		if p.ExtraLink, err = f.String("extra_link"); err != nil {
			return err
		}
	}
	if p.IsActive, err = f.Bool("is_active", p.IsActive); err != nil {
		return err
	}
	return nil
}

// planGetText takes a plan ID and an optional version; 0 is the latest.
func (s *Server) planGetText(_ context.Context, call *Call) (any, error) {
	id, err := call.Args.String(0)
	if err != nil {
		return nil, err
	}
	version, err := call.Args.OptInt(1, 0)
	if err != nil {
		return nil, err
	}
	t, err := s.svc.PlanText(id, version)
	if err != nil {
		return nil, err
	}
	return planTextStruct(t), nil
}

// planStoreText takes a plan ID, the text and an optional author.
func (s *Server) planStoreText(ctx context.Context, call *Call) (any, error) {
	id, err := call.Args.String(0)
	if err != nil {
		return nil, err
	}
	text, err := call.Args.String(1)
	if err != nil {
		return nil, err
	}
	authorID := call.User.UserID
	if ref, err := call.Args.OptString(2, ""); err != nil {
		return nil, err
	} else if ref != "" {
		u, err := s.resolveUser(ref)
		if err != nil {
			return nil, err
		}
		authorID = u.UserID
	}
	t, _, err := s.svc.StorePlanText(ctx, id, authorID, text)
	if err != nil {
		return nil, err
	}
	return planTextStruct(t), nil
}

// eachPair runs fn for every combination of the listed objects and tags.
func eachPair(args Args, fn func(id, tag string) error) error {
	ids, err := args.List(0)
	if err != nil {
		return err
	}
	tags, err := args.List(1)
	if err != nil {
		return err
	}
	for _, id := range ids {
		for _, tag := range tags {
			if err := fn(id, tag); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Server) planAddTag(ctx context.Context, call *Call) (any, error) {
	return nil, eachPair(call.Args, func(id, tag string) error {
		return s.svc.AddPlanTag(ctx, id, tag)
	})
}

func (s *Server) planRemoveTag(ctx context.Context, call *Call) (any, error) {
	return nil, eachPair(call.Args, func(id, tag string) error {
		return s.svc.RemovePlanTag(ctx, id, tag)
	})
}

func (s *Server) planGetTags(_ context.Context, call *Call) (any, error) {
	id, err := call.Args.String(0)
	if err != nil {
		return nil, err
	}
	tags, err := s.svc.PlanTags(id)
	if err != nil {
		return nil, err
	}
	return list(tags, tagStruct), nil
}

// planGetTestCases returns the plan's cases in sort order, each with its
// sortkey in the plan.
func (s *Server) planGetTestCases(_ context.Context, call *Call) (any, error) {
	id, err := call.Args.String(0)
	if err != nil {
		return nil, err
	}
	cases, err := s.svc.PlanCases(id)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(cases))
	for i, pc := range cases {
		m := caseStruct(pc.Case)
		m["sortkey"] = pc.SortKey
		out[i] = m
	}
	return out, nil
}

func (s *Server) planGetTestRuns(_ context.Context, call *Call) (any, error) {
	id, err := call.Args.String(0)
	if err != nil {
		return nil, err
	}
	runs, err := s.svc.PlanRuns(id)
	if err != nil {
		return nil, err
	}
	return list(runs, runStruct), nil
}

// planImportCases takes a plan ID and a testopia XML document and returns
// the created cases.
func (s *Server) planImportCases(ctx context.Context, call *Call) (any, error) {
	id, err := call.Args.String(0)
	if err != nil {
		return nil, err
	}
	doc, err := call.Args.String(1)
	if err != nil {
		return nil, err
	}
	cases, err := s.svc.ImportCasesXML(ctx, id, strings.NewReader(doc))
	if err != nil {
		return nil, err
	}
	return list(cases, caseStruct), nil
}

package rpc

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/nitrate/internal/tcms"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

func (s *Server) registerCase() {
	s.Register(Method{Name: "TestCase.create", Perm: types.PermAddCase, Handler: s.caseCreate})
	s.Register(Method{Name: "TestCase.get", Handler: s.caseGet})
	s.Register(Method{Name: "TestCase.filter", Handler: s.caseFilter})
	s.Register(Method{Name: "TestCase.update", Perm: types.PermChangeCase, Handler: s.caseUpdate})
	s.Register(Method{Name: "TestCase.get_text", Handler: s.caseGetText})
	s.Register(Method{Name: "TestCase.store_text", Perm: types.PermChangeCase, Handler: s.caseStoreText})
	s.Register(Method{Name: "TestCase.add_tag", Perm: types.PermAddCaseTag, Handler: s.caseAddTag})
	s.Register(Method{Name: "TestCase.remove_tag", Perm: types.PermDeleteCaseTag, Handler: s.caseRemoveTag})
	s.Register(Method{Name: "TestCase.get_tags", Handler: s.caseGetTags})
	s.Register(Method{Name: "TestCase.link_plan", Perm: types.PermAddCasePlan, Handler: s.caseLinkPlan})
	s.Register(Method{Name: "TestCase.unlink_plan", Perm: types.PermDeleteCasePlan, Handler: s.caseUnlinkPlan})
	s.Register(Method{Name: "TestCase.attach_issue", Perm: types.PermAddIssue, Handler: s.caseAttachIssue})
	s.Register(Method{Name: "TestCase.detach_issue", Perm: types.PermDeleteIssue, Handler: s.caseDetachIssue})
	s.Register(Method{Name: "TestCase.get_issues", Handler: s.caseGetIssues})
}

// categoryField resolves the category at key. With a product in the struct
// the category may be named; otherwise it must be an ID.
func (s *Server) categoryField(f Fields, key string) (string, error) {
	ref, err := f.Required(key)
	if err != nil {
		return "", err
	}
	if !f.Has("product") {
		return ref, nil
	}
	p, err := s.productField(f, "product")
	if err != nil {
		return "", err
	}
	categories, err := s.svc.ListCategories(p.ProductID)
	if err != nil {
		return "", err
	}
	for _, c := range categories {
		if c.CategoryID == ref || c.Name == ref {
			return c.CategoryID, nil
		}
	}
	return "", fmt.Errorf("category %q of product %s: %w", ref, p.Name, types.ErrInvalidReference)
}

// caseCreate takes the case fields, the initial text (action, effect,
// setup, breakdown), plan IDs under "plan", tag names under "tag" and
// component IDs under "component".
func (s *Server) caseCreate(ctx context.Context, call *Call) (any, error) {
	f, err := call.Args.Struct(0)
	if err != nil {
		return nil, err
	}
	nc := tcms.NewCase{}
	if nc.Summary, err = f.Required("summary"); err != nil {
		return nil, err
	}
	if nc.CategoryID, err = s.categoryField(f, "category"); err != nil {
		return nil, err
	}
	if nc.AuthorID, err = s.userIDField(f, "author", call.User.UserID); err != nil {
		return nil, err
	}
	if nc.DefaultTesterID, err = s.userIDField(f, "default_tester", ""); err != nil {
		return nil, err
	}
	if nc.ReviewerID, err = s.userIDField(f, "reviewer", ""); err != nil {
		return nil, err
	}
	if err := readCaseFields(f, &caseFieldsTarget{
		priority: &nc.Priority, status: &nc.Status, automated: &nc.IsAutomated,
		proposed: &nc.IsAutomatedProposed, script: &nc.Script, arguments: &nc.Arguments,
		extraLink: &nc.ExtraLink, requirement: &nc.Requirement, alias: &nc.Alias,
		estimated: &nc.EstimatedTime, notes: &nc.Notes,
	}); err != nil {
		return nil, err
	}
	if nc.Text, err = caseTextFields(f); err != nil {
		return nil, err
	}
	if nc.PlanIDs, err = f.List("plan"); err != nil {
		return nil, err
	}
	if nc.Tags, err = f.List("tag"); err != nil {
		return nil, err
	}
	if nc.ComponentIDs, err = f.List("component"); err != nil {
		return nil, err
	}
	c, err := s.svc.CreateCase(ctx, nc)
	if err != nil {
		return nil, err
	}
	return caseStruct(c), nil
}

// caseFieldsTarget points at the scalar case fields shared by create and
// update.
type caseFieldsTarget struct {
	priority    *string
	status      *string
	automated   *int
	proposed    *bool
	script      *string
	arguments   *string
	extraLink   *string
	requirement *string
	alias       *string
	notes       *string
	estimated   *int64
}

// readCaseFields copies the present keys of f into t.
func readCaseFields(f Fields, t *caseFieldsTarget) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"priority", t.priority},
		{"case_status", t.status},
		{"script", t.script},
		{"arguments", t.arguments},
		{"extra_link", t.extraLink},
		{"requirement", t.requirement},
		{"alias", t.alias},
		{"notes", t.notes},
	}
	for _, sf := range strs {
		if !f.Has(sf.key) {
			continue
		}
		v, err := f.String(sf.key)
		if err != nil {
			return err
		}
		*sf.dst = v
	}
	var err error
	if *t.automated, err = f.Int("is_automated", *t.automated); err != nil {
		return err
	}
	if *t.proposed, err = f.Bool("is_automated_proposed", *t.proposed); err != nil {
		return err
	}
	est, err := f.Int("estimated_time", int(*t.estimated))
	if err != nil {
		return err
	}
	*t.estimated = int64(est)
	return nil
}

func caseTextFields(f Fields) (tcms.CaseTextInput, error) {
	var in tcms.CaseTextInput
	var err error
	if in.Action, err = f.String("action"); err != nil {
		return in, err
	}
	if in.Effect, err = f.String("effect"); err != nil {
		return in, err
	}
	if in.Setup, err = f.String("setup"); err != nil {
		return in, err
	}
	in.Breakdown, err = f.String("breakdown")
	return in, err
}

func (s *Server) caseGet(_ context.Context, call *Call) (any, error) {
	id, err := call.Args.String(0)
	if err != nil {
		return nil, err
	}
	c, err := s.svc.GetCase(id)
	if err != nil {
		return nil, err
	}
	return caseStruct(c), nil
}

func (s *Server) caseFilter(_ context.Context, call *Call) (any, error) {
	filter, err := filterArg(call.Args, 0)
	if err != nil {
		return nil, err
	}
	cases, err := s.svc.ListCases(filter)
	if err != nil {
		return nil, err
	}
	return list(cases, caseStruct), nil
}

// caseUpdate applies the struct's fields to each listed case.
func (s *Server) caseUpdate(ctx context.Context, call *Call) (any, error) {
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
		c, err := s.svc.UpdateCase(ctx, id, func(c *types.TestCase) error {
			return s.applyCaseFields(c, f)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, caseStruct(c))
	}
	return out, nil
}

func (s *Server) applyCaseFields(c *types.TestCase, f Fields) error {
	var err error
	if f.Has("summary") {
		if c.Summary, err = f.Required("summary"); err != nil {
			return err
		}
	}
	if f.Has("category") {
		if c.CategoryID, err = s.categoryField(f, "category"); err != nil {
			return err
		}
	}
	if c.DefaultTesterID, err = s.userIDField(f, "default_tester", c.DefaultTesterID); err != nil {
		return err
	}
	if c.ReviewerID, err = s.userIDField(f, "reviewer", c.ReviewerID); err != nil {
		return err
	}
	status := c.Status
	if err := readCaseFields(f, &caseFieldsTarget{
		priority: &c.Priority, status: &status, automated: &c.IsAutomated,
		proposed: &c.IsAutomatedProposed, script: &c.Script, arguments: &c.Arguments,
		extraLink: &c.ExtraLink, requirement: &c.Requirement, alias: &c.Alias,
		estimated: &c.EstimatedTime, notes: &c.Notes,
	}); err != nil {
		return err
	}
	if status != c.Status {
		return c.SetStatus(status)
	}
	return nil
}

// caseGetText takes a case ID and an optional version; 0 is the latest.
func (s *Server) caseGetText(_ context.Context, call *Call) (any, error) {
	id, err := call.Args.String(0)
	if err != nil {
		return nil, err
	}
	version, err := call.Args.OptInt(1, 0)
	if err != nil {
		return nil, err
	}
	t, err := s.svc.CaseText(id, version)
	if err != nil {
		return nil, err
	}
	return caseTextStruct(t), nil
}

// caseStoreText takes a case ID then action, effect, setup and breakdown.
// Omitted parts are empty.
func (s *Server) caseStoreText(ctx context.Context, call *Call) (any, error) {
	id, err := call.Args.String(0)
	if err != nil {
		return nil, err
	}
	parts := make([]string, 4)
	for i := range parts {
		if parts[i], err = call.Args.OptString(i+1, ""); err != nil {
			return nil, err
		}
	}
	t, _, err := s.svc.StoreCaseText(ctx, id, call.User.UserID, tcms.CaseTextInput{
		Action:    parts[0],
		Effect:    parts[1],
		Setup:     parts[2],
		Breakdown: parts[3],
	})
	if err != nil {
		return nil, err
	}
	return caseTextStruct(t), nil
}

func (s *Server) caseAddTag(ctx context.Context, call *Call) (any, error) {
	return nil, eachPair(call.Args, func(id, tag string) error {
		return s.svc.AddCaseTag(ctx, id, tag)
	})
}

func (s *Server) caseRemoveTag(ctx context.Context, call *Call) (any, error) {
	return nil, eachPair(call.Args, func(id, tag string) error {
		return s.svc.RemoveCaseTag(ctx, id, tag)
	})
}

func (s *Server) caseGetTags(_ context.Context, call *Call) (any, error) {
	id, err := call.Args.String(0)
	if err != nil {
		return nil, err
	}
	tags, err := s.svc.CaseTags(id)
	if err != nil {
		return nil, err
	}
	return list(tags, tagStruct), nil
}

// caseLinkPlan links every listed case to every listed plan.
func (s *Server) caseLinkPlan(ctx context.Context, call *Call) (any, error) {
	return nil, eachPair(call.Args, func(caseID, planID string) error {
		return s.svc.LinkPlan(ctx, caseID, planID)
	})
}

func (s *Server) caseUnlinkPlan(ctx context.Context, call *Call) (any, error) {
	caseID, err := call.Args.String(0)
	if err != nil {
		return nil, err
	}
	planID, err := call.Args.String(1)
	if err != nil {
		return nil, err
	}
	if err := s.svc.UnlinkPlan(ctx, caseID, planID); err != nil {
		return nil, err
	}
	plans, err := s.svc.CasePlans(caseID)
	if err != nil {
		return nil, err
	}
	return list(plans, planStruct), nil
}

// issueFields reads {tracker, issue_key, summary, description}. The
// tracker may be given by ID or name.
func (s *Server) issueFields(f Fields, actorID string) (tcms.NewIssue, error) {
	ni := tcms.NewIssue{ActorID: actorID}
	ref, err := f.Required("tracker")
	if err != nil {
		return ni, err
	}
	t, err := s.svc.GetTracker(ref)
	if err != nil {
		if t, err = s.svc.TrackerByName(ref); err != nil {
			return ni, err
		}
	}
	ni.TrackerID = t.TrackerID
	if ni.IssueKey, err = f.Required("issue_key"); err != nil {
		return ni, err
	}
	if ni.Summary, err = f.String("summary"); err != nil {
		return ni, err
	}
	ni.Description, err = f.String("description")
	return ni, err
}

// issueList reads one struct or a list of structs from parameter 0.
func issueList(args Args) ([]Fields, error) {
	v, ok := args.at(0)
	if !ok {
		return nil, fmt.Errorf("%w: parameter 1 is required", ErrArgs)
	}
	switch x := v.(type) {
	case map[string]any:
		return []Fields{x}, nil
	case []any:
		out := make([]Fields, 0, len(x))
		for _, e := range x {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: issues must be structs", ErrArgs)
			}
			out = append(out, m)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: parameter 1 must be a struct or list", ErrArgs)
}

func (s *Server) issueStructs(issues []*types.Issue) ([]any, error) {
	out := make([]any, len(issues))
	for i, issue := range issues {
		url, err := s.svc.IssueURL(issue)
		if err != nil {
			return nil, err
		}
		out[i] = issueStruct(issue, url)
	}
	return out, nil
}

// caseAttachIssue takes one or more {case, tracker, issue_key, summary,
// description} structs.
func (s *Server) caseAttachIssue(ctx context.Context, call *Call) (any, error) {
	items, err := issueList(call.Args)
	if err != nil {
		return nil, err
	}
	var attached []*types.Issue
	for _, f := range items {
		ni, err := s.issueFields(f, call.User.UserID)
		if err != nil {
			return nil, err
		}
		if ni.CaseID, err = f.Required("case"); err != nil {
			return nil, err
		}
		issue, err := s.svc.AttachIssue(ctx, ni)
		if err != nil {
			return nil, err
		}
		attached = append(attached, issue)
	}
	return s.issueStructs(attached)
}

// caseDetachIssue removes every listed issue key from every listed case.
func (s *Server) caseDetachIssue(ctx context.Context, call *Call) (any, error) {
	return nil, eachPair(call.Args, func(caseID, key string) error {
		return s.svc.DetachIssue(ctx, caseID, key)
	})
}

func (s *Server) caseGetIssues(_ context.Context, call *Call) (any, error) {
	ids, err := call.Args.List(0)
	if err != nil {
		return nil, err
	}
	var all []*types.Issue
	for _, id := range ids {
		issues, err := s.svc.ListIssues(id, "")
		if err != nil {
			return nil, err
		}
		all = append(all, issues...)
	}
	return s.issueStructs(all)
}

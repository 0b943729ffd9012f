package rpc

import (
	"context"
	"fmt"
	"slices"

	"github.com/mesh-intelligence/nitrate/internal/tcms"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// Values of the status field of TestRun.update.
const (
	runStatusRunning  = 0
	runStatusFinished = 1
)

func (s *Server) registerRun() {
	s.Register(Method{Name: "TestRun.create", Perm: types.PermAddRun, Handler: s.runCreate})
	s.Register(Method{Name: "TestRun.get", Handler: s.runGet})
	s.Register(Method{Name: "TestRun.filter", Handler: s.runFilter})
	s.Register(Method{Name: "TestRun.update", Perm: types.PermChangeRun, Handler: s.runUpdate})
	s.Register(Method{Name: "TestRun.add_cases", Perm: types.PermAddCaseRun, Handler: s.runAddCases})
	s.Register(Method{Name: "TestRun.remove_cases", Perm: types.PermDeleteCaseRun, Handler: s.runRemoveCases})
	s.Register(Method{Name: "TestRun.get_test_case_runs", Handler: s.runGetCaseRuns})
	s.Register(Method{Name: "TestRun.add_tag", Perm: types.PermAddRunTag, Handler: s.runAddTag})
	s.Register(Method{Name: "TestRun.get_tags", Handler: s.runGetTags})
	s.Register(Method{Name: "TestRun.get_stats", Handler: s.runGetStats})
}

// resolveBuild finds a build of the product by ID or name.
func (s *Server) resolveBuild(productID, ref string) (*types.Build, error) {
	builds, err := s.svc.ListBuilds(productID, false)
	if err != nil {
		return nil, err
	}
	for _, b := range builds {
		if b.BuildID == ref || b.Name == ref {
			return b, nil
		}
	}
	return nil, fmt.Errorf("build %q of product %s: %w", ref, productID, types.ErrInvalidReference)
}

// runCreate takes {plan, build, manager, summary, product_version,
// default_tester, estimated_time, notes, auto_update_run_status, case,
// tag}. Without cases the run gets the plan's confirmed cases.
func (s *Server) runCreate(ctx context.Context, call *Call) (any, error) {
	f, err := call.Args.Struct(0)
	if err != nil {
		return nil, err
	}
	nr := tcms.NewRun{}
	if nr.PlanID, err = f.Required("plan"); err != nil {
		return nil, err
	}
	plan, err := s.svc.GetPlan(nr.PlanID)
	if err != nil {
		return nil, err
	}
	if nr.Summary, err = f.Required("summary"); err != nil {
		return nil, err
	}
	buildRef, err := f.Required("build")
	if err != nil {
		return nil, err
	}
	b, err := s.resolveBuild(plan.ProductID, buildRef)
	if err != nil {
		return nil, err
	}
	nr.BuildID = b.BuildID
	if f.Has("product_version") {
		ref, err := f.Required("product_version")
		if err != nil {
			return nil, err
		}
		v, err := s.resolveVersion(plan.ProductID, ref)
		if err != nil {
			return nil, err
		}
		nr.ProductVersionID = v.VersionID
	}
	if nr.ManagerID, err = s.userIDField(f, "manager", call.User.UserID); err != nil {
		return nil, err
	}
	if nr.DefaultTesterID, err = s.userIDField(f, "default_tester", ""); err != nil {
		return nil, err
	}
	est, err := f.Int("estimated_time", 0)
	if err != nil {
		return nil, err
	}
	nr.EstimatedTime = int64(est)
	if nr.Notes, err = f.String("notes"); err != nil {
		return nil, err
	}
	if nr.AutoUpdateRunStatus, err = f.Bool("auto_update_run_status", false); err != nil {
		return nil, err
	}
	if nr.CaseIDs, err = f.List("case"); err != nil {
		return nil, err
	}
	if nr.Tags, err = f.List("tag"); err != nil {
		return nil, err
	}
	r, err := s.svc.CreateRun(ctx, nr)
	if err != nil {
		return nil, err
	}
	return runStruct(r), nil
}

func (s *Server) runGet(_ context.Context, call *Call) (any, error) {
	id, err := call.Args.String(0)
	if err != nil {
		return nil, err
	}
	r, err := s.svc.GetRun(id)
	if err != nil {
		return nil, err
	}
	return runStruct(r), nil
}

func (s *Server) runFilter(_ context.Context, call *Call) (any, error) {
	filter, err := filterArg(call.Args, 0)
	if err != nil {
		return nil, err
	}
	runs, err := s.svc.ListRuns(filter)
	if err != nil {
		return nil, err
	}
	return list(runs, runStruct), nil
}

// runUpdate applies {summary, build, manager, default_tester, notes,
// estimated_time, product_version, auto_update_run_status, status} to each
// listed run. status 1 finishes the run and 0 reopens it.
func (s *Server) runUpdate(ctx context.Context, call *Call) (any, error) {
	ids, err := call.Args.List(0)
	if err != nil {
		return nil, err
	}
	f, err := call.Args.Struct(1)
	if err != nil {
		return nil, err
	}
	status, err := f.Int("status", -1)
	if err != nil {
		return nil, err
	}
	if status != -1 && status != runStatusRunning && status != runStatusFinished {
		return nil, fmt.Errorf("%w: status must be 0 or 1", ErrArgs)
	}

	out := make([]any, 0, len(ids))
	for _, id := range ids {
		r, err := s.svc.UpdateRun(ctx, id, func(r *types.TestRun) error {
			return s.applyRunFields(r, f)
		})
		if err != nil {
			return nil, err
		}
		switch status {
		case runStatusFinished:
			r, err = s.svc.FinishRun(ctx, id, call.User.UserID)
		case runStatusRunning:
			r, err = s.svc.ReopenRun(ctx, id)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, runStruct(r))
	}
	return out, nil
}

func (s *Server) applyRunFields(r *types.TestRun, f Fields) error {
	plan, err := s.svc.GetPlan(r.PlanID)
	if err != nil {
		return err
	}
	if f.Has("summary") {
		if r.Summary, err = f.Required("summary"); err != nil {
			return err
		}
	}
	if f.Has("build") {
		ref, err := f.Required("build")
		if err != nil {
			return err
		}
		b, err := s.resolveBuild(plan.ProductID, ref)
		if err != nil {
			return err
		}
		r.BuildID = b.BuildID
	}
	if f.Has("product_version") {
		ref, err := f.Required("product_version")
		if err != nil {
			return err
		}
		v, err := s.resolveVersion(plan.ProductID, ref)
		if err != nil {
			return err
		}
		r.ProductVersionID = v.VersionID
	}
	if r.ManagerID, err = s.userIDField(f, "manager", r.ManagerID); err != nil {
		return err
	}
	if r.DefaultTesterID, err = s.userIDField(f, "default_tester", r.DefaultTesterID); err != nil {
		return err
	}
	if f.Has("notes") {
		if r.Notes, err = f.String("notes"); err != nil {
			return err
		}
	}
	est, err := f.Int("estimated_time", int(r.EstimatedTime))
	if err != nil {
		return err
	}
	r.EstimatedTime = int64(est)
	r.AutoUpdateRunStatus, err = f.Bool("auto_update_run_status", r.AutoUpdateRunStatus)
	return err
}

// runAddCases adds every listed case to every listed run.
func (s *Server) runAddCases(ctx context.Context, call *Call) (any, error) {
	runIDs, err := call.Args.List(0)
	if err != nil {
		return nil, err
	}
	caseIDs, err := call.Args.List(1)
	if err != nil {
		return nil, err
	}
	var added []*types.CaseRun
	for _, runID := range runIDs {
		crs, err := s.svc.AddCasesToRun(ctx, runID, caseIDs...)
		if err != nil {
			return nil, err
		}
		added = append(added, crs...)
	}
	return list(added, caseRunStruct), nil
}

// runRemoveCases deletes the case-runs of the listed cases from every
// listed run.
func (s *Server) runRemoveCases(ctx context.Context, call *Call) (any, error) {
	runIDs, err := call.Args.List(0)
	if err != nil {
		return nil, err
	}
	caseIDs, err := call.Args.List(1)
	if err != nil {
		return nil, err
	}
	for _, runID := range runIDs {
		caseRuns, err := s.svc.RunCaseRuns(runID)
		if err != nil {
			return nil, err
		}
		var doomed []string
		for _, cr := range caseRuns {
			if slices.Contains(caseIDs, cr.CaseID) {
				doomed = append(doomed, cr.CaseRunID)
			}
		}
		if err := s.svc.RemoveCaseRuns(ctx, runID, doomed...); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (s *Server) runGetCaseRuns(_ context.Context, call *Call) (any, error) {
	id, err := call.Args.String(0)
	if err != nil {
		return nil, err
	}
	if _, err := s.svc.GetRun(id); err != nil {
		return nil, err
	}
	caseRuns, err := s.svc.RunCaseRuns(id)
	if err != nil {
		return nil, err
	}
	return list(caseRuns, caseRunStruct), nil
}

func (s *Server) runAddTag(ctx context.Context, call *Call) (any, error) {
	return nil, eachPair(call.Args, func(id, tag string) error {
		return s.svc.AddRunTag(ctx, id, tag)
	})
}

func (s *Server) runGetTags(_ context.Context, call *Call) (any, error) {
	id, err := call.Args.String(0)
	if err != nil {
		return nil, err
	}
	tags, err := s.svc.RunTags(id)
	if err != nil {
		return nil, err
	}
	return list(tags, tagStruct), nil
}

func (s *Server) runGetStats(_ context.Context, call *Call) (any, error) {
	id, err := call.Args.String(0)
	if err != nil {
		return nil, err
	}
	if _, err := s.svc.GetRun(id); err != nil {
		return nil, err
	}
	summary, err := s.svc.RunStats(id)
	if err != nil {
		return nil, err
	}
	return summaryStruct(summary), nil
}

package rpc

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

func (s *Server) registerCaseRun() {
	s.Register(Method{Name: "TestCaseRun.get", Handler: s.caseRunGet})
	s.Register(Method{Name: "TestCaseRun.filter", Handler: s.caseRunFilter})
	s.Register(Method{Name: "TestCaseRun.update", Perm: types.PermChangeCaseRun, Handler: s.caseRunUpdate})
	s.Register(Method{Name: "TestCaseRun.add_comment", Perm: types.PermAddComment, Handler: s.caseRunAddComment})
	s.Register(Method{Name: "TestCaseRun.get_comments", Handler: s.caseRunGetComments})
	s.Register(Method{Name: "TestCaseRun.attach_issue", Perm: types.PermAddIssue, Handler: s.caseRunAttachIssue})
	s.Register(Method{Name: "TestCaseRun.get_issues", Handler: s.caseRunGetIssues})
	s.Register(Method{Name: "TestCaseRun.attach_log", Perm: types.PermAddLink, Handler: s.caseRunAttachLog})
	s.Register(Method{Name: "TestCaseRun.detach_log", Perm: types.PermDeleteLink, Handler: s.caseRunDetachLog})
	s.Register(Method{Name: "TestCaseRun.get_logs", Handler: s.caseRunGetLogs})
}

func (s *Server) caseRunGet(_ context.Context, call *Call) (any, error) {
	id, err := call.Args.String(0)
	if err != nil {
		return nil, err
	}
	cr, err := s.svc.GetCaseRun(id)
	if err != nil {
		return nil, err
	}
	return caseRunStruct(cr), nil
}

func (s *Server) caseRunFilter(_ context.Context, call *Call) (any, error) {
	filter, err := filterArg(call.Args, 0)
	if err != nil {
		return nil, err
	}
	caseRuns, err := s.svc.ListCaseRuns(filter)
	if err != nil {
		return nil, err
	}
	return list(caseRuns, caseRunStruct), nil
}

// caseRunUpdate applies {case_run_status, assignee, notes, sortkey} to each
// listed case-run. A status change records the caller as the tester.
func (s *Server) caseRunUpdate(ctx context.Context, call *Call) (any, error) {
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
		cr, err := s.svc.GetCaseRun(id)
		if err != nil {
			return nil, err
		}
		if f.Has("assignee") {
			assignee, err := s.userIDField(f, "assignee", "")
			if err != nil {
				return nil, err
			}
			if cr, err = s.svc.AssignCaseRun(ctx, id, assignee); err != nil {
				return nil, err
			}
		}
		if f.Has("notes") {
			notes, err := f.String("notes")
			if err != nil {
				return nil, err
			}
			if cr, err = s.svc.UpdateCaseRunNotes(ctx, id, notes); err != nil {
				return nil, err
			}
		}
		if f.Has("sortkey") {
			key, err := f.Int("sortkey", 0)
			if err != nil {
				return nil, err
			}
			if cr, err = s.svc.SetCaseRunSortKey(ctx, id, key); err != nil {
				return nil, err
			}
		}
		if f.Has("case_run_status") {
			status, err := f.Required("case_run_status")
			if err != nil {
				return nil, err
			}
			if cr, err = s.svc.UpdateCaseRunStatus(ctx, id, status, call.User.UserID); err != nil {
				return nil, err
			}
		}
		out = append(out, caseRunStruct(cr))
	}
	return out, nil
}

// caseRunAddComment posts the same comment on every listed case-run.
func (s *Server) caseRunAddComment(ctx context.Context, call *Call) (any, error) {
	ids, err := call.Args.List(0)
	if err != nil {
		return nil, err
	}
	text, err := call.Args.String(1)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		c, err := s.svc.PostComment(ctx, types.ObjectCaseRun, id, call.User.UserID, text)
		if err != nil {
			return nil, err
		}
		out = append(out, commentStruct(c))
	}
	return out, nil
}

func (s *Server) caseRunGetComments(_ context.Context, call *Call) (any, error) {
	id, err := call.Args.String(0)
	if err != nil {
		return nil, err
	}
	if _, err := s.svc.GetCaseRun(id); err != nil {
		return nil, err
	}
	comments, err := s.svc.ListComments(types.ObjectCaseRun, id)
	if err != nil {
		return nil, err
	}
	return list(comments, commentStruct), nil
}

// caseRunAttachIssue takes one or more {case_run, tracker, issue_key,
// summary, description} structs.
func (s *Server) caseRunAttachIssue(ctx context.Context, call *Call) (any, error) {
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
		if ni.CaseRunID, err = f.Required("case_run"); err != nil {
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

func (s *Server) caseRunGetIssues(_ context.Context, call *Call) (any, error) {
	ids, err := call.Args.List(0)
	if err != nil {
		return nil, err
	}
	var all []*types.Issue
	for _, id := range ids {
		issues, err := s.svc.ListIssues("", id)
		if err != nil {
			return nil, err
		}
		all = append(all, issues...)
	}
	return s.issueStructs(all)
}

// caseRunAttachLog takes a case-run ID, a name and a URL.
func (s *Server) caseRunAttachLog(ctx context.Context, call *Call) (any, error) {
	id, err := call.Args.String(0)
	if err != nil {
		return nil, err
	}
	name, err := call.Args.String(1)
	if err != nil {
		return nil, err
	}
	url, err := call.Args.String(2)
	if err != nil {
		return nil, err
	}
	l, err := s.svc.AddLinkReference(ctx, types.ObjectCaseRun, id, name, url)
	if err != nil {
		return nil, err
	}
	return linkRefStruct(l), nil
}

// caseRunDetachLog takes a case-run ID and the link ID to remove.
func (s *Server) caseRunDetachLog(ctx context.Context, call *Call) (any, error) {
	id, err := call.Args.String(0)
	if err != nil {
		return nil, err
	}
	linkID, err := call.Args.String(1)
	if err != nil {
		return nil, err
	}
	l, err := s.svc.GetLinkReference(linkID)
	if err != nil {
		return nil, err
	}
	if l.ObjectType != types.ObjectCaseRun || l.ObjectID != id {
		return nil, fmt.Errorf("link %s is not attached to case-run %s: %w", linkID, id, types.ErrNotFound)
	}
	return nil, s.svc.RemoveLinkReference(ctx, linkID)
}

func (s *Server) caseRunGetLogs(_ context.Context, call *Call) (any, error) {
	id, err := call.Args.String(0)
	if err != nil {
		return nil, err
	}
	links, err := s.svc.ListLinkReferences(types.ObjectCaseRun, id)
	if err != nil {
		return nil, err
	}
	return list(links, linkRefStruct), nil
}

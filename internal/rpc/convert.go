package rpc

import (
	"time"

	"github.com/mesh-intelligence/nitrate/internal/stats"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// timeLayout is how times are serialized in responses.
const timeLayout = "2006-01-02 15:04:05"

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func fmtTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return fmtTime(*t)
}

// list converts entities with fn.
func list[T any](items []*T, fn func(*T) map[string]any) []any {
	out := make([]any, len(items))
	for i, e := range items {
		out[i] = fn(e)
	}
	return out
}

func userStruct(u *types.User) map[string]any {
	perms := u.Permissions
	if perms == nil {
		perms = []string{}
	}
	return map[string]any{
		"user_id":      u.UserID,
		"username":     u.Username,
		"email":        u.Email,
		"is_superuser": u.IsSuperuser,
		"permissions":  perms,
		"created_at":   fmtTime(u.CreatedAt),
	}
}

func productStruct(p *types.Product) map[string]any {
	return map[string]any{
		"product_id":        p.ProductID,
		"name":              p.Name,
		"classification_id": p.ClassificationID,
		"description":       p.Description,
		"created_at":        fmtTime(p.CreatedAt),
	}
}

func versionStruct(v *types.Version) map[string]any {
	return map[string]any{"version_id": v.VersionID, "product_id": v.ProductID, "value": v.Value}
}

func buildStruct(b *types.Build) map[string]any {
	return map[string]any{
		"build_id":    b.BuildID,
		"product_id":  b.ProductID,
		"name":        b.Name,
		"description": b.Description,
		"is_active":   b.IsActive,
	}
}

func componentStruct(c *types.Component) map[string]any {
	return map[string]any{
		"component_id":     c.ComponentID,
		"product_id":       c.ProductID,
		"name":             c.Name,
		"initial_owner_id": c.InitialOwnerID,
		"description":      c.Description,
	}
}

func categoryStruct(c *types.Category) map[string]any {
	return map[string]any{
		"category_id": c.CategoryID,
		"product_id":  c.ProductID,
		"name":        c.Name,
		"description": c.Description,
	}
}

func tagStruct(t *types.Tag) map[string]any {
	return map[string]any{"tag_id": t.TagID, "name": t.Name}
}

func planStruct(p *types.TestPlan) map[string]any {
	return map[string]any{
		"plan_id":            p.PlanID,
		"name":               p.Name,
		"product_id":         p.ProductID,
		"product_version_id": p.ProductVersionID,
		"type_id":            p.TypeID,
		"author_id":          p.AuthorID,
		"owner_id":           p.OwnerID,
		"parent_id":          p.ParentID,
		"is_active":          p.IsActive,
		"extra_link":         p.ExtraLink,
		"create_date":        fmtTime(p.CreatedAt),
	}
}

func planTextStruct(t *types.PlanText) map[string]any {
	return map[string]any{
		"plan_id":     t.PlanID,
		"version":     t.Version,
		"author_id":   t.AuthorID,
		"text":        t.Text,
		"checksum":    t.Checksum,
		"create_date": fmtTime(t.CreatedAt),
	}
}

func caseStruct(c *types.TestCase) map[string]any {
	return map[string]any{
		"case_id":               c.CaseID,
		"summary":               c.Summary,
		"case_status":           c.Status,
		"category_id":           c.CategoryID,
		"priority":              c.Priority,
		"author_id":             c.AuthorID,
		"default_tester_id":     c.DefaultTesterID,
		"reviewer_id":           c.ReviewerID,
		"is_automated":          c.IsAutomated,
		"is_automated_proposed": c.IsAutomatedProposed,
		"script":                c.Script,
		"arguments":             c.Arguments,
		"extra_link":            c.ExtraLink,
		"requirement":           c.Requirement,
		"alias":                 c.Alias,
		"estimated_time":        c.EstimatedTime,
		"notes":                 c.Notes,
		"create_date":           fmtTime(c.CreatedAt),
	}
}

func caseTextStruct(t *types.CaseText) map[string]any {
	return map[string]any{
		"case_id":            t.CaseID,
		"case_text_version":  t.Version,
		"author_id":          t.AuthorID,
		"action":             t.Action,
		"effect":             t.Effect,
		"setup":              t.Setup,
		"breakdown":          t.Breakdown,
		"action_checksum":    t.ActionChecksum,
		"effect_checksum":    t.EffectChecksum,
		"setup_checksum":     t.SetupChecksum,
		"breakdown_checksum": t.BreakdownChecksum,
		"create_date":        fmtTime(t.CreatedAt),
	}
}

func runStruct(r *types.TestRun) map[string]any {
	return map[string]any{
		"run_id":                 r.RunID,
		"summary":                r.Summary,
		"plan_id":                r.PlanID,
		"build_id":               r.BuildID,
		"product_version_id":     r.ProductVersionID,
		"manager_id":             r.ManagerID,
		"default_tester_id":      r.DefaultTesterID,
		"start_date":             fmtTime(r.StartDate),
		"stop_date":              fmtTimePtr(r.StopDate),
		"estimated_time":         r.EstimatedTime,
		"notes":                  r.Notes,
		"auto_update_run_status": r.AutoUpdateRunStatus,
	}
}

func caseRunStruct(cr *types.CaseRun) map[string]any {
	return map[string]any{
		"case_run_id":       cr.CaseRunID,
		"run_id":            cr.RunID,
		"case_id":           cr.CaseID,
		"case_text_version": cr.CaseTextVersion,
		"assignee_id":       cr.AssigneeID,
		"tested_by_id":      cr.TestedByID,
		"case_run_status":   cr.Status,
		"build_id":          cr.BuildID,
		"environment_id":    cr.EnvironmentID,
		"sortkey":           cr.SortKey,
		"close_date":        fmtTimePtr(cr.CloseDate),
		"notes":             cr.Notes,
	}
}

func commentStruct(c *types.Comment) map[string]any {
	return map[string]any{
		"comment_id":  c.CommentID,
		"object_type": c.ObjectType,
		"object_id":   c.ObjectID,
		"user_id":     c.UserID,
		"comment":     c.Text,
		"submit_date": fmtTime(c.SubmittedAt),
		"is_removed":  c.IsRemoved,
	}
}

func linkRefStruct(l *types.LinkReference) map[string]any {
	return map[string]any{
		"link_id":     l.LinkID,
		"name":        l.Name,
		"url":         l.URL,
		"object_type": l.ObjectType,
		"object_id":   l.ObjectID,
		"create_date": fmtTime(l.CreatedAt),
	}
}

func issueStruct(i *types.Issue, url string) map[string]any {
	return map[string]any{
		"issue_id":    i.IssueID,
		"issue_key":   i.IssueKey,
		"tracker_id":  i.TrackerID,
		"case_id":     i.CaseID,
		"case_run_id": i.CaseRunID,
		"summary":     i.Summary,
		"description": i.Description,
		"url":         url,
	}
}

func summaryStruct(s stats.Summary) map[string]any {
	counts := make(map[string]any, len(s.Counts))
	for k, v := range s.Counts {
		counts[k] = v
	}
	percents := make(map[string]any, len(s.Percents))
	for k, v := range s.Percents {
		percents[k] = v
	}
	return map[string]any{
		"run_id":                      s.RunID,
		"counts":                      counts,
		"percents":                    percents,
		"total":                       s.Total,
		"complete":                    s.Complete,
		"failure":                     s.Failure,
		"complete_percent":            s.CompletePercent,
		"failure_percent_in_complete": s.FailurePercentInComplete,
		"failure_percent_in_total":    s.FailurePercentInTotal,
	}
}

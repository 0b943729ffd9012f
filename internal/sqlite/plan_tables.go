// This file declares the table mappings for plans, cases and their
// versioned texts.
package sqlite

import (
	"database/sql"
	"time"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

var plansDef = entityDef[types.TestPlan]{
	table:    types.TablePlans,
	idColumn: "plan_id",
	columns: []string{
		"name", "product_id", "product_version_id", "type_id", "author_id",
		"owner_id", "parent_id", "is_active", "extra_link", "created_at",
	},
	filters: map[string]string{
		"plan_id":            "plan_id",
		"name":               "name",
		"product_id":         "product_id",
		"product_version_id": "product_version_id",
		"type_id":            "type_id",
		"author_id":          "author_id",
		"owner_id":           "owner_id",
		"parent_id":          "parent_id",
		"is_active":          "is_active",
	},
	orderBy: "created_at ASC, plan_id ASC",
	id:      func(p *types.TestPlan) *string { return &p.PlanID },
	values: func(p *types.TestPlan) []any {
		return []any{
			p.Name, p.ProductID, p.ProductVersionID, p.TypeID, p.AuthorID,
			nullable(p.OwnerID), nullable(p.ParentID), boolToInt(p.IsActive), p.ExtraLink,
			formatTime(p.CreatedAt),
		}
	},
	scan: func(s scanner) (*types.TestPlan, error) {
		var p types.TestPlan
		var owner, parent sql.NullString
		var createdAt string
		if err := s.Scan(
			&p.PlanID, &p.Name, &p.ProductID, &p.ProductVersionID, &p.TypeID, &p.AuthorID,
			&owner, &parent, &p.IsActive, &p.ExtraLink, &createdAt,
		); err != nil {
			return nil, err
		}
		p.OwnerID = owner.String
		p.ParentID = parent.String
		var err error
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		return &p, nil
	},
	validate: func(p *types.TestPlan) error {
		if p.Name == "" {
			return types.ErrInvalidName
		}
		if p.ProductID == "" || p.ProductVersionID == "" || p.TypeID == "" || p.AuthorID == "" {
			return types.ErrInvalidReference
		}
		return nil
	},
	create: func(p *types.TestPlan, now time.Time) {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
	},
	cascade: []string{
		"DELETE FROM comments WHERE object_type = 'caserun' AND object_id IN (SELECT cr.case_run_id FROM case_runs cr JOIN runs r ON r.run_id = cr.run_id WHERE r.plan_id = ?)",
		"DELETE FROM link_references WHERE object_type = 'caserun' AND object_id IN (SELECT cr.case_run_id FROM case_runs cr JOIN runs r ON r.run_id = cr.run_id WHERE r.plan_id = ?)",
		"DELETE FROM comments WHERE object_type = 'run' AND object_id IN (SELECT run_id FROM runs WHERE plan_id = ?)",
		"DELETE FROM links WHERE from_id IN (SELECT run_id FROM runs WHERE plan_id = ?)",
		"DELETE FROM runs WHERE plan_id = ?",
		"DELETE FROM comments WHERE object_type = 'plan' AND object_id = ?",
		"DELETE FROM link_references WHERE object_type = 'plan' AND object_id = ?",
		"DELETE FROM links WHERE from_id = ?",
	},
}

var planTextsDef = entityDef[types.PlanText]{
	table:    types.TablePlanTexts,
	idColumn: "plan_text_id",
	columns:  []string{"plan_id", "version", "author_id", "text", "checksum", "created_at"},
	filters: map[string]string{
		"plan_id": "plan_id",
		"version": "version",
	},
	orderBy: "plan_id ASC, version ASC",
	id:      func(t *types.PlanText) *string { return &t.PlanTextID },
	values: func(t *types.PlanText) []any {
		return []any{t.PlanID, t.Version, t.AuthorID, t.Text, t.Checksum, formatTime(t.CreatedAt)}
	},
	scan: func(s scanner) (*types.PlanText, error) {
		var t types.PlanText
		var createdAt string
		if err := s.Scan(&t.PlanTextID, &t.PlanID, &t.Version, &t.AuthorID, &t.Text, &t.Checksum, &createdAt); err != nil {
			return nil, err
		}
		var err error
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		return &t, nil
	},
	validate: func(t *types.PlanText) error {
		if t.PlanID == "" || t.AuthorID == "" {
			return types.ErrInvalidReference
		}
		if t.Version < 1 {
			return types.ErrInvalidData
		}
		return nil
	},
	create: func(t *types.PlanText, now time.Time) {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if t.Checksum == "" {
			t.Checksum = types.Checksum(t.Text)
		}
	},
}

var casesDef = entityDef[types.TestCase]{
	table:    types.TableCases,
	idColumn: "case_id",
	columns: []string{
		"summary", "status", "category_id", "priority", "author_id", "default_tester_id",
		"reviewer_id", "is_automated", "is_automated_proposed", "script", "arguments",
		"extra_link", "requirement", "alias", "estimated_time", "notes", "created_at",
	},
	filters: map[string]string{
		"case_id":           "case_id",
		"summary":           "summary",
		"status":            "status",
		"category_id":       "category_id",
		"priority":          "priority",
		"author_id":         "author_id",
		"default_tester_id": "default_tester_id",
		"reviewer_id":       "reviewer_id",
		"is_automated":      "is_automated",
		"alias":             "alias",
	},
	orderBy: "created_at ASC, case_id ASC",
	id:      func(c *types.TestCase) *string { return &c.CaseID },
	values: func(c *types.TestCase) []any {
		return []any{
			c.Summary, c.Status, c.CategoryID, c.Priority, c.AuthorID,
			nullable(c.DefaultTesterID), nullable(c.ReviewerID), c.IsAutomated,
			boolToInt(c.IsAutomatedProposed), c.Script, c.Arguments, c.ExtraLink,
			c.Requirement, c.Alias, c.EstimatedTime, c.Notes, formatTime(c.CreatedAt),
		}
	},
	scan: func(s scanner) (*types.TestCase, error) {
		var c types.TestCase
		var tester, reviewer sql.NullString
		var createdAt string
		if err := s.Scan(
			&c.CaseID, &c.Summary, &c.Status, &c.CategoryID, &c.Priority, &c.AuthorID,
			&tester, &reviewer, &c.IsAutomated, &c.IsAutomatedProposed, &c.Script,
			&c.Arguments, &c.ExtraLink, &c.Requirement, &c.Alias, &c.EstimatedTime,
			&c.Notes, &createdAt,
		); err != nil {
			return nil, err
		}
		c.DefaultTesterID = tester.String
		c.ReviewerID = reviewer.String
		var err error
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		return &c, nil
	},
	validate: func(c *types.TestCase) error {
		if err := c.Validate(); err != nil {
			return err
		}
		if c.CategoryID == "" || c.AuthorID == "" {
			return types.ErrInvalidReference
		}
		return nil
	},
	create: func(c *types.TestCase, now time.Time) {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if c.Status == "" {
			c.Status = types.CaseStatusProposed
		}
		if c.Priority == "" {
			c.Priority = "P3"
		}
	},
	cascade: []string{
		"DELETE FROM comments WHERE object_type = 'caserun' AND object_id IN (SELECT case_run_id FROM case_runs WHERE case_id = ?)",
		"DELETE FROM link_references WHERE object_type = 'caserun' AND object_id IN (SELECT case_run_id FROM case_runs WHERE case_id = ?)",
		"DELETE FROM case_runs WHERE case_id = ?",
		"DELETE FROM comments WHERE object_type = 'case' AND object_id = ?",
		"DELETE FROM link_references WHERE object_type = 'case' AND object_id = ?",
		"DELETE FROM links WHERE from_id = ? OR to_id = ?",
	},
}

var caseTextsDef = entityDef[types.CaseText]{
	table:    types.TableCaseTexts,
	idColumn: "case_text_id",
	columns: []string{
		"case_id", "version", "author_id", "action", "effect", "setup", "breakdown",
		"action_checksum", "effect_checksum", "setup_checksum", "breakdown_checksum", "created_at",
	},
	filters: map[string]string{
		"case_id": "case_id",
		"version": "version",
	},
	orderBy: "case_id ASC, version ASC",
	id:      func(t *types.CaseText) *string { return &t.CaseTextID },
	values: func(t *types.CaseText) []any {
		return []any{
			t.CaseID, t.Version, t.AuthorID, t.Action, t.Effect, t.Setup, t.Breakdown,
			t.ActionChecksum, t.EffectChecksum, t.SetupChecksum, t.BreakdownChecksum,
			formatTime(t.CreatedAt),
		}
	},
	scan: func(s scanner) (*types.CaseText, error) {
		var t types.CaseText
		var createdAt string
		if err := s.Scan(
			&t.CaseTextID, &t.CaseID, &t.Version, &t.AuthorID, &t.Action, &t.Effect,
			&t.Setup, &t.Breakdown, &t.ActionChecksum, &t.EffectChecksum,
			&t.SetupChecksum, &t.BreakdownChecksum, &createdAt,
		); err != nil {
			return nil, err
		}
		var err error
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		return &t, nil
	},
	validate: func(t *types.CaseText) error {
		if t.CaseID == "" || t.AuthorID == "" {
			return types.ErrInvalidReference
		}
		if t.Version < 1 {
			return types.ErrInvalidData
		}
		return nil
	},
	create: func(t *types.CaseText, now time.Time) {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		t.ComputeChecksums()
	},
}

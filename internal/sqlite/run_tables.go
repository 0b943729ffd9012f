// This file declares the table mappings for runs and case-runs.
package sqlite

import (
	"database/sql"
	"time"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

var runsDef = entityDef[types.TestRun]{
	table:    types.TableRuns,
	idColumn: "run_id",
	columns: []string{
		"summary", "plan_id", "build_id", "product_version_id", "manager_id",
		"default_tester_id", "start_date", "stop_date", "estimated_time", "notes",
		"auto_update_run_status",
	},
	filters: map[string]string{
		"run_id":             "run_id",
		"summary":            "summary",
		"plan_id":            "plan_id",
		"build_id":           "build_id",
		"product_version_id": "product_version_id",
		"manager_id":         "manager_id",
		"default_tester_id":  "default_tester_id",
	},
	orderBy: "start_date ASC, run_id ASC",
	id:      func(r *types.TestRun) *string { return &r.RunID },
	values: func(r *types.TestRun) []any {
		return []any{
			r.Summary, r.PlanID, r.BuildID, r.ProductVersionID, r.ManagerID,
			nullable(r.DefaultTesterID), formatTime(r.StartDate), formatTimePtr(r.StopDate),
			r.EstimatedTime, r.Notes, boolToInt(r.AutoUpdateRunStatus),
		}
	},
	scan: func(s scanner) (*types.TestRun, error) {
		var r types.TestRun
		var tester, stopDate sql.NullString
		var startDate string
		if err := s.Scan(
			&r.RunID, &r.Summary, &r.PlanID, &r.BuildID, &r.ProductVersionID, &r.ManagerID,
			&tester, &startDate, &stopDate, &r.EstimatedTime, &r.Notes, &r.AutoUpdateRunStatus,
		); err != nil {
			return nil, err
		}
		r.DefaultTesterID = tester.String
		var err error
		if r.StartDate, err = parseTime(startDate); err != nil {
			return nil, err
		}
		if r.StopDate, err = parseTimePtr(stopDate); err != nil {
			return nil, err
		}
		return &r, nil
	},
	validate: func(r *types.TestRun) error {
		if r.Summary == "" {
			return types.ErrInvalidName
		}
		if r.PlanID == "" || r.BuildID == "" || r.ProductVersionID == "" || r.ManagerID == "" {
			return types.ErrInvalidReference
		}
		return nil
	},
	create: func(r *types.TestRun, now time.Time) {
		if r.StartDate.IsZero() {
			r.StartDate = now
		}
	},
	cascade: []string{
		"DELETE FROM comments WHERE object_type = 'caserun' AND object_id IN (SELECT case_run_id FROM case_runs WHERE run_id = ?)",
		"DELETE FROM link_references WHERE object_type = 'caserun' AND object_id IN (SELECT case_run_id FROM case_runs WHERE run_id = ?)",
		"DELETE FROM comments WHERE object_type = 'run' AND object_id = ?",
		"DELETE FROM link_references WHERE object_type = 'run' AND object_id = ?",
		"DELETE FROM links WHERE from_id = ?",
	},
}

var caseRunsDef = entityDef[types.CaseRun]{
	table:    types.TableCaseRuns,
	idColumn: "case_run_id",
	columns: []string{
		"run_id", "case_id", "case_text_version", "assignee_id", "tested_by_id", "status",
		"build_id", "environment_id", "sort_key", "close_date", "notes",
	},
	filters: map[string]string{
		"case_run_id":  "case_run_id",
		"run_id":       "run_id",
		"case_id":      "case_id",
		"assignee_id":  "assignee_id",
		"tested_by_id": "tested_by_id",
		"status":       "status",
		"build_id":     "build_id",
	},
	orderBy: "sort_key ASC, case_run_id ASC",
	id:      func(cr *types.CaseRun) *string { return &cr.CaseRunID },
	values: func(cr *types.CaseRun) []any {
		return []any{
			cr.RunID, cr.CaseID, cr.CaseTextVersion, nullable(cr.AssigneeID),
			nullable(cr.TestedByID), cr.Status, cr.BuildID, cr.EnvironmentID, cr.SortKey,
			formatTimePtr(cr.CloseDate), cr.Notes,
		}
	},
	scan: func(s scanner) (*types.CaseRun, error) {
		var cr types.CaseRun
		var assignee, testedBy, closeDate sql.NullString
		if err := s.Scan(
			&cr.CaseRunID, &cr.RunID, &cr.CaseID, &cr.CaseTextVersion, &assignee, &testedBy,
			&cr.Status, &cr.BuildID, &cr.EnvironmentID, &cr.SortKey, &closeDate, &cr.Notes,
		); err != nil {
			return nil, err
		}
		cr.AssigneeID = assignee.String
		cr.TestedByID = testedBy.String
		var err error
		if cr.CloseDate, err = parseTimePtr(closeDate); err != nil {
			return nil, err
		}
		return &cr, nil
	},
	validate: func(cr *types.CaseRun) error {
		if !types.ValidCaseRunStatus(cr.Status) {
			return types.ErrInvalidStatus
		}
		if cr.RunID == "" || cr.CaseID == "" || cr.BuildID == "" {
			return types.ErrInvalidReference
		}
		return nil
	},
	create: func(cr *types.CaseRun, _ time.Time) {
		if cr.Status == "" {
			cr.Status = types.CaseRunIdle
		}
	},
	cascade: []string{
		"DELETE FROM comments WHERE object_type = 'caserun' AND object_id = ?",
		"DELETE FROM link_references WHERE object_type = 'caserun' AND object_id = ?",
	},
}

// This file implements types.Querier: searches that need LIKE or joins and
// the GROUP BY counts behind the statistics.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// where accumulates SQL conditions and their arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) eq(col, val string) {
	if val != "" {
		w.add(col+" = ?", val)
	}
}

func (w *where) like(col, val string) {
	if val != "" {
		w.add("LOWER("+col+") LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(val))+"%")
	}
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func limitSQL(n int) string {
	if n > 0 {
		return fmt.Sprintf(" LIMIT %d", n)
	}
	return ""
}

// queryAll runs a query against def's columns and hydrates every row.
func queryAll[T any](b *Backend, def entityDef[T], alias, tail string, args []any) ([]*T, error) {
	cols := make([]string, 0, len(def.columns)+1)
	cols = append(cols, alias+"."+def.idColumn)
	for _, c := range def.columns {
		cols = append(cols, alias+"."+c)
	}
	query := "SELECT " + strings.Join(cols, ", ") + " FROM " + def.table + " " + alias + tail

	rows, err := b.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", def.table, err)
	}
	defer rows.Close()

	out := []*T{}
	for rows.Next() {
		e, err := def.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating %s: %w", def.table, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", def.table, err)
	}
	return out, nil
}

// SearchCases returns cases matching q ordered by creation.
func (b *Backend) SearchCases(q types.CaseQuery) ([]*types.TestCase, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrCupboardDetached
	}

	var w where
	w.like("c.summary", q.Summary)
	w.eq("c.status", q.Status)
	w.eq("c.priority", q.Priority)
	w.eq("c.category_id", q.CategoryID)
	w.eq("c.author_id", q.AuthorID)
	if q.IsAutomated != nil {
		w.add("c.is_automated = ?", *q.IsAutomated)
	}
	if q.Tag != "" {
		w.add(`c.case_id IN (SELECT l.from_id FROM links l JOIN tags t ON t.tag_id = l.to_id
    WHERE l.link_type = 'case_tag' AND t.name = ?)`, q.Tag)
	}
	if q.PlanID != "" {
		w.add("c.case_id IN (SELECT to_id FROM links WHERE link_type = 'plan_case' AND from_id = ?)", q.PlanID)
	}
	tail := w.sql() + " ORDER BY c.created_at ASC, c.case_id ASC" + limitSQL(q.Limit)
	return queryAll(b, casesDef, "c", tail, w.args)
}

// SearchPlans returns plans matching q ordered by creation.
func (b *Backend) SearchPlans(q types.PlanQuery) ([]*types.TestPlan, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrCupboardDetached
	}

	var w where
	w.like("p.name", q.Name)
	w.eq("p.product_id", q.ProductID)
	w.eq("p.type_id", q.TypeID)
	w.eq("p.author_id", q.AuthorID)
	w.eq("p.owner_id", q.OwnerID)
	if q.IsActive != nil {
		w.add("p.is_active = ?", boolToInt(*q.IsActive))
	}
	if q.Tag != "" {
		w.add(`p.plan_id IN (SELECT l.from_id FROM links l JOIN tags t ON t.tag_id = l.to_id
    WHERE l.link_type = 'plan_tag' AND t.name = ?)`, q.Tag)
	}
	tail := w.sql() + " ORDER BY p.created_at ASC, p.plan_id ASC" + limitSQL(q.Limit)
	return queryAll(b, plansDef, "p", tail, w.args)
}

// SearchRuns returns runs matching q ordered by start date.
func (b *Backend) SearchRuns(q types.RunQuery) ([]*types.TestRun, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrCupboardDetached
	}

	var w where
	w.like("r.summary", q.Summary)
	w.eq("r.plan_id", q.PlanID)
	w.eq("r.build_id", q.BuildID)
	w.eq("r.manager_id", q.ManagerID)
	if q.Running != nil {
		if *q.Running {
			w.add("r.stop_date IS NULL")
		} else {
			w.add("r.stop_date IS NOT NULL")
		}
	}
	tail := w.sql() + " ORDER BY r.start_date ASC, r.run_id ASC" + limitSQL(q.Limit)
	return queryAll(b, runsDef, "r", tail, w.args)
}

// CaseRunStatusCounts groups the case-runs of the given runs by run and status
// in one query. Runs without case-runs are absent from the result.
func (b *Backend) CaseRunStatusCounts(runIDs ...string) (map[string]map[string]int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrCupboardDetached
	}

	out := make(map[string]map[string]int)
	if len(runIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(runIDs))
	for i, id := range runIDs {
		args[i] = id
	}
	rows, err := b.db.Query(
		"SELECT run_id, status, COUNT(*) FROM case_runs WHERE run_id IN ("+placeholders(len(runIDs))+") GROUP BY run_id, status",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("counting case-run statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var runID, status string
		var n int
		if err := rows.Scan(&runID, &status, &n); err != nil {
			return nil, fmt.Errorf("scanning case-run status count: %w", err)
		}
		if out[runID] == nil {
			out[runID] = make(map[string]int)
		}
		out[runID][status] = n
	}
	return out, rows.Err()
}

// CaseStatusCounts groups a plan's cases by case status.
func (b *Backend) CaseStatusCounts(planID string) (map[string]int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrCupboardDetached
	}

	rows, err := b.db.Query(`SELECT c.status, COUNT(*) FROM cases c
    JOIN links l ON l.to_id = c.case_id AND l.link_type = 'plan_case'
    WHERE l.from_id = ? GROUP BY c.status`, planID)
	if err != nil {
		return nil, fmt.Errorf("counting case statuses: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning case status count: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}

// AssigneeStatusCounts groups a run's case-runs by assignee and status.
func (b *Backend) AssigneeStatusCounts(runID string) (map[string]map[string]int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrCupboardDetached
	}

	rows, err := b.db.Query(
		"SELECT assignee_id, status, COUNT(*) FROM case_runs WHERE run_id = ? GROUP BY assignee_id, status",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("counting assignee statuses: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]int)
	for rows.Next() {
		var assignee sql.NullString
		var status string
		var n int
		if err := rows.Scan(&assignee, &status, &n); err != nil {
			return nil, fmt.Errorf("scanning assignee status count: %w", err)
		}
		if out[assignee.String] == nil {
			out[assignee.String] = make(map[string]int)
		}
		out[assignee.String][status] += n
	}
	return out, rows.Err()
}

// MaxPlanSortKey returns the largest sort key among a plan's cases.
func (b *Backend) MaxPlanSortKey(planID string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return 0, types.ErrCupboardDetached
	}

	var n sql.NullInt64
	err := b.db.QueryRow(
		"SELECT MAX(sort_key) FROM links WHERE link_type = 'plan_case' AND from_id = ?", planID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("reading max sort key: %w", err)
	}
	return int(n.Int64), nil
}

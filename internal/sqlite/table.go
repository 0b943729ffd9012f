package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// timeLayout stores timestamps as fixed-width UTC text so that string
// ordering in SQL matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// entityDef describes how one entity type maps onto one SQLite table.
type entityDef[T any] struct {
	table    string            // SQLite table name.
	idColumn string            // Primary key column.
	columns  []string          // Non-key columns in the order values() returns them.
	filters  map[string]string // Fetch filter key → column.
	orderBy  string            // Default ORDER BY clause for Fetch.

	id       func(*T) *string           // Pointer to the entity's ID field.
	values   func(*T) []any             // Column values matching columns.
	scan     func(scanner) (*T, error)  // Hydrates key + columns, in that order.
	validate func(*T) error             // Optional; runs before every write.
	create   func(*T, time.Time)        // Optional; applies defaults on create.
	cascade  []string                   // Statements run before delete; every ? binds the ID.
}

// table implements types.Table for a single entity type.
type table[T any] struct {
	backend *Backend
	def     entityDef[T]
}

// newUUID generates a UUID v7 string.
func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}

// tableName, keyColumn and allColumns describe the table for Dump/Restore.
func (t *table[T]) tableName() string { return t.def.table }
func (t *table[T]) keyColumn() string { return t.def.idColumn }
func (t *table[T]) allColumns() []string {
	return append([]string{t.def.idColumn}, t.def.columns...)
}

func (t *table[T]) selectSQL() string {
	return "SELECT " + t.def.idColumn + ", " + strings.Join(t.def.columns, ", ") + " FROM " + t.def.table
}

// Get retrieves an entity by ID.
// Returns ErrInvalidID if id is empty, ErrNotFound if not found.
func (t *table[T]) Get(id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if !t.backend.attached {
		return nil, types.ErrCupboardDetached
	}

	e, err := t.get(id)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (t *table[T]) get(id string) (*T, error) {
	row := t.backend.db.QueryRow(t.selectSQL()+" WHERE "+t.def.idColumn+" = ?", id)
	e, err := t.def.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s %s: %w", t.def.table, id, err)
	}
	return e, nil
}

// Set creates or updates an entity. If id is empty, generates a UUID v7 and
// applies the create defaults. Returns the entity ID and any error.
func (t *table[T]) Set(id string, data any) (string, error) {
	e, ok := data.(*T)
	if !ok || e == nil {
		return "", types.ErrInvalidData
	}
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if !t.backend.attached {
		return "", types.ErrCupboardDetached
	}

	isCreate := id == ""
	if isCreate {
		if t.def.create != nil {
			t.def.create(e, time.Now().UTC().Truncate(time.Microsecond))
		}
	}
	if t.def.validate != nil {
		if err := t.def.validate(e); err != nil {
			return "", err
		}
	}
	if isCreate {
		id = newUUID()
	}
	*t.def.id(e) = id

	var exists bool
	err := t.backend.db.QueryRow(
		"SELECT 1 FROM "+t.def.table+" WHERE "+t.def.idColumn+" = ?", id,
	).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("checking %s existence: %w", t.def.table, err)
	}

	values := t.def.values(e)
	if exists {
		sets := make([]string, len(t.def.columns))
		for i, c := range t.def.columns {
			sets[i] = c + " = ?"
		}
		_, err = t.backend.db.Exec(
			"UPDATE "+t.def.table+" SET "+strings.Join(sets, ", ")+" WHERE "+t.def.idColumn+" = ?",
			append(values, id)...,
		)
	} else {
		cols := append([]string{t.def.idColumn}, t.def.columns...)
		_, err = t.backend.db.Exec(
			"INSERT INTO "+t.def.table+" ("+strings.Join(cols, ", ")+") VALUES ("+placeholders(len(cols))+")",
			append([]any{id}, values...)...,
		)
	}
	if err != nil {
		if isCreate {
			*t.def.id(e) = ""
		}
		return "", mapConstraintError(fmt.Errorf("persisting %s: %w", t.def.table, err))
	}
	return id, nil
}

// Delete removes an entity and runs the table's cascade statements in one
// transaction. Returns ErrInvalidID if id is empty, ErrNotFound if not found.
func (t *table[T]) Delete(id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if !t.backend.attached {
		return types.ErrCupboardDetached
	}

	var exists bool
	err := t.backend.db.QueryRow(
		"SELECT 1 FROM "+t.def.table+" WHERE "+t.def.idColumn+" = ?", id,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking %s existence: %w", t.def.table, err)
	}

	tx, err := t.backend.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range t.def.cascade {
		args := make([]any, strings.Count(stmt, "?"))
		for i := range args {
			args[i] = id
		}
		if _, err := tx.Exec(stmt, args...); err != nil {
			return fmt.Errorf("cascading %s delete: %w", t.def.table, err)
		}
	}
	if _, err := tx.Exec("DELETE FROM "+t.def.table+" WHERE "+t.def.idColumn+" = ?", id); err != nil {
		return mapConstraintError(fmt.Errorf("deleting %s: %w", t.def.table, err))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s deletion: %w", t.def.table, err)
	}
	return nil
}

// Fetch returns entities matching the filter in the table's default order.
// A []string filter value matches any element; an empty slice matches nothing.
func (t *table[T]) Fetch(filter types.Filter) ([]any, error) {
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if !t.backend.attached {
		return nil, types.ErrCupboardDetached
	}

	query := t.selectSQL()
	var conditions []string
	var args []any
	limit, offset := 0, 0

	for _, key := range slices.Sorted(maps.Keys(filter)) {
		v := filter[key]
		switch key {
		case "limit", "offset":
			n, ok := toInt(v)
			if !ok {
				return nil, types.ErrInvalidFilter
			}
			if key == "limit" {
				limit = n
			} else {
				offset = n
			}
			continue
		}

		col, ok := t.def.filters[key]
		if !ok {
			return nil, types.ErrInvalidFilter
		}
		switch val := v.(type) {
		case string:
			conditions = append(conditions, col+" = ?")
			args = append(args, val)
		case []string:
			if len(val) == 0 {
				conditions = append(conditions, "1 = 0")
				continue
			}
			conditions = append(conditions, col+" IN ("+placeholders(len(val))+")")
			for _, s := range val {
				args = append(args, s)
			}
		case bool:
			conditions = append(conditions, col+" = ?")
			args = append(args, boolToInt(val))
		case int, int64:
			conditions = append(conditions, col+" = ?")
			args = append(args, val)
		default:
			return nil, types.ErrInvalidFilter
		}
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	if t.def.orderBy != "" {
		query += " ORDER BY " + t.def.orderBy
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
		if offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", offset)
		}
	} else if offset > 0 {
		query += fmt.Sprintf(" LIMIT -1 OFFSET %d", offset)
	}

	rows, err := t.backend.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", t.def.table, err)
	}
	defer rows.Close()

	results := []any{}
	for rows.Next() {
		e, err := t.def.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating %s: %w", t.def.table, err)
		}
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", t.def.table, err)
	}
	return results, nil
}

// mapConstraintError converts SQLite constraint failures into sentinel errors
// while keeping the driver message in the chain.
func mapConstraintError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", types.ErrDuplicateName, err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %v", types.ErrInvalidReference, err)
	}
	return err
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// toInt converts various numeric types to int.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullable maps the empty string to SQL NULL for optional foreign keys.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// This file implements Restore, the JSONL loader paired with Dump.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// Restore replaces the contents of every standard table with the JSONL files
// in dir. Loading is transactional: all tables load or the database is left
// unchanged. A missing file loads as an empty table. Malformed lines and
// records that violate a uniqueness constraint are skipped. Unknown fields
// are ignored. Foreign keys are checked once, at commit.
func (b *Backend) Restore(dir string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrCupboardDetached
	}

	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning restore transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("PRAGMA defer_foreign_keys = ON"); err != nil {
		return fmt.Errorf("deferring foreign keys for restore: %w", err)
	}

	for _, name := range slices.Backward(types.StandardTableNames) {
		if _, err := tx.Exec("DELETE FROM " + name); err != nil {
			return fmt.Errorf("clearing %s: %w", name, err)
		}
	}

	for _, name := range types.StandardTableNames {
		d, ok := b.tables[name].(dumpable)
		if !ok {
			return fmt.Errorf("restoring %s: %w", name, types.ErrTableNotFound)
		}
		records, err := readJSONL(filepath.Join(dir, jsonlFile(name)))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", jsonlFile(name), err)
		}
		if len(records) == 0 {
			continue
		}
		if err := insertRecords(tx, name, d.allColumns(), records); err != nil {
			return fmt.Errorf("loading %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mapConstraintError(fmt.Errorf("committing restore transaction: %w", err))
	}

	return seedPlanTypes(b.db)
}

// insertRecords inserts parsed JSONL records into a SQLite table. Only
// columns listed are extracted; extra fields from newer dumps do not cause
// errors.
func insertRecords(tx *sql.Tx, table string, columns []string, records []json.RawMessage) error {
	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(columns, ", "),
		placeholders(len(columns)),
	)

	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		return fmt.Errorf("preparing insert for %s: %w", table, err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var obj map[string]any
		if err := json.Unmarshal(rec, &obj); err != nil {
			continue
		}

		args := make([]any, len(columns))
		for i, col := range columns {
			val, ok := obj[col]
			if !ok {
				args[i] = nil
				continue
			}
			switch v := val.(type) {
			case map[string]any, []any:
				b, err := json.Marshal(v)
				if err != nil {
					args[i] = nil
					continue
				}
				args[i] = string(b)
			case float64:
				if v == float64(int64(v)) {
					args[i] = int64(v)
				} else {
					args[i] = v
				}
			default:
				args[i] = val
			}
		}

		if _, err := stmt.Exec(args...); err != nil {
			// Constraint violations skip the record.
			continue
		}
	}

	return nil
}

// This file provides JSONL read/write helpers with atomic persistence and
// the Dump operation built on them.
package sqlite

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// readJSONL reads a JSONL file and returns each non-empty, parseable line as
// a json.RawMessage. Malformed lines are skipped.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically writes records to a JSONL file using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing record: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// dumpable is implemented by every table accessor the backend registers.
type dumpable interface {
	tableName() string
	keyColumn() string
	allColumns() []string
}

// jsonlFile returns the dump file name for a table.
func jsonlFile(table string) string { return table + ".jsonl" }

// Dump writes every standard table to dir as one JSONL file per table.
// Each file is replaced atomically; rows keep their column names as keys.
func (b *Backend) Dump(dir string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.ErrCupboardDetached
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating dump dir: %w", err)
	}

	for _, name := range types.StandardTableNames {
		d, ok := b.tables[name].(dumpable)
		if !ok {
			return fmt.Errorf("dumping %s: %w", name, types.ErrTableNotFound)
		}
		records, err := b.dumpTable(d)
		if err != nil {
			return err
		}
		if err := writeJSONL(filepath.Join(dir, jsonlFile(name)), records); err != nil {
			return fmt.Errorf("writing %s: %w", jsonlFile(name), err)
		}
	}
	return nil
}

func (b *Backend) dumpTable(d dumpable) ([]json.RawMessage, error) {
	cols := d.allColumns()
	rows, err := b.db.Query(
		"SELECT " + strings.Join(cols, ", ") + " FROM " + d.tableName() + " ORDER BY " + d.keyColumn(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying %s for dump: %w", d.tableName(), err)
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning %s for dump: %w", d.tableName(), err)
		}
		rec := make(map[string]any, len(cols))
		for i, col := range cols {
			if raw, ok := vals[i].([]byte); ok {
				rec[col] = string(raw)
				continue
			}
			rec[col] = vals[i]
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s record: %w", d.tableName(), err)
		}
		records = append(records, data)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s for dump: %w", d.tableName(), err)
	}
	return records, nil
}

// Package sqlite implements the SQLite storage backend for Nitrate.
// The database file is the source of truth; JSONL files are used only for
// Dump and Restore.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// DBFile is the database file name inside DataDir.
const DBFile = "nitrate.db"

var _ types.Cupboard = (*Backend)(nil)

// Backend implements the Cupboard interface on a single SQLite database.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	tables   map[string]types.Table
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{
		tables: make(map[string]types.Table),
	}
}

// GetTable returns a Table interface for the specified table name.
// Returns ErrTableNotFound if the table name is not recognized.
// Returns ErrCupboardDetached if the backend is not attached.
func (b *Backend) GetTable(name string) (types.Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrCupboardDetached
	}

	table, ok := b.tables[name]
	if !ok {
		return nil, types.ErrTableNotFound
	}
	return table, nil
}

// Attach opens (or creates) DataDir/nitrate.db, applies the schema, seeds
// the built-in plan types and creates table accessors.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}

	if err := config.Validate(); err != nil {
		return err
	}

	if config.DataDir != "" {
		if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", config.DSN(DBFile))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	for _, stmt := range schemaDDL {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	for _, stmt := range indexDDL {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("creating index: %w", err)
		}
	}

	if err := seedPlanTypes(db); err != nil {
		db.Close()
		return fmt.Errorf("seeding plan types: %w", err)
	}

	b.db = db
	b.config = config
	b.attached = true

	register(b, usersDef)
	register(b, classificationsDef)
	register(b, productsDef)
	register(b, versionsDef)
	register(b, buildsDef)
	register(b, componentsDef)
	register(b, categoriesDef)
	register(b, planTypesDef)
	register(b, plansDef)
	register(b, planTextsDef)
	register(b, casesDef)
	register(b, caseTextsDef)
	register(b, runsDef)
	register(b, caseRunsDef)
	register(b, tagsDef)
	register(b, envGroupsDef)
	register(b, envPropertiesDef)
	register(b, envValuesDef)
	register(b, trackersDef)
	register(b, issuesDef)
	register(b, commentsDef)
	register(b, linkReferencesDef)
	register(b, linksDef)

	return nil
}

// register installs a table accessor for def. The caller must hold b.mu.
func register[T any](b *Backend, def entityDef[T]) {
	b.tables[def.table] = &table[T]{backend: b, def: def}
}

// Detach closes the SQLite connection. After Detach, all operations return
// ErrCupboardDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return fmt.Errorf("closing database: %w", err)
		}
		b.db = nil
	}

	b.attached = false
	b.tables = make(map[string]types.Table)

	return nil
}

// DataDir returns the directory the backend is attached to.
func (b *Backend) DataDir() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config.DataDir
}

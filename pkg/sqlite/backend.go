// Package sqlite provides the public API for the SQLite storage backend.
// This package exposes the factory function for creating SQLite backends
// while keeping implementation details internal.
package sqlite

import (
	"github.com/mesh-intelligence/nitrate/internal/sqlite"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// Backend is a Cupboard that can also dump and restore itself as JSONL.
type Backend interface {
	types.Cupboard

	// Dump writes one <table>.jsonl file per standard table into dir.
	Dump(dir string) error
	// Restore replaces every table with the JSONL files in dir.
	Restore(dir string) error
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	backend := sqlite.NewBackend()
//	err := backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".nitrate-db",
//	})
//	defer backend.Detach()
func NewBackend() Backend {
	return sqlite.NewBackend()
}

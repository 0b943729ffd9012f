package types

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// Supported backend names.
const BackendSQLite = "sqlite"

// DefaultBusyTimeout is how long a writer waits on a locked database when
// Config.BusyTimeout is zero.
const DefaultBusyTimeout = 5 * time.Second

// Config selects the storage backend Attach opens.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// BusyTimeout bounds waits on a locked SQLite database. Zero means
	// DefaultBusyTimeout.
	BusyTimeout time.Duration `json:"busy_timeout" yaml:"busy_timeout"`
}

var (
	ErrBackendEmpty       = errors.New("backend must not be empty")
	ErrBackendUnknown     = errors.New("unknown backend")
	ErrNegativeBusyTimeout = errors.New("busy timeout must not be negative")
)

// Validate reports the first problem with c as a sentinel error.
func (c Config) Validate() error {
	switch {
	case c.Backend == "":
		return ErrBackendEmpty
	case c.Backend != BackendSQLite:
		return fmt.Errorf("%w: %s", ErrBackendUnknown, c.Backend)
	case c.BusyTimeout < 0:
		return ErrNegativeBusyTimeout
	}
	return nil
}

// DSN is the SQLite connection string for dbFile inside DataDir, with
// foreign keys on, WAL journaling and the busy timeout applied.
func (c Config) DSN(dbFile string) string {
	dir := c.DataDir
	if dir == "" {
		dir = "."
	}
	timeout := c.BusyTimeout
	if timeout == 0 {
		timeout = DefaultBusyTimeout
	}
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		filepath.Join(dir, dbFile), timeout.Milliseconds())
}

package types

import "errors"

// Cupboard is a Store with a lifecycle: Attach opens the database named by
// a Config, Detach closes it. Table handles obtained while attached fail
// with ErrCupboardDetached afterwards.
type Cupboard interface {
	Store

	// Attach creates DataDir if needed, opens the database, applies the
	// schema and seeds the built-in plan types. A second Attach without a
	// Detach returns ErrAlreadyAttached.
	Attach(config Config) error

	// Detach closes the database. Calling it again is a no-op.
	Detach() error
}

var (
	ErrCupboardDetached = errors.New("storage is detached")
	ErrAlreadyAttached  = errors.New("storage is already attached")
	ErrTableNotFound    = errors.New("no such table")
)

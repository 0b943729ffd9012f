package types

import "errors"

// Filter selects entities in Table.Fetch. Keys are column names declared
// filterable by the table; a []string value matches any of its elements.
// The reserved keys "limit" and "offset" take int values.
type Filter map[string]any

// Table provides uniform CRUD operations for a single entity type.
// Get and Fetch return any; callers type-assert to the concrete entity struct.
type Table interface {
	// Get retrieves the entity with the given ID.
	// Returns ErrNotFound if no entity exists with that ID.
	Get(id string) (any, error)

	// Set creates or updates an entity. When id is empty a new UUID v7 is
	// generated. Returns the actual ID used (generated or provided).
	Set(id string, data any) (string, error)

	// Delete removes the entity with the given ID and everything it owns.
	// Returns ErrNotFound if no entity exists with that ID.
	Delete(id string) error

	// Fetch returns all entities matching the filter. An empty filter
	// returns every entity in the table.
	Fetch(filter Filter) ([]any, error)
}

// Table operation errors.
var (
	ErrNotFound         = errors.New("entity not found")
	ErrInvalidID        = errors.New("invalid entity ID")
	ErrInvalidData      = errors.New("invalid entity data")
	ErrInvalidFilter    = errors.New("invalid filter value type")
	ErrDuplicateName    = errors.New("name already exists")
	ErrInvalidReference = errors.New("referenced entity does not exist")
)

// Entity validation errors.
var (
	ErrInvalidName       = errors.New("invalid name")
	ErrInvalidStatus     = errors.New("invalid status value")
	ErrInvalidPriority   = errors.New("invalid priority")
	ErrInvalidAutomation = errors.New("invalid automation value")
	ErrInvalidURL        = errors.New("invalid URL")
	ErrInvalidContent    = errors.New("content must not be empty")
	ErrInvalidObjectType = errors.New("invalid object type")
	ErrInvalidCredential = errors.New("invalid credential type")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrBadCredentials    = errors.New("bad username or password")
)

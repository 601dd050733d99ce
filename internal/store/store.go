// Package store holds the errors shared by every storage backend. Backends
// live in subpackages (memory, sqlite) or in the per-domain pgx repositories.
package store

import "errors"

var (
	// ErrNotFound is returned when a registration, event or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidPoints is returned when a ledger credit is not positive.
	ErrInvalidPoints = errors.New("points must be positive")
)

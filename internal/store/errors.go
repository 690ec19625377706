package store

import "errors"

var (
	// ErrNotFound is returned when no credentials exist for the tenant.
	ErrNotFound = errors.New("credentials not found")
	// ErrMissingIdentity is returned when neither a team nor an enterprise id is given.
	ErrMissingIdentity = errors.New("team id or enterprise id is required")
)

package store

import "errors"

var (
	// ErrClosed is returned by every operation invoked after Close.
	ErrClosed = errors.New("store: closed")

	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrReadOnly is returned when a mutation is attempted on a handle
	// opened with OpenReadOnly.
	ErrReadOnly = errors.New("store: read-only")
)

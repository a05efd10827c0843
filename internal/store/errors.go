package store

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the record already exists (unique constraint).
	ErrAlreadyExists = errors.New("already exists")

	// ErrConflict indicates a concurrent modification conflict, e.g. a job
	// already claimed by another worker.
	ErrConflict = errors.New("conflict")
)

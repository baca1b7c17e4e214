// Package storage declares the errors every storage backend reports, so
// services can branch on them without importing a driver.
package storage

import "errors"

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned for retryable write conflicts: unique violations
	// from a concurrent insert and serialization failures.
	ErrConflict = errors.New("write conflict")
)

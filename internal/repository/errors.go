package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConstraint is returned when a write violates a storage-level invariant
	// such as a non-negative balance check.
	ErrConstraint = errors.New("constraint violation")

	// ErrConflict is returned when a transaction lost a deadlock or
	// serialization race and was rolled back. The operation may be retried.
	ErrConflict = errors.New("transaction conflict")
)

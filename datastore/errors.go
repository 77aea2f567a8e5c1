package datastore

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no row. Callers treat it
	// as a first-class outcome, not a failure of the datastore itself.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned by CreateUser when the email column's
	// unique constraint rejects the insert.
	ErrDuplicateEmail = errors.New("email already registered")
)

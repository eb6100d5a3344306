package persistence

import "errors"

// Repository errors, matched with errors.Is.
var (
	ErrNotFound            = errors.New("persistence: record not found")
	ErrConstraintViolation = errors.New("persistence: constraint violation")
)

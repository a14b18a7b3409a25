// Package apperr defines the error kinds shared across layers. Callers match
// them with errors.Is; every layer wraps with context but keeps the kind.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation failed")
	ErrExternal      = errors.New("external service error")
	ErrDatabase      = errors.New("database error")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
)

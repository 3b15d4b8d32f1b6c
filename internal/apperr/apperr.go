// Package apperr defines the error kinds shared by the stores and the
// allocation service. Package level sentinels wrap one of these kinds so
// callers can classify any error with errors.Is.
package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation failed")
	ErrPersistence  = errors.New("persistence failure")
)

// Recoverable reports whether err leaves stored state untouched and the
// caller may simply re-prompt or abort the single operation.
func Recoverable(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrValidation)
}

package errors

import (
	"errors"
)

// Common error types
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrDatabaseError = errors.New("database error")
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrAlreadyBanned = errors.New("already banned")
	ErrAlreadyMuted  = errors.New("already muted")
	ErrNotBanned     = errors.New("not banned")
	ErrNotMuted      = errors.New("not muted")
	ErrInternal      = errors.New("internal error")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

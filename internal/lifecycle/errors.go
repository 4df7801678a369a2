package lifecycle

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("task not found")
	ErrUnauthorized = errors.New("not authorized")
	ErrPersistence  = errors.New("persistence failure")
)

// ErrNotFoundOrUnauthorized is returned by DeleteTask when the task is missing
// or owned by someone else. It matches both ErrNotFound and ErrUnauthorized.
var ErrNotFoundOrUnauthorized = fmt.Errorf("task not found or not authorized: %w", errors.Join(ErrNotFound, ErrUnauthorized))

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// persistenceError tags store failures, leaving ErrNotFound untouched.
func persistenceError(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

package model

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks caller mistakes: wrong file type, oversized file,
	// missing files or malformed query parameters.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks lookups of an unknown invoice id.
	ErrNotFound = errors.New("invoice not found")
	// ErrInternal marks unexpected faults. Its detail is logged, never returned.
	ErrInternal = errors.New("internal error")
)

// WrapError attaches an operation name to err while keeping kind matchable
// with errors.Is.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// Validationf builds an ErrValidation whose message is safe to show to clients.
func Validationf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// ValidationError carries a client-facing message.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// IsKind reports whether err is of the given kind.
func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

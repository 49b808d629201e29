package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not_found")
	ErrAlreadyRequested = errors.New("already_requested")
	ErrAlreadyExists    = errors.New("already_exists")
	ErrInvalidToken     = errors.New("invalid_token")
	ErrOperationFailed  = errors.New("operation_failed")
	ErrValidation       = errors.New("validation")
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}

// OperationError reports a store or transport failure. It matches
// ErrOperationFailed with errors.Is and unwraps to the underlying cause.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	if e.Err == nil {
		return e.Op + ": operation failed"
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *OperationError) Unwrap() error { return e.Err }

func (e *OperationError) Is(target error) bool { return target == ErrOperationFailed }

// OperationFailed wraps err unless it already carries a domain outcome.
func OperationFailed(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	return &OperationError{Op: op, Err: err}
}

func IsDomainError(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAlreadyRequested),
		errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrOperationFailed),
		errors.Is(err, ErrValidation):
		return true
	}
	return false
}

// Package apperr defines the error taxonomy shared by the handler and repository layers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the HTTP boundary should treat it.
type Kind int

const (
	// KindInternal is any unexpected condition. It is the zero value so that
	// unclassified errors never look like client mistakes.
	KindInternal Kind = iota
	// KindValidation is malformed client input.
	KindValidation
	// KindDatabase means the store rejected or could not execute a statement.
	KindDatabase
	// KindNotFound is reserved for lookups; inserts never produce it.
	KindNotFound
)

// String returns the label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDatabase:
		return "database"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a classified error. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with the given kind and operation.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation wraps err as a validation failure.
func Validation(op string, err error) *Error {
	return New(KindValidation, op, err)
}

// Database wraps err as a store failure.
func Database(op string, err error) *Error {
	return New(KindDatabase, op, err)
}

// NotFound wraps err as a missing-row failure.
func NotFound(op string, err error) *Error {
	return New(KindNotFound, op, err)
}

// Internal wraps err as an unexpected failure.
func Internal(op string, err error) *Error {
	return New(KindInternal, op, err)
}

// KindOf reports the kind of the first *Error in err's chain.
// Errors that were never classified are KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures so callers can apply the
// degrade-vs-abort policy uniformly.
type ErrorKind string

const (
	// KindValidation marks bad or empty input, rejected before any
	// network call.
	KindValidation ErrorKind = "validation"

	// KindDependency marks an unreachable or malformed external backend
	// (embedding, search, generation). Usually recoverable with degraded
	// behavior.
	KindDependency ErrorKind = "dependency"

	// KindDelivery marks a failed channel send. Fatal for that reply.
	KindDelivery ErrorKind = "delivery"

	// KindPersistence marks a failed store write. Fatal for the whole
	// invocation.
	KindPersistence ErrorKind = "persistence"
)

// Error carries an ErrorKind alongside the underlying cause.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ValidationError wraps err as a validation failure.
func ValidationError(op string, err error) error {
	return &Error{Kind: KindValidation, Op: op, Err: err}
}

// DependencyError wraps err as an external-backend failure.
func DependencyError(op string, err error) error {
	return &Error{Kind: KindDependency, Op: op, Err: err}
}

// DeliveryError wraps err as a channel-send failure.
func DeliveryError(op string, err error) error {
	return &Error{Kind: KindDelivery, Op: op, Err: err}
}

// PersistenceError wraps err as a store-write failure.
func PersistenceError(op string, err error) error {
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}

// KindOf returns the ErrorKind of err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

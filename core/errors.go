/*
errors.go - Centralized error kinds for the warehouse engine

PURPOSE:
  Every core operation fails with exactly one of five kinds. Callers (the
  HTTP layer) translate the kind into a response; nothing in the core is
  retryable because nothing in the core performs network I/O.

ERROR KINDS:
  ErrNotFound          unknown id
  ErrInvalidTransition state machine precondition violated
  ErrInvalidInput      non-positive amount/quantity, missing field, from == to
  ErrInsufficientStock strict-mode floor violation
  ErrUnauthorized      role precondition failed

USAGE:
  Structured errors carry context and unwrap to their kind:

    if errors.Is(err, core.ErrInvalidTransition) {
        var te *core.TransitionError
        errors.As(err, &te)
    }

SEE ALSO:
  - api/errors.go: Kind to HTTP status mapping
*/
package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when a state machine precondition fails.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInvalidInput is returned for malformed or out-of-range input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientStock is returned when strict mode would drive a balance negative.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrUnauthorized is returned when the actor lacks the role an operation needs.
	ErrUnauthorized = errors.New("unauthorized")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing record.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// TransitionError reports an operation attempted from the wrong state.
type TransitionError struct {
	Resource string
	ID       string
	Action   string
	From     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s %s: status is %s", e.Action, e.Resource, e.ID, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// InputError reports a rejected field.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// Invalid builds an InputError.
func Invalid(field, reason string) error {
	return &InputError{Field: field, Reason: reason}
}

// InsufficientStockError provides details about a stock shortage.
type InsufficientStockError struct {
	WarehouseID string
	ProductID   string
	Available   int64
	Requested   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s in warehouse %s: available %d, requested %d",
		e.ProductID, e.WarehouseID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// UnauthorizedError names the role the actor was missing.
type UnauthorizedError struct {
	ActorID string
	Action  string
	Need    string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("actor %q may not %s: requires %s", e.ActorID, e.Action, e.Need)
}

func (e *UnauthorizedError) Unwrap() error { return ErrUnauthorized }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// ErrorKind is a stable, machine-readable name for an error's kind.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindInvalidInput      ErrorKind = "invalid_input"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindInternal          ErrorKind = "internal"
)

// Kind classifies err. Unknown errors are KindInternal.
func Kind(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	default:
		return KindInternal
	}
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError returns true if the error is caused by the request rather
// than the engine.
func IsClientError(err error) bool {
	k := Kind(err)
	return k != KindInternal
}

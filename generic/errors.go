/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error types in one place so the engine, the stores and the HTTP layer
  agree on classification.

ERROR CATEGORIES:
  1. ValidationError    - malformed type, fallback or date range
  2. AuthorizationError - actor is neither the assigned approver nor an admin
  3. StateConflictError - request is no longer PENDING
  4. NotFoundError      - company, employee or request missing
  5. InsufficientLeaveError - backfill without a fallback cannot be funded

  Every structured error unwraps to a sentinel, so callers only need
  errors.Is(err, generic.ErrNotFound) and friends.

SEE ALSO:
  - api/handlers.go: maps these categories to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation = errors.New("validation failed")

	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when a request has already reached a terminal state.
	ErrConflict = errors.New("state conflict")

	ErrNotFound = errors.New("not found")

	// ErrInsufficientLeave is only surfaced by the backfill path. Interactive
	// approval always falls back to unpaid leave instead.
	ErrInsufficientLeave = errors.New("insufficient leave")

	// ErrConcurrentModification is returned when a compare-and-swap on the
	// employee ledger loses against another writer.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	ErrInvalidPeriod = errors.New("invalid period: end before start")

	ErrDuplicateKey = errors.New("duplicate key")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field   string
	Message string
	Err     error // optional more specific cause
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

// AuthorizationError is returned when the actor may not perform the action.
type AuthorizationError struct {
	ActorID  string
	Action   string
	Resource string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %q may not %s %s", e.ActorID, e.Action, e.Resource)
}

func (e *AuthorizationError) Unwrap() error { return ErrForbidden }

// StateConflictError is returned when a request is not in the state an
// operation requires.
type StateConflictError struct {
	Resource string
	ID       string
	Current  string
	Required string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s %s is %s, must be %s", e.Resource, e.ID, e.Current, e.Required)
}

func (e *StateConflictError) Unwrap() error { return ErrConflict }

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientLeaveError reports a backfill row whose primary bucket cannot
// cover the chargeable amount and which supplied no fallback.
type InsufficientLeaveError struct {
	Type      string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientLeaveError) Error() string {
	return fmt.Sprintf("Insufficient %s leave", e.Type)
}

func (e *InsufficientLeaveError) Unwrap() error { return ErrInsufficientLeave }

// =============================================================================
// ERROR HELPERS
// =============================================================================

func NewNotFound(kind, id string) error { return &NotFoundError{Kind: kind, ID: id} }

func NewValidation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientLeave) ||
		errors.Is(err, ErrInvalidPeriod)
}

func IsNotFound(err error) bool  { return errors.Is(err, ErrNotFound) }
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }
func IsConflict(err error) bool  { return errors.Is(err, ErrConflict) }

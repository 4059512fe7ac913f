/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All ledger error types in one place. The API layer classifies errors
  with the predicates at the bottom and maps them to HTTP statuses; no
  internal detail crosses that boundary.

ERROR CATEGORIES:
  1. Validation errors   - malformed input, rejected before any mutation
  2. Invalid state       - operation illegal for the record's current state
                           (e.g. canceling a paid installment), surfaced
                           distinctly from validation
  3. Not found           - unknown client/purchase/installment id
  4. Data integrity      - unparseable stored data found on a read path;
                           logged, never aborts the surrounding read

SEE ALSO:
  - inventory/errors.go: ErrInsufficientStock lives with the stock side
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all malformed-input rejections.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidState is returned when an operation is illegal for the
	// record's current state, e.g. paying an already-paid installment.
	ErrInvalidState = errors.New("invalid state")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which input was malformed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidStateError explains why the record can't take the operation,
// so the caller can say "already settled" instead of "bad input".
type InvalidStateError struct {
	Op     string
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "client", "purchase", "installment"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// DataIntegrityWarning marks a stored record that could not be
// interpreted during derivation. It degrades that record only; the
// surrounding read continues with the record's last known state.
type DataIntegrityWarning struct {
	Kind   string
	ID     string
	Detail string
}

func (e *DataIntegrityWarning) Error() string {
	return fmt.Sprintf("data integrity: %s %q: %s", e.Kind, e.ID, e.Detail)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error is a state conflict rather than
// bad input: the request was well-formed but the record can't take it.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

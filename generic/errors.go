/*
errors.go - Centralized error types for the lifecycle engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every failure the engine returns maps to a stable ErrorKind so the
  calling layer can choose an HTTP status without string matching.

ERROR CATEGORIES:
  1. validation_error     - Missing or invalid input fields (caller fixes)
  2. not_found            - Unknown request, employee or approver
  3. out_of_scope         - Approver acting outside their department
  4. already_processed    - Request already in a terminal state
  5. insufficient_balance - Leave deduction would underflow the ledger
  6. internal             - Unexpected store fault, nothing was mutated

USAGE:
  if errors.Is(err, generic.ErrAlreadyProcessed) {
      // someone else won the race
  }

  var verr *generic.ValidationError
  if errors.As(err, &verr) {
      for _, f := range verr.Fields { ... }
  }

  status := statusFor(generic.KindOf(err))

SEE ALSO:
  - engine.go: Returns these errors
  - api/response.go: Maps ErrorKind to HTTP status
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when submitted or action input is invalid.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is the parent of every lookup failure.
	ErrNotFound = errors.New("not found")

	// ErrRequestNotFound is returned when no request has the given id.
	ErrRequestNotFound = fmt.Errorf("request %w", ErrNotFound)

	// ErrEmployeeNotFound is returned when the submitting employee is unknown.
	ErrEmployeeNotFound = fmt.Errorf("employee %w", ErrNotFound)

	// ErrApproverNotFound is returned when the acting approver is unknown.
	ErrApproverNotFound = fmt.Errorf("approver %w", ErrNotFound)

	// ErrAlreadyProcessed is returned when a request is no longer pending.
	// Retried calls hit this instead of double-deducting.
	ErrAlreadyProcessed = errors.New("request already processed")

	// ErrInsufficientBalance is returned when a deduction would underflow.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrOutOfScope is returned when an approver acts on a request from
	// outside their department, or on their own request.
	ErrOutOfScope = errors.New("request outside approver scope")

	// ErrInternal marks unexpected faults. The store rolled back.
	ErrInternal = errors.New("internal fault")
)

// =============================================================================
// ERROR KINDS - Stable machine-readable codes
// =============================================================================

type ErrorKind string

const (
	KindValidation          ErrorKind = "validation_error"
	KindNotFound            ErrorKind = "not_found"
	KindOutOfScope          ErrorKind = "out_of_scope"
	KindAlreadyProcessed    ErrorKind = "already_processed"
	KindInsufficientBalance ErrorKind = "insufficient_balance"
	KindInternal            ErrorKind = "internal"
)

// KindOf classifies err. Anything unrecognised is internal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrOutOfScope):
		return KindOutOfScope
	case errors.Is(err, ErrAlreadyProcessed):
		return KindAlreadyProcessed
	case errors.Is(err, ErrInsufficientBalance):
		return KindInsufficientBalance
	default:
		return KindInternal
	}
}

// IsClientError returns true if the caller can fix the input and retry.
func IsClientError(err error) bool {
	k := KindOf(err)
	return k == KindValidation || k == KindNotFound || k == KindOutOfScope
}

// IsConflict returns true if the request state forbids the operation.
func IsConflict(err error) bool {
	k := KindOf(err)
	return k == KindAlreadyProcessed || k == KindInsufficientBalance
}

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldError names one invalid input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every invalid field of one input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns nil when no field failed, so callers can `return v.OrNil()`.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ToMap returns field -> message, keeping the first message per field.
func (e *ValidationError) ToMap() map[string]string {
	m := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		if _, ok := m[f.Field]; !ok {
			m[f.Field] = f.Message
		}
	}
	return m
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// invalid builds a single-field validation error.
func invalid(field, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// AlreadyProcessedError reports the terminal state a request is already in.
type AlreadyProcessedError struct {
	Kind   Kind
	ID     RequestID
	Status Status
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("%s %s already processed (status: %s)", e.Kind, e.ID, e.Status)
}

func (e *AlreadyProcessedError) Unwrap() error { return ErrAlreadyProcessed }

// InsufficientBalanceError provides details about a ledger shortage.
type InsufficientBalanceError struct {
	EmployeeID EmployeeID
	Category   LeaveCategory
	Available  int
	Requested  int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance for %s: available %d, requested %d",
		e.Category, e.EmployeeID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// InternalError wraps an unexpected store failure.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() []error { return []error{ErrInternal, e.Err} }

// fault passes typed engine errors through and wraps everything else as
// an InternalError.
func fault(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindInternal {
		return err
	}
	var ie *InternalError
	if errors.As(err, &ie) {
		return err
	}
	return &InternalError{Op: op, Err: err}
}

package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Engine business-rule violations. None of these are retryable: they signal
// state the caller must change before trying again.
var (
	ErrOwnershipConflict      = New("OWNERSHIP_CONFLICT", http.StatusConflict, "candidate is owned by another agency")
	ErrExclusivityConflict    = New("EXCLUSIVITY_CONFLICT", http.StatusConflict, "job already has an active exclusive distribution")
	ErrDistributionCapReached = New("DISTRIBUTION_CAP_REACHED", http.StatusConflict, "distribution submission cap reached")
	ErrNoApplicableRateLine   = New("NO_APPLICABLE_RATE_LINE", http.StatusUnprocessableEntity, "no rate line matches the placement")
	ErrAmbiguousRateLine      = New("AMBIGUOUS_RATE_LINE", http.StatusUnprocessableEntity, "multiple rate lines match the placement")
	ErrAmbiguousRateCard      = New("AMBIGUOUS_RATE_CARD", http.StatusUnprocessableEntity, "multiple rate cards match at the same specificity")
	ErrBudgetExceeded         = New("BUDGET_EXCEEDED", http.StatusConflict, "deduction exceeds remaining budget")
	ErrBudgetLocked           = New("BUDGET_LOCKED", http.StatusConflict, "budget or an ancestor is locked")
	ErrSLAConfigMissing       = New("SLA_CONFIG_MISSING", http.StatusUnprocessableEntity, "no SLA configuration for agency metric")
	ErrInvalidTransition      = New("INVALID_TRANSITION", http.StatusConflict, "distribution status transition not allowed")
)

// Generic errors shared across handlers and services.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Is reports whether err carries the given error code.
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code == target.Code
	}
	return false
}

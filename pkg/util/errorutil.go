package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error codes used across the workflow, session and automation services.
const (
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeConflict          = "CONFLICT"
	CodeValidation        = "VALIDATION_FAILED"
	CodeNotFound          = "NOT_FOUND"
	CodeDeliveryFailed    = "DELIVERY_FAILED"
	CodeInternal          = "INTERNAL_ERROR"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations; the
// partial unique indexes backing the workflow invariants surface through it.
const pgUniqueViolation = "23505"

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Retryable  bool
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewInvalidTransition reports an illegal state-machine move.
func NewInvalidTransition(action string, from, to string) error {
	return NewDomainError(CodeInvalidTransition,
		fmt.Sprintf("%s not allowed from %s", action, from),
		http.StatusUnprocessableEntity,
		map[string]any{"action": action, "from": from, "to": to})
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewDeliveryFailure wraps an escalation channel error. Retryable failures may
// be re-attempted by the external scheduler; permanent ones must not.
func NewDeliveryFailure(channel string, retryable bool, err error) error {
	return &DomainError{
		Code:       CodeDeliveryFailed,
		Message:    fmt.Sprintf("delivery via %s failed", channel),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"channel": channel},
		Retryable:  retryable,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsCode reports whether err carries the given domain error code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == code
}

// IsRetryable reports whether err is a retryable delivery failure.
func IsRetryable(err error) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Retryable
}

// ToDomainError converts generic errors to DomainError. Storage-level
// signals are mapped onto the taxonomy: missing rows become NOT_FOUND and
// unique violations become CONFLICT so that commit-time invariant checks
// surface the same way as application-level ones.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return &DomainError{
			Code:       CodeConflict,
			Message:    "concurrent update conflict",
			HTTPStatus: http.StatusConflict,
			Details:    map[string]any{"constraint": pgErr.ConstraintName},
			Err:        err,
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

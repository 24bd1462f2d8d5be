package errorutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/repair-tracker/internal/jira"
	"github.com/spec-kit/repair-tracker/internal/repository"
	"github.com/spec-kit/repair-tracker/internal/stream"
	"github.com/spec-kit/repair-tracker/internal/summary"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
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

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts package errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	var malformed *jira.MalformedPayloadError
	if errors.As(err, &malformed) {
		return &DomainError{
			Code:       "MALFORMED_PAYLOAD",
			Message:    malformed.Error(),
			HTTPStatus: http.StatusUnprocessableEntity,
			Details:    map[string]any{"key": malformed.Key, "field": malformed.Field},
			Err:        err,
		}
	}
	var terminated *stream.TerminationError
	if errors.As(err, &terminated) {
		return &DomainError{
			Code:       "STREAM_TERMINATED",
			Message:    "update feed ended with an incomplete record",
			HTTPStatus: http.StatusBadGateway,
			Details:    map[string]any{"line": terminated.Line},
			Err:        err,
		}
	}
	var apiErr *jira.APIError
	if errors.As(err, &apiErr) {
		return &DomainError{
			Code:       "TRACKER_ERROR",
			Message:    "issue tracker request failed",
			HTTPStatus: http.StatusBadGateway,
			Details:    map[string]any{"status": apiErr.Status},
			Err:        err,
		}
	}

	switch {
	case errors.Is(err, repository.ErrEpicNotFound):
		return notFound("epic", err)
	case errors.Is(err, summary.ErrSerialNotFound):
		return notFound("serial", err)
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, sql.ErrNoRows):
		return notFound("resource", err)
	case errors.Is(err, jira.ErrNotConfigured):
		return &DomainError{
			Code:       "TRACKER_UNAVAILABLE",
			Message:    "issue tracker is not configured",
			HTTPStatus: http.StatusServiceUnavailable,
			Err:        err,
		}
	case errors.Is(err, context.DeadlineExceeded):
		return &DomainError{
			Code:       "TIMEOUT",
			Message:    "request timed out",
			HTTPStatus: http.StatusGatewayTimeout,
			Err:        err,
		}
	}

	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func notFound(resource string, err error) *DomainError {
	de := NewNotFound(resource, nil).(*DomainError)
	de.Err = err
	return de
}

// MapError converts generic errors to DomainError.
func MapError(err error) error {
	if de := ToDomainError(err); de != nil {
		return de
	}
	return nil
}

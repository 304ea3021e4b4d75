// Package apperr defines the error classes shared by stores and handlers.
// Stores wrap one of these sentinels so handlers can pick a status code
// with errors.Is without inspecting driver errors.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
	ErrTransient  = errors.New("temporarily unavailable")
)

// Validation returns an ErrValidation carrying a human readable reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Conflict returns an ErrConflict carrying a human readable reason.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// NotFound returns an ErrNotFound for the named entity.
func NotFound(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}

// Forbidden returns an ErrForbidden carrying a reason.
func Forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// dbError is a classified driver error. Its text is fixed per class; the
// driver error stays reachable through Unwrap and Detail for logging.
type dbError struct {
	class error
	text  string
	err   error
}

func (e *dbError) Error() string   { return e.class.Error() + ": " + e.text }
func (e *dbError) Unwrap() []error { return []error{e.class, e.err} }

// Classify maps low-level SQLite errors onto the shared classes. Errors that
// already carry a class, and errors it does not recognise, are returned as is.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) || errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrTransient) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return &dbError{class: ErrConflict, text: "value already exists", err: err}
	case strings.Contains(msg, "CHECK constraint failed"),
		strings.Contains(msg, "FOREIGN KEY constraint failed"),
		strings.Contains(msg, "NOT NULL constraint failed"):
		return &dbError{class: ErrValidation, text: "invalid or missing value", err: err}
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "SQLITE_BUSY"),
		strings.Contains(msg, "database table is locked"):
		return &dbError{class: ErrTransient, text: "database busy, try again", err: err}
	}
	return err
}

// Detail returns the driver error behind a classified error, or nil.
func Detail(err error) error {
	var de *dbError
	if errors.As(err, &de) {
		return de.err
	}
	return nil
}

// HTTPStatus returns the status code for an error's class, or 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing text for err. Unclassified errors get a
// generic message so driver details never leak.
func Message(err error, fallback string) string {
	if HTTPStatus(err) == http.StatusInternalServerError {
		return fallback
	}
	return err.Error()
}

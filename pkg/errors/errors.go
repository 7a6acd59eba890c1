// Package errors defines the error taxonomy for the weighing engine on top
// of httperror. Every error carries a machine-checkable kind in its meta so
// callers can branch without parsing messages.
package errors

import (
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

const (
	// KindValidation marks malformed or out-of-range input. Never retried.
	KindValidation = "validation"
	// KindConflict marks session-state or uniqueness violations.
	KindConflict = "conflict"
	// KindNotFound marks unknown sessions, entries, batches or scales.
	KindNotFound = "not_found"

	metaKindKey = "kind"
)

// NewValidationError creates a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusUnprocessableEntity, fmt.Sprintf(format, args...)).
		AddMetaValue(metaKindKey, KindValidation)
}

// NewConflictError creates a ConflictError with a formatted message. Callers
// should attach context (existing session id, owning operator) with AddMeta.
func NewConflictError(format string, args ...any) *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf(format, args...)).
		AddMetaValue(metaKindKey, KindConflict)
}

// NewNotFoundError creates a NotFoundError with a formatted message.
func NewNotFoundError(format string, args ...any) *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf(format, args...)).
		AddMetaValue(metaKindKey, KindNotFound)
}

// NewInternalError wraps an unexpected failure without leaking its cause.
func NewInternalError(format string, args ...any) *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf(format, args...))
}

// Kind returns the error kind, or "" for errors outside the taxonomy.
func Kind(err error) string {
	if err == nil || !httperror.IsHTTPError(err) {
		return ""
	}
	httperr := httperror.ToHTTPError(err)
	kind, _ := httperr.Meta[metaKindKey].(string)
	return kind
}

// Meta returns the error's meta map, or nil for errors outside the taxonomy.
func Meta(err error) map[string]any {
	if err == nil || !httperror.IsHTTPError(err) {
		return nil
	}
	return httperror.ToHTTPError(err).Meta
}

func IsValidation(err error) bool {
	return Kind(err) == KindValidation
}

func IsConflict(err error) bool {
	return Kind(err) == KindConflict
}

func IsNotFound(err error) bool {
	return Kind(err) == KindNotFound
}

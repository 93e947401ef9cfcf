package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for API mapping. Validation and permission
// failures are always detected before any mutation.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindPermission
	KindNotFound
	KindConflict
	KindTransaction
)

type Error struct {
	Kind    Kind
	Message string
	// Details carries conflict context for the response body: the
	// conflicting slot, the blocking entries, the current status.
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Permission(format string, args ...any) *Error {
	return &Error{Kind: KindPermission, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(details any, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...), Details: details}
}

func Transaction(err error, format string, args ...any) *Error {
	return &Error{Kind: KindTransaction, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func IsConflict(err error) bool   { return IsKind(err, KindConflict) }
func IsNotFound(err error) bool   { return IsKind(err, KindNotFound) }
func IsPermission(err error) bool { return IsKind(err, KindPermission) }
func IsValidation(err error) bool { return IsKind(err, KindValidation) }

// Status maps err to the HTTP status a handler should respond with.
// Unclassified errors are treated as internal.
func Status(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindPermission:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Details extracts the details payload from err, if any.
func Details(err error) any {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// Package apperr defines the error kinds surfaced by the match engine.
//
// Every domain failure is an *Error carrying a Kind; callers branch on the
// kind with errors.Is against the exported sentinels, and the HTTP layer
// maps kinds to status codes. A query that legitimately has no data returns
// an empty result, never one of these.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain failure.
type Kind int

const (
	// KindValidation marks malformed or missing caller input.
	KindValidation Kind = iota + 1
	// KindNotFound marks an absent entity or one not in the required state.
	KindNotFound
	// KindConflict marks a state-conflicting request (double join,
	// cancel after fill).
	KindConflict
	// KindAuthorization marks a caller lacking rights for the action.
	KindAuthorization
	// KindInsufficientBalance marks an order that would drive cash negative.
	KindInsufficientBalance
	// KindInsufficientPosition marks a sell beyond the held position.
	KindInsufficientPosition
	// KindPersistence marks a durable-store I/O failure.
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindAuthorization:
		return "authorization"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindInsufficientPosition:
		return "insufficient_position"
	case KindPersistence:
		return "persistence"
	}
	return "unknown"
}

// Error is a kind-tagged domain error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // optional wrapped cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind, so
// errors.Is(err, apperr.ErrConflict) works regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrConflict             = &Error{Kind: KindConflict}
	ErrAuthorization        = &Error{Kind: KindAuthorization}
	ErrInsufficientBalance  = &Error{Kind: KindInsufficientBalance}
	ErrInsufficientPosition = &Error{Kind: KindInsufficientPosition}
	ErrPersistence          = &Error{Kind: KindPersistence}
)

// Validation returns a caller-input error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// NotFound returns an entity-absent error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Conflict returns a state-conflict error.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// Authorization returns a rights error.
func Authorization(format string, args ...any) *Error {
	return &Error{Kind: KindAuthorization, Msg: fmt.Sprintf(format, args...)}
}

// InsufficientBalance returns a balance-floor violation.
func InsufficientBalance(format string, args ...any) *Error {
	return &Error{Kind: KindInsufficientBalance, Msg: fmt.Sprintf(format, args...)}
}

// InsufficientPosition returns a position-size violation.
func InsufficientPosition(format string, args ...any) *Error {
	return &Error{Kind: KindInsufficientPosition, Msg: fmt.Sprintf(format, args...)}
}

// Persistence wraps a durable-store failure.
func Persistence(err error, format string, args ...any) *Error {
	return &Error{Kind: KindPersistence, Msg: fmt.Sprintf(format, args...), Err: err}
}

// HTTPStatus maps an error to the status code the transport layer returns.
// Unknown errors map to 500.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindAuthorization:
		return http.StatusForbidden
	case KindInsufficientBalance, KindInsufficientPosition:
		return http.StatusUnprocessableEntity
	case KindPersistence:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

package core

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error so callers can map it to a stable
// user-visible category without string matching.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindInvalidState Kind = "invalid_state"
)

// Error is the domain error type. Every failing business operation returns
// one of these (possibly wrapped); the Kind is stable, the Message is for
// humans.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// ValidationErrorf builds a validation error (malformed or out-of-range input).
func ValidationErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFoundErrorf builds a not-found error for an absent referenced entity.
func NotFoundErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// ConflictErrorf builds a conflict error (uniqueness violation, closing an
// already-closed fund, deleting a referenced entity).
func ConflictErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// InvalidStateErrorf builds an error for operations not permitted in the
// entity's current lifecycle state.
func InvalidStateErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// WrapNotFound attaches an underlying cause to a not-found error.
func WrapNotFound(err error, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...), Err: err}
}

func isKind(err error, kind Kind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// IsValidation reports whether err is (or wraps) a validation error.
func IsValidation(err error) bool { return isKind(err, KindValidation) }

// IsNotFound reports whether err is (or wraps) a not-found error.
func IsNotFound(err error) bool { return isKind(err, KindNotFound) }

// IsConflict reports whether err is (or wraps) a conflict error.
func IsConflict(err error) bool { return isKind(err, KindConflict) }

// IsInvalidState reports whether err is (or wraps) an invalid-state error.
func IsInvalidState(err error) bool { return isKind(err, KindInvalidState) }

// ErrInvalidAmount rejects non-positive monetary amounts.
var ErrInvalidAmount = &Error{Kind: KindValidation, Message: "invalid amount"}

package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies errors the request layer has to translate for the user.
type Kind string

const (
	// KindNotFound: the item or deck does not exist or the learner has no access to it.
	KindNotFound Kind = "NOT_FOUND"
	// KindInvalidInput: rejected before any store access.
	KindInvalidInput Kind = "INVALID_INPUT"
	// KindConflict: a unique constraint was hit (duplicate card, duplicate learner).
	KindConflict Kind = "CONFLICT"
)

// Error is a typed application error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound creates a not-found error.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Invalid creates an invalid-input error.
func Invalid(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidInput, Msg: fmt.Sprintf(format, args...)}
}

// Conflict wraps err as a conflict.
func Conflict(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }
func IsInvalid(err error) bool  { return KindOf(err) == KindInvalidInput }
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// Package apperr defines the error taxonomy surfaced by the ledger.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can explain why an action failed.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindDuplicate
	KindPolicy
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindDuplicate:
		return "duplicate"
	case KindPolicy:
		return "policy"
	case KindInternal:
		return "internal"
	}
	return "unknown"
}

// Error is a classified ledger error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same Kind, so errors.Is(err, ErrPolicy) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrNotFound   = &Error{Kind: KindNotFound, Message: "not found"}
	ErrDuplicate  = &Error{Kind: KindDuplicate, Message: "already exists"}
	ErrPolicy     = &Error{Kind: KindPolicy, Message: "blocked by policy"}
)

// Validation reports malformed input.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: "VALIDATION", Message: fmt.Sprintf(format, args...)}
}

// NotFound reports an operation on a nonexistent record.
func NotFound(entity string, id int64) *Error {
	return &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: fmt.Sprintf("%s %d not found", entity, id)}
}

// Duplicate reports a natural-key collision.
func Duplicate(format string, args ...any) *Error {
	return &Error{Kind: KindDuplicate, Code: "DUPLICATE", Message: fmt.Sprintf(format, args...)}
}

// Policy reports an action blocked by a business rule or authorization check.
func Policy(code, format string, args ...any) *Error {
	return &Error{Kind: KindPolicy, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an unexpected failure as internal.
func Wrap(err error, message string) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL", Message: message, Cause: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsDuplicate(err error) bool  { return errors.Is(err, ErrDuplicate) }
func IsPolicy(err error) bool     { return errors.Is(err, ErrPolicy) }

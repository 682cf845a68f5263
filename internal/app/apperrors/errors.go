package apperrors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation           Kind = "VALIDATION_ERROR"
	KindNotFound             Kind = "NOT_FOUND"
	KindConflict             Kind = "CONFLICT"
	KindConcurrencyExhausted Kind = "CONCURRENCY_EXHAUSTED"
	KindPersistence          Kind = "PERSISTENCE_ERROR"
	KindInternal             Kind = "INTERNAL_ERROR"
)

// Error is the application-level failure returned across the bus boundary.
type Error struct {
	Kind    Kind           `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(err error) *Error {
	return &Error{Kind: KindValidation, Message: err.Error(), Err: err}
}

func NotFound(resource, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Details: map[string]any{"resource": resource, "id": id},
	}
}

func Conflict(message string, days []string, err error) *Error {
	return &Error{
		Kind:    KindConflict,
		Message: message,
		Details: map[string]any{"conflicts": days},
		Err:     err,
	}
}

func ConcurrencyExhausted(attempts int, err error) *Error {
	return &Error{
		Kind:    KindConcurrencyExhausted,
		Message: "too many concurrent reservations for this car, try again",
		Details: map[string]any{"attempts": attempts},
		Err:     err,
	}
}

func Persistence(err error) *Error {
	return &Error{Kind: KindPersistence, Message: "storage failure", Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "an unexpected error occurred", Err: err}
}

// As extracts an *Error from the chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf classifies err, treating anything unrecognised as internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// Transient kinds may succeed on a later attempt and must not be cached.
func (k Kind) Transient() bool {
	switch k {
	case KindConcurrencyExhausted, KindPersistence, KindInternal:
		return true
	}
	return false
}

package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrorKind classifies an error for callers that must branch on it:
// the HTTP layer maps kinds to status codes, the runner decides between
// "skip and re-poll" (conflict) and "fatal for this tick" (anything else),
// and the store retries only transient kinds.
type ErrorKind string

// Error kinds.
const (
	KindNotFound     ErrorKind = "not_found"
	KindPrecondition ErrorKind = "precondition"
	KindValidation   ErrorKind = "validation"
	KindConflict     ErrorKind = "conflict"
	KindTransient    ErrorKind = "transient"
	KindInternal     ErrorKind = "internal"
)

// ClassifiedError carries a kind, a human-readable message, and structured
// context. Precondition errors include the observed status so callers can
// see why the transition was rejected without a second read.
type ClassifiedError struct {
	Kind           ErrorKind
	Message        string
	ObservedStatus string
	Ctx            map[string]string
	CorrelationID  string
	Err            error
}

func (e *ClassifiedError) Error() string {
	if e.ObservedStatus != "" {
		return fmt.Sprintf("%s (status=%s)", e.Message, e.ObservedStatus)
	}
	return e.Message
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// ErrorCode returns the kind as a stable machine-readable code.
func (e *ClassifiedError) ErrorCode() string { return string(e.Kind) }

// Context returns structured context for logging and JSON responses.
func (e *ClassifiedError) Context() map[string]string {
	ctx := make(map[string]string, len(e.Ctx)+2)
	for k, v := range e.Ctx {
		ctx[k] = v
	}
	if e.ObservedStatus != "" {
		ctx["observed_status"] = e.ObservedStatus
	}
	if e.CorrelationID != "" {
		ctx["correlation_id"] = e.CorrelationID
	}
	return ctx
}

// SlogAttrs returns key/value pairs for structured logging.
func (e *ClassifiedError) SlogAttrs() []any {
	attrs := []any{"kind", string(e.Kind)}
	for k, v := range e.Context() {
		attrs = append(attrs, k, v)
	}
	return attrs
}

// NotFoundf builds a not_found error.
func NotFoundf(format string, args ...any) *ClassifiedError {
	return &ClassifiedError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Preconditionf builds a precondition error. observedStatus may be empty.
func Preconditionf(observedStatus, format string, args ...any) *ClassifiedError {
	return &ClassifiedError{
		Kind:           KindPrecondition,
		Message:        fmt.Sprintf(format, args...),
		ObservedStatus: observedStatus,
	}
}

// Validationf builds a validation error.
func Validationf(format string, args ...any) *ClassifiedError {
	return &ClassifiedError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Conflictf builds a conflict error (optimistic-concurrency loss).
func Conflictf(format string, args ...any) *ClassifiedError {
	return &ClassifiedError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Transientf builds a transient error wrapping the underlying cause.
func Transientf(err error, format string, args ...any) *ClassifiedError {
	return &ClassifiedError{Kind: KindTransient, Message: fmt.Sprintf(format, args...), Err: err}
}

// Internal wraps an unexpected error with a correlation id that is logged
// server-side and returned to the caller for cross-referencing.
func Internal(err error) *ClassifiedError {
	return &ClassifiedError{
		Kind:          KindInternal,
		Message:       "internal error",
		CorrelationID: uuid.NewString(),
		Err:           err,
	}
}

// KindOf returns the error's kind, or internal for unclassified errors.
// A nil error has no kind; callers must check for nil first.
func KindOf(err error) ErrorKind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// IsKind reports whether err is classified with the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ce *ClassifiedError
	return errors.As(err, &ce) && ce.Kind == kind
}

// AsClassified extracts a classified error, wrapping unclassified errors
// as internal so every error leaving the core carries a kind.
func AsClassified(err error) *ClassifiedError {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}
	return Internal(err)
}

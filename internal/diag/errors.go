package diag

import (
	"context"
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeInternal        ErrorCode = "INTERNAL_ERROR"
	CodeCancelled       ErrorCode = "CANCELLED"
	CodeMissingBuiltin  ErrorCode = "MISSING_BUILTIN"
	CodeValidationError ErrorCode = "VALIDATION_ERROR"
	CodeNotFound        ErrorCode = "NOT_FOUND"
)

type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

const (
	CtxClass     = "class"
	CtxMember    = "member"
	CtxUnit      = "unit"
	CtxOperation = "operation"
)

var (
	// ErrInterrupted is returned by a reducer when the driver cancels a unit.
	ErrInterrupted = New(CodeCancelled, "interrupted")

	// ErrMissingBuiltin is returned when a runtime builtin type cannot be resolved.
	ErrMissingBuiltin = New(CodeMissingBuiltin, "missing builtin")
)

func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) > 0 {
		msg += fmt.Sprintf(" %v", e.Context)
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches domain errors by code and message, so copies of a sentinel still
// satisfy errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code && t.Message == e.Message
}

func New(code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg}
}

// Internalf builds an internal-consistency error carrying the owning class and member.
func Internalf(class, member, format string, args ...interface{}) error {
	de := &DomainError{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
	if class != "" {
		de.WithContext(CtxClass, class)
	}
	if member != "" {
		de.WithContext(CtxMember, member)
	}
	return de
}

func Wrap(err error, code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// AddContext returns err with a context value attached. Domain errors are copied so
// shared sentinels are never mutated; plain errors are wrapped as internal.
func AddContext(err error, key string, value interface{}) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if !errors.As(err, &de) {
		return &DomainError{
			Code:    CodeInternal,
			Message: "wrapped error",
			Err:     err,
			Context: map[string]interface{}{key: value},
		}
	}

	ctx := make(map[string]interface{}, len(de.Context)+1)
	for k, v := range de.Context {
		ctx[k] = v
	}
	ctx[key] = value
	if error(de) == err {
		cp := *de
		cp.Context = ctx
		return &cp
	}
	return &DomainError{Code: de.Code, Message: de.Message, Err: err, Context: ctx}
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// IsCancelled reports whether err signals an interruption rather than a failure.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInterrupted) || IsCode(err, CodeCancelled) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

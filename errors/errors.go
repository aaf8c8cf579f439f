package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
)

// PlatformError is implemented by every error created through this package.
type PlatformError interface {
	error
	Code() ErrorCode
	Message() string
	Context() map[string]any
	Unwrap() error
}

type platformError struct {
	code    ErrorCode
	message string
	context map[string]any
	cause   error
}

func (e *platformError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *platformError) Code() ErrorCode { return e.code }

func (e *platformError) Message() string { return e.message }

// Context returns a copy of the attached context map.
func (e *platformError) Context() map[string]any {
	if e.context == nil {
		return nil
	}
	return maps.Clone(e.context)
}

func (e *platformError) Unwrap() error { return e.cause }

// Is reports whether target carries the same code. This lets callers match
// on a bare New(code, "") value with errors.Is.
func (e *platformError) Is(target error) bool {
	var pe PlatformError
	if !stderrors.As(target, &pe) {
		return false
	}
	return pe.Code() == e.code && pe.Message() == ""
}

// New creates a PlatformError with the given code and message.
//
//nolint:ireturn // PlatformError is the package's public error contract.
func New(code ErrorCode, message string) PlatformError {
	return &platformError{code: code, message: message}
}

// Wrap wraps err with a code and message. It returns nil when err is nil.
//
//nolint:ireturn // PlatformError is the package's public error contract.
func Wrap(err error, code ErrorCode, message string) PlatformError {
	if err == nil {
		return nil
	}
	return &platformError{code: code, message: message, cause: err}
}

// WrapWithContext is Wrap with additional key/value context for logging.
//
//nolint:ireturn // PlatformError is the package's public error contract.
func WrapWithContext(err error, code ErrorCode, message string, ctx map[string]any) PlatformError {
	if err == nil {
		return nil
	}
	return &platformError{code: code, message: message, context: maps.Clone(ctx), cause: err}
}

// GetCode returns the code of the outermost PlatformError in err's chain, or
// CodeUnknown when there is none.
func GetCode(err error) ErrorCode {
	var pe PlatformError
	if stderrors.As(err, &pe) {
		return pe.Code()
	}
	return CodeUnknown
}

// Is is an alias for the standard library errors.Is.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As is an alias for the standard library errors.As.
func As(err error, target any) bool { return stderrors.As(err, target) }

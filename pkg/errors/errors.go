// Package errors provides the unified error type and factory functions used
// across esglens. Every layer (domain, extraction, intelligence, application,
// interfaces) carries structured failure information through AppError so that
// callers can distinguish recoverable per-document failures from systemic
// ones without string matching.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// stackDepth is the maximum number of frames captured per error.
const stackDepth = 32

// captureStack returns a formatted call stack starting two frames above the
// caller, skipping captureStack itself and the New/Wrap frame.
func captureStack(skip int) string {
	pcs := make([]uintptr, stackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		f, more := frames.Next()
		if !strings.Contains(f.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", f.File, f.Line, f.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

// AppError is the single structured error type used throughout esglens.
// It satisfies the standard error interface and supports Go 1.13+ wrapping,
// so errors.Is / errors.As / errors.Unwrap work across all layers.
//
// Usage:
//
//	return errors.New(errors.ErrCodeExtractionFailure, "standard yielded zero requirements")
//	return errors.Wrap(err, errors.ErrCodeEmbeddingUnavailable, "embedding backend unreachable")
type AppError struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is the primary human-readable description.
	Message string

	// Detail carries supplementary context (document IDs, thresholds, pages)
	// that aids debugging without polluting the primary message.
	Detail string

	// Cause is the underlying error, enabling error-chain traversal.
	Cause error

	// Stack is the formatted call stack captured at creation. It is not part
	// of Error() output; structured log sinks read the field directly.
	Stack string
}

// Error implements the standard error interface.
// Format: "[<code>] <message>: <detail>" with detail omitted when empty.
func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetail returns a shallow copy of the receiver with Detail set.
// Safe to call on a nil pointer.
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithCause returns a shallow copy of the receiver with Cause set to err.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// New constructs a fresh AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Newf constructs an AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(1),
	}
}

// Wrap constructs an AppError that wraps an existing error. If err is nil,
// Wrap returns nil so it can be used inline on a call's error result.
// When err is already an *AppError and code is ErrCodeUnknown, the original
// code is preserved so cross-layer propagation does not lose classification.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if code == ErrCodeUnknown {
		var ae *AppError
		if errors.As(err, &ae) {
			code = ae.Code
		}
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
		Stack:   captureStack(1),
	}
}

// IsCode reports whether any error in err's chain is an *AppError with the
// given code.
func IsCode(err error, code ErrorCode) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// CodeOf returns the code of the outermost *AppError in err's chain, or
// ErrCodeUnknown when the chain contains none.
func CodeOf(err error) ErrorCode {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ErrCodeUnknown
}

// Convenience factories for the most common categories.

// Internal constructs an ErrCodeInternal error.
func Internal(message string) *AppError { return New(ErrCodeInternal, message) }

// NotFound constructs an ErrCodeNotFound error.
func NotFound(message string) *AppError { return New(ErrCodeNotFound, message) }

// Validation constructs an ErrCodeValidation error.
func Validation(message string) *AppError { return New(ErrCodeValidation, message) }

// InvalidInput constructs an ErrCodeBadRequest error.
func InvalidInput(message string) *AppError { return New(ErrCodeBadRequest, message) }

// Unavailable constructs an ErrCodeServiceUnavailable error.
func Unavailable(message string) *AppError { return New(ErrCodeServiceUnavailable, message) }

// Re-exported standard helpers so call sites need a single errors import.

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error { return errors.Unwrap(err) }

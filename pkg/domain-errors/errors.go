// Package domainerrors provides coded errors shared by all services. Codes
// classify failures for transport mapping; messages stay human readable.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers that need to branch on failure class.
type Code string

const (
	// CodeValidation marks malformed or missing request fields.
	CodeValidation Code = "VALIDATION"
	// CodeNotFound marks an unknown process, activation or document.
	CodeNotFound Code = "NOT_FOUND"
	// CodeStateConflict marks an operation attempted outside its required
	// phase/status, or lock contention on an activation.
	CodeStateConflict Code = "STATE_CONFLICT"
	// CodeRateLimit marks an exceeded per-user process quota.
	CodeRateLimit Code = "RATE_LIMIT"
	// CodeDelivery marks an OTP or consent transport failure.
	CodeDelivery Code = "DELIVERY"
	// CodeProvider marks a document/presence provider failure.
	CodeProvider Code = "PROVIDER"
	// CodeFatalOrchestration marks a guard or precomplete-check failure.
	CodeFatalOrchestration Code = "FATAL_ORCHESTRATION"
	// CodeExpired marks a process aged past a configured window.
	CodeExpired Code = "EXPIRED"
	// CodeInternal marks unexpected internal failures.
	CodeInternal Code = "INTERNAL"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err returns
// nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err or any error in its chain carries the code.
func HasCode(err error, code Code) bool {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// outside this package.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

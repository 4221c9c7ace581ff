// Package errors provides structured error types for the GDS client.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the library, CLI and gateway
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages that always name the procedure namespace
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes follow the failure taxonomy of the dispatch pipeline:
//   - NO_SUCH_PROCEDURE: the namespace is not a callable procedure
//   - MISSING_PARAMETER / INVALID_PARAMETER: local argument validation
//   - INCOMPATIBLE_SERVER_VERSION: version gate rejected the call
//   - TRANSPORT: connection or session faults
//   - PROCEDURE_FAILED: the server reported a failure
//
// Errors carrying the first three codes are raised before any network I/O.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidConfig, "uri cannot be empty")
//	if errors.Is(err, errors.ErrCodeInvalidConfig) {
//	    // Handle configuration error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeTransport, origErr, "failed to reach %s", addr)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Resolution errors
	ErrCodeNoSuchProcedure Code = "NO_SUCH_PROCEDURE"

	// Parameter errors
	ErrCodeMissingParameter Code = "MISSING_PARAMETER"
	ErrCodeInvalidParameter Code = "INVALID_PARAMETER"

	// Compatibility errors
	ErrCodeIncompatibleServer Code = "INCOMPATIBLE_SERVER_VERSION"

	// Transport and remote errors
	ErrCodeTransport         Code = "TRANSPORT"
	ErrCodeProcedureFailed   Code = "PROCEDURE_FAILED"
	ErrCodeNegotiationFailed Code = "NEGOTIATION_FAILED"

	// Bulk transfer errors
	ErrCodeUploadInProgress  Code = "UPLOAD_IN_PROGRESS"
	ErrCodeWriteBackDisabled Code = "WRITE_BACK_DISABLED"

	// Client errors
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeClosed        Code = "CLIENT_CLOSED"
	ErrCodeUnsupported   Code = "UNSUPPORTED"
	ErrCodeInternal      Code = "INTERNAL_ERROR"
)

// coder is implemented by every error type in this package.
type coder interface {
	ErrorCode() Code
}

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorCode returns the error's code.
func (e *Error) ErrorCode() Code {
	return e.Code
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for the outermost coded error.
func Is(err error, code Code) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if no error in the chain carries a code.
func GetCode(err error) Code {
	var c coder
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Local reports whether err was raised before any network I/O: resolution,
// parameter and compatibility failures.
func Local(err error) bool {
	switch GetCode(err) {
	case ErrCodeNoSuchProcedure, ErrCodeMissingParameter, ErrCodeInvalidParameter, ErrCodeIncompatibleServer:
		return true
	}
	return false
}

package errors

import (
	"fmt"
	"strings"
)

// NoSuchProcedureError is returned when a namespace does not name a callable
// procedure or function on the connected server.
type NoSuchProcedureError struct {
	Namespace   string   // Full dotted namespace that was invoked
	Suggestions []string // Closest known procedure names, best first
	Prefix      bool     // Namespace is a prefix of real procedures, not a leaf
}

func (e *NoSuchProcedureError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "There is no '%s' to call", e.Namespace)
	if e.Prefix {
		fmt.Fprintf(&b, " ('%s' is a namespace, not a procedure)", e.Namespace)
	}
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, ". Did you mean: %s?", strings.Join(e.Suggestions, ", "))
	}
	return b.String()
}

// ErrorCode returns [ErrCodeNoSuchProcedure].
func (e *NoSuchProcedureError) ErrorCode() Code { return ErrCodeNoSuchProcedure }

// MissingParameterError is returned when a required positional parameter was
// not supplied.
type MissingParameterError struct {
	Procedure string
	Parameter string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("%s: missing required parameter '%s'", e.Procedure, e.Parameter)
}

// ErrorCode returns [ErrCodeMissingParameter].
func (e *MissingParameterError) ErrorCode() Code { return ErrCodeMissingParameter }

// InvalidParameterError is returned when a positional parameter does not
// match the declared type of the procedure signature, or when more arguments
// are given than the signature declares.
type InvalidParameterError struct {
	Procedure string
	Parameter string
	Expected  string
	Got       any
}

func (e *InvalidParameterError) Error() string {
	if e.Parameter == "" {
		return fmt.Sprintf("%s: %s", e.Procedure, e.Expected)
	}
	return fmt.Sprintf("%s: parameter '%s' expects %s, got %T", e.Procedure, e.Parameter, e.Expected, e.Got)
}

// ErrorCode returns [ErrCodeInvalidParameter].
func (e *InvalidParameterError) ErrorCode() Code { return ErrCodeInvalidParameter }

// IncompatibleServerVersionError is returned by the version gate when the
// connected server is outside a call's compatibility window. The message is
// self-contained: namespace, formal parameters, window and server version.
type IncompatibleServerVersionError struct {
	Namespace    string
	Params       []string
	MinInclusive string // Empty when unbounded
	MaxExclusive string // Empty when unbounded
	Server       string
}

func (e *IncompatibleServerVersionError) Error() string {
	return fmt.Sprintf("The call %s(%s) requires GDS server version %s, but the connected server version is %s",
		e.Namespace, strings.Join(e.Params, ", "), e.Requirement(), e.Server)
}

// Requirement renders the required window, e.g. ">= 2.5.0" or "in [2.1.0, 3.0.0)".
func (e *IncompatibleServerVersionError) Requirement() string {
	switch {
	case e.MinInclusive != "" && e.MaxExclusive != "":
		return fmt.Sprintf("in [%s, %s)", e.MinInclusive, e.MaxExclusive)
	case e.MinInclusive != "":
		return ">= " + e.MinInclusive
	case e.MaxExclusive != "":
		return "< " + e.MaxExclusive
	default:
		return "(any)"
	}
}

// ErrorCode returns [ErrCodeIncompatibleServer].
func (e *IncompatibleServerVersionError) ErrorCode() Code { return ErrCodeIncompatibleServer }

// ProcedureError decorates a failure returned by an execution channel with
// the namespace that was called. The original error is preserved verbatim
// and remains reachable through errors.Is and errors.As.
type ProcedureError struct {
	Namespace string
	Code      Code // ErrCodeTransport or ErrCodeProcedureFailed
	Err       error
}

func (e *ProcedureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Namespace, e.Err)
}

// Unwrap returns the channel error.
func (e *ProcedureError) Unwrap() error { return e.Err }

// ErrorCode returns the transport/remote classification of the failure.
func (e *ProcedureError) ErrorCode() Code {
	if e.Code == "" {
		return ErrCodeProcedureFailed
	}
	return e.Code
}

package simerrors

import (
	"errors"
	"fmt"
)

// Code classifies a diagnostic emitted by the harness. Codes are stable and
// safe to match on; messages are not.
type Code string

const (
	// CodeInvalidEndpoint is reported when a reconnect was requested with an
	// unparseable or zero endpoint. The node's state is left unchanged.
	CodeInvalidEndpoint Code = "INVALID_ENDPOINT"
	// CodeInitializerFailure is reported when the fleet-growth callback
	// returned false. Fleet growth pauses for the retry interval.
	CodeInitializerFailure Code = "INITIALIZER_FAILURE"
	// CodeEmulationDisabled is reported when a fault-injection toggle was
	// requested while network emulation is disabled. The toggle is a no-op.
	CodeEmulationDisabled Code = "EMULATION_DISABLED"
	// CodeNodeNotFound is reported when an operation names a node that is not
	// part of the session.
	CodeNodeNotFound Code = "NODE_NOT_FOUND"
	// CodeInvalidState is reported when an operation is not valid in the
	// node's current connection state.
	CodeInvalidState Code = "INVALID_STATE"
	// CodeInternal covers everything else.
	CodeInternal Code = "INTERNAL"
)

// Error is a classified harness error. None of these are fatal: every one of
// them is recovered locally and reflected as persistent state for the next
// observation cycle.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf creates a classified error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an underlying error with a classification and message.
func Wrap(code Code, err error, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf extracts the classification of an error. Unclassified errors map to
// CodeInternal; nil maps to the empty code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given classification.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

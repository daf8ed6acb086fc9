// Package domainerrors provides coded errors shared across the core.
//
// Codes classify failures for logging, metrics, and transport mapping without
// forcing callers to match on message strings. Wrap with fmt.Errorf("%w") as
// usual; CodeOf walks the chain.
package domainerrors

import "errors"

// Code identifies a failure class.
type Code string

const (
	CodeHydrationFailure      Code = "hydration_failure"
	CodeHydrationTimeout      Code = "hydration_timeout"
	CodeConsentPersistFailure Code = "consent_persist_failure"
	CodeUnauthorized          Code = "unauthorized"
	CodeInvalidInput          Code = "invalid_input"
	CodeNotFound              Code = "not_found"
	CodeInternal              Code = "internal"
)

// Error pairs a machine-readable code with a human-readable message.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a cause so errors.Is/As keep working through the chain.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// CodeOf extracts the code from an error chain, or CodeInternal when the
// chain carries no coded error.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// HasCode reports whether the chain carries the given code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

package errors

import stderrors "errors"

// Error is a classified provider failure.
type Error struct {
	Code    Code
	Message string
	// ProviderCode is the provider's own code, when it reported one.
	ProviderCode string
	Cause        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidCredentials = New(CodeInvalidCredentials, "invalid credentials")
	ErrAccountExists      = New(CodeAccountExists, "account already exists")
	ErrNetwork            = New(CodeNetwork, "network failure")
	ErrRateLimited        = New(CodeRateLimited, "too many requests")
	ErrProvider           = New(CodeProvider, "provider error")
)

// New creates a classified error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a classified error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or "" when there is none.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

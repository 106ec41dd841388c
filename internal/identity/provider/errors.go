package provider

import "fmt"

// Error codes reported by providers. They mirror the codes of hosted identity platforms so that
// adapters for those platforms can pass codes through untouched.
const (
	CodeInvalidCredential       = "auth/invalid-credential"
	CodeWrongPassword           = "auth/wrong-password"
	CodeUserNotFound            = "auth/user-not-found"
	CodeInvalidEmail            = "auth/invalid-email"
	CodeWeakPassword            = "auth/weak-password"
	CodeEmailAlreadyInUse       = "auth/email-already-in-use"
	CodeCredentialAlreadyInUse  = "auth/credential-already-in-use"
	CodeNetworkRequestFailed    = "auth/network-request-failed"
	CodeTooManyRequests         = "auth/too-many-requests"
	CodeOperationNotAllowed     = "auth/operation-not-allowed"
	CodeInvalidActionCode       = "auth/invalid-action-code"
	CodeUnavailable             = "unavailable"
	CodeDeadlineExceeded        = "deadline-exceeded"
	CodeResourceExhausted       = "resource-exhausted"
	CodeNotFound                = "not-found"
	CodeInternal                = "internal"
)

// Error is an error reported by the provider.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// NewError returns a provider error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError returns a provider error with the given code that wraps cause.
func WrapError(code string, cause error) *Error {
	msg := code
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Code: code, Message: msg, Cause: cause}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

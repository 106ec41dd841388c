package errors

import (
	"context"
	stderrors "errors"
	"net"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"academia-identity/backend/internal/identity/provider"
	"academia-identity/backend/internal/identity/schema"
)

var providerCodes = map[string]Code{
	provider.CodeInvalidCredential:      CodeInvalidCredentials,
	provider.CodeWrongPassword:          CodeInvalidCredentials,
	provider.CodeUserNotFound:           CodeInvalidCredentials,
	provider.CodeInvalidEmail:           CodeInvalidCredentials,
	provider.CodeInvalidActionCode:      CodeInvalidCredentials,
	provider.CodeEmailAlreadyInUse:      CodeAccountExists,
	provider.CodeCredentialAlreadyInUse: CodeAccountExists,
	provider.CodeNetworkRequestFailed:   CodeNetwork,
	provider.CodeUnavailable:            CodeNetwork,
	provider.CodeDeadlineExceeded:       CodeNetwork,
	provider.CodeTooManyRequests:        CodeRateLimited,
	provider.CodeResourceExhausted:      CodeRateLimited,
}

var grpcCodes = map[codes.Code]Code{
	codes.Unauthenticated:   CodeInvalidCredentials,
	codes.AlreadyExists:     CodeAccountExists,
	codes.Unavailable:       CodeNetwork,
	codes.DeadlineExceeded:  CodeNetwork,
	codes.ResourceExhausted: CodeRateLimited,
}

// Classify maps a raw provider error onto the closed taxonomy. Validation errors and errors that
// are already classified are returned unchanged; nil stays nil. Unrecognized failures become
// CodeProvider carrying the original message.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var ve *schema.ValidationError
	if stderrors.As(err, &ve) {
		return err
	}
	var classified *Error
	if stderrors.As(err, &classified) {
		return err
	}

	var pe *provider.Error
	if stderrors.As(err, &pe) {
		code, ok := providerCodes[pe.Code]
		if !ok {
			code = CodeProvider
		}
		return &Error{Code: code, Message: pe.Error(), ProviderCode: pe.Code, Cause: err}
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.OK {
		code, known := grpcCodes[st.Code()]
		if !known {
			code = CodeProvider
		}
		return &Error{Code: code, Message: st.Message(), ProviderCode: st.Code().String(), Cause: err}
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return Wrap(CodeNetwork, err.Error(), err)
	}
	var ne net.Error
	if stderrors.As(err, &ne) {
		return Wrap(CodeNetwork, err.Error(), err)
	}
	return Wrap(CodeProvider, err.Error(), err)
}

package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"academia-identity/backend/internal/identity/provider"
	"academia-identity/backend/internal/identity/schema"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want Code
	}{
		{"invalid credential", provider.NewError(provider.CodeInvalidCredential, "bad"), CodeInvalidCredentials},
		{"wrong password", provider.NewError(provider.CodeWrongPassword, "bad"), CodeInvalidCredentials},
		{"user not found", provider.NewError(provider.CodeUserNotFound, "none"), CodeInvalidCredentials},
		{"invalid email", provider.NewError(provider.CodeInvalidEmail, "bad"), CodeInvalidCredentials},
		{"email in use", provider.NewError(provider.CodeEmailAlreadyInUse, "dup"), CodeAccountExists},
		{"credential in use", provider.NewError(provider.CodeCredentialAlreadyInUse, "dup"), CodeAccountExists},
		{"network request failed", provider.NewError(provider.CodeNetworkRequestFailed, "offline"), CodeNetwork},
		{"unavailable", provider.NewError(provider.CodeUnavailable, "down"), CodeNetwork},
		{"deadline exceeded code", provider.NewError(provider.CodeDeadlineExceeded, "slow"), CodeNetwork},
		{"too many requests", provider.NewError(provider.CodeTooManyRequests, "slow down"), CodeRateLimited},
		{"resource exhausted", provider.NewError(provider.CodeResourceExhausted, "quota"), CodeRateLimited},
		{"unknown provider code", provider.NewError("auth/quota-project-mismatch", "odd"), CodeProvider},
		{"wrapped provider error", fmt.Errorf("sign in: %w", provider.NewError(provider.CodeWrongPassword, "bad")), CodeInvalidCredentials},
		{"grpc unauthenticated", status.Error(codes.Unauthenticated, "no"), CodeInvalidCredentials},
		{"grpc already exists", status.Error(codes.AlreadyExists, "dup"), CodeAccountExists},
		{"grpc unavailable", status.Error(codes.Unavailable, "down"), CodeNetwork},
		{"grpc deadline", status.Error(codes.DeadlineExceeded, "slow"), CodeNetwork},
		{"grpc exhausted", status.Error(codes.ResourceExhausted, "quota"), CodeRateLimited},
		{"grpc internal", status.Error(codes.Internal, "boom"), CodeProvider},
		{"context deadline", context.DeadlineExceeded, CodeNetwork},
		{"wrapped context deadline", fmt.Errorf("get doc: %w", context.DeadlineExceeded), CodeNetwork},
		{"net error", &net.OpError{Op: "dial", Net: "tcp", Err: timeoutErr{}}, CodeNetwork},
		{"plain error", stderrors.New("boom"), CodeProvider},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.in)
			if code := CodeOf(got); code != tc.want {
				t.Fatalf("Classify(%v) code = %q, want %q", tc.in, code, tc.want)
			}
			if !stderrors.Is(got, tc.in) {
				t.Errorf("classified error does not wrap the original")
			}
		})
	}
}

func TestClassify_KeepsOriginalMessage(t *testing.T) {
	got := Classify(stderrors.New("quota project mismatch"))
	if got.Error() != "quota project mismatch" {
		t.Errorf("message = %q", got.Error())
	}
	var e *Error
	if !stderrors.As(Classify(provider.NewError("auth/odd", "odd thing")), &e) {
		t.Fatal("expected *Error")
	}
	if e.ProviderCode != "auth/odd" {
		t.Errorf("ProviderCode = %q", e.ProviderCode)
	}
}

func TestClassify_PassThrough(t *testing.T) {
	if Classify(nil) != nil {
		t.Error("nil should stay nil")
	}
	ve := &schema.ValidationError{Schema: "Claims", Issues: []string{"Claims role: Required"}}
	if got := Classify(ve); got != ve {
		t.Errorf("validation error changed: %v", got)
	}
	already := Wrap(CodeRateLimited, "slow", nil)
	if got := Classify(already); got != already {
		t.Errorf("classified error changed: %v", got)
	}
}

func TestSentinels(t *testing.T) {
	err := Classify(provider.NewError(provider.CodeEmailAlreadyInUse, "dup"))
	if !stderrors.Is(err, ErrAccountExists) {
		t.Error("errors.Is(ErrAccountExists) = false")
	}
	if stderrors.Is(err, ErrNetwork) {
		t.Error("errors.Is(ErrNetwork) = true")
	}
	if len(Codes) != 5 {
		t.Errorf("taxonomy has %d codes, want 5", len(Codes))
	}
}

package domain

import "time"

// Actions recorded for account events.
const (
	ActionSignUp               = "sign_up"
	ActionSignIn               = "sign_in"
	ActionSignInFailure        = "sign_in_failure"
	ActionSignOut              = "sign_out"
	ActionPasswordResetRequest = "password_reset_requested"
	ActionPasswordReset        = "password_reset"
	ActionClaimsChanged        = "claims_changed"
	ActionIdentityLinked       = "identity_linked"
)

// AuditLog represents an account event.
type AuditLog struct {
	ID         string
	AcademiaID string
	UserID     string
	Action     string
	Metadata   map[string]string
	CreatedAt  time.Time
}

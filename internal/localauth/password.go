package localauth

import (
	"context"
	"errors"

	"go.uber.org/zap"

	auditdomain "academia-identity/backend/internal/audit/domain"
	"academia-identity/backend/internal/identity/provider"
	"academia-identity/backend/internal/security"
)

// SignIn authenticates with email and password and makes the account the current session.
func (c *Client) SignIn(ctx context.Context, email, password string) (provider.Record, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if !c.allow(email) {
		c.auditor.LogEvent(ctx, "", "", auditdomain.ActionSignInFailure, map[string]string{"email": email, "reason": "throttled"})
		return nil, provider.NewError(provider.CodeTooManyRequests, "too many sign-in attempts; try again later")
	}
	acct, err := c.accountByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, provider.NewError(provider.CodeUserNotFound, "no account for this email")
	}
	if acct.passwordHash == "" {
		return nil, provider.NewError(provider.CodeInvalidCredential, "account has no password; use federated sign-in")
	}
	if err := c.hasher.Verify(acct.passwordHash, password); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			c.audit(ctx, acct.uid, auditdomain.ActionSignInFailure, map[string]string{"reason": "wrong_password"})
			return nil, provider.NewError(provider.CodeWrongPassword, "the password is invalid")
		}
		return nil, provider.WrapError(provider.CodeInternal, err)
	}

	extra := provider.Record{}
	if c.hasher.NeedsRehash(acct.passwordHash) {
		if hash, err := c.hasher.Hash(password); err == nil {
			extra["passwordHash"] = hash
		}
	}
	acct, err = c.touch(ctx, acct.uid, extra)
	if err != nil {
		return nil, err
	}
	rec := acct.record()
	c.setCurrent(rec)
	c.audit(ctx, acct.uid, auditdomain.ActionSignIn, map[string]string{"method": "password"})
	c.logger.Debug("signed in", zap.String("uid", acct.uid))
	return rec, nil
}

// SignUp creates a password account and signs it in.
func (c *Client) SignUp(ctx context.Context, email, password string) (provider.Record, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}
	hash, err := c.hasher.Hash(password)
	if err != nil {
		return nil, provider.WrapError(provider.CodeInternal, err)
	}
	acct, err := c.createAccount(ctx, email, hash, false, nil)
	if err != nil {
		return nil, err
	}
	rec := acct.record()
	c.setCurrent(rec)
	c.auditor.LogEvent(ctx, "", acct.uid, auditdomain.ActionSignUp, nil)
	c.logger.Info("account created", zap.String("uid", acct.uid))
	return rec, nil
}

// SendPasswordResetEmail issues a reset token for email and hands it to the notifier.
func (c *Client) SendPasswordResetEmail(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	acct, err := c.accountByEmail(ctx, email)
	if err != nil {
		return err
	}
	if acct == nil {
		return provider.NewError(provider.CodeUserNotFound, "no account for this email")
	}
	token, expiresAt, err := c.tokens.IssueResetToken(acct.uid, acct.email, acct.passwordHash)
	if err != nil {
		return provider.WrapError(provider.CodeInternal, err)
	}
	if err := c.notifier.SendPasswordReset(ctx, acct.email, token, expiresAt); err != nil {
		return provider.WrapError(provider.CodeUnavailable, err)
	}
	c.audit(ctx, acct.uid, auditdomain.ActionPasswordResetRequest, nil)
	return nil
}

// ConfirmPasswordReset sets a new password using a token from SendPasswordResetEmail.
// A token stops working once the password has changed.
func (c *Client) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	claims, err := c.tokens.ValidateResetToken(token)
	if err != nil {
		return provider.NewError(provider.CodeInvalidActionCode, "the reset code is invalid or expired")
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	acct, err := c.accountByID(ctx, claims.Subject)
	if err != nil {
		return err
	}
	if acct == nil {
		return provider.NewError(provider.CodeUserNotFound, "no account for this reset code")
	}
	if !security.FingerprintEqual(acct.passwordHash, claims.Stamp) {
		return provider.NewError(provider.CodeInvalidActionCode, "the reset code has already been used")
	}
	hash, err := c.hasher.Hash(newPassword)
	if err != nil {
		return provider.WrapError(provider.CodeInternal, err)
	}
	if err := c.store.UpdateDoc(ctx, AccountsCollection, acct.uid, provider.Record{"passwordHash": hash}); err != nil {
		return err
	}
	c.audit(ctx, acct.uid, auditdomain.ActionPasswordReset, nil)
	c.logger.Info("password reset", zap.String("uid", acct.uid))
	return nil
}

package security

import (
	"testing"
	"time"
)

func TestTokenProvider_IDToken(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	academia := "acad-1"
	token, exp, err := p.IssueIDToken("u1", "u1@x.com", CustomClaims{
		Role: "instructor", AcademiaID: &academia, Permissions: []string{"classes:write"},
	})
	if err != nil {
		t.Fatalf("IssueIDToken: %v", err)
	}
	if token == "" || exp.Before(time.Now()) {
		t.Fatalf("token = %q, exp = %v", token, exp)
	}

	claims, err := p.ValidateIDToken(token)
	if err != nil {
		t.Fatalf("ValidateIDToken: %v", err)
	}
	if claims.Subject != "u1" || claims.Email != "u1@x.com" || claims.Role != "instructor" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.AcademiaID == nil || *claims.AcademiaID != academia {
		t.Errorf("AcademiaID = %v", claims.AcademiaID)
	}
	if len(claims.Permissions) != 1 || claims.Permissions[0] != "classes:write" {
		t.Errorf("Permissions = %v", claims.Permissions)
	}
	if claims.ID == "" {
		t.Error("jti is empty")
	}
}

func TestTokenProvider_Invalid(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	if _, err := p.ValidateIDToken("invalid-token"); err != ErrInvalidToken {
		t.Errorf("ValidateIDToken garbage = %v", err)
	}
	if _, err := p.ValidateResetToken("invalid-token"); err != ErrInvalidToken {
		t.Errorf("ValidateResetToken garbage = %v", err)
	}

	expired, err := NewTestTokenProviderTTL(-time.Minute, -time.Minute)
	if err != nil {
		t.Fatalf("NewTestTokenProviderTTL: %v", err)
	}
	token, _, _ := expired.IssueIDToken("u1", "u1@x.com", CustomClaims{})
	if _, err := p.ValidateIDToken(token); err != ErrInvalidToken {
		t.Errorf("expired token = %v, want ErrInvalidToken", err)
	}

	signer, pub, _ := LoadKeyPair(testPrivateKeyPEM, testPublicKeyPEM)
	other := NewTokenProvider(signer, pub, "someone-else", TestAudience, time.Hour, time.Hour)
	token, _, _ = other.IssueIDToken("u1", "u1@x.com", CustomClaims{})
	if _, err := p.ValidateIDToken(token); err != ErrInvalidToken {
		t.Errorf("foreign issuer = %v, want ErrInvalidToken", err)
	}
	other = NewTokenProvider(signer, pub, TestIssuer, "another-app", time.Hour, time.Hour)
	token, _, _ = other.IssueIDToken("u1", "u1@x.com", CustomClaims{})
	if _, err := p.ValidateIDToken(token); err != ErrInvalidToken {
		t.Errorf("foreign audience = %v, want ErrInvalidToken", err)
	}
}

func TestTokenProvider_ResetToken(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, _, err := p.IssueResetToken("u1", "u1@x.com", "$2a$04$hash")
	if err != nil {
		t.Fatalf("IssueResetToken: %v", err)
	}
	claims, err := p.ValidateResetToken(token)
	if err != nil {
		t.Fatalf("ValidateResetToken: %v", err)
	}
	if claims.Subject != "u1" || claims.Email != "u1@x.com" || claims.Purpose != PurposePasswordReset {
		t.Errorf("claims = %+v", claims)
	}
	if !FingerprintEqual("$2a$04$hash", claims.Stamp) || FingerprintEqual("$2a$04$other", claims.Stamp) {
		t.Error("stamp does not bind the password hash")
	}

	idToken, _, _ := p.IssueIDToken("u1", "u1@x.com", CustomClaims{})
	if _, err := p.ValidateResetToken(idToken); err != ErrInvalidToken {
		t.Errorf("ID token accepted as reset token: %v", err)
	}
}

package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed or invalid.
	ErrInvalidToken = errors.New("invalid token")
)

// PurposePasswordReset marks reset tokens so they cannot be replayed as ID tokens.
const PurposePasswordReset = "password_reset"

// CustomClaims are the authorization claims attached to an ID token.
type CustomClaims struct {
	Role        string   `json:"role,omitempty"`
	AcademiaID  *string  `json:"academiaId,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// IDClaims holds JWT claims for the ID token.
type IDClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	CustomClaims
}

// ResetClaims holds JWT claims for a password reset token. Stamp is the fingerprint of the
// password hash at issue time; once the password changes the token no longer matches.
type ResetClaims struct {
	jwt.RegisteredClaims
	Purpose string `json:"purpose"`
	Email   string `json:"email"`
	Stamp   string `json:"stamp"`
}

// TokenProvider issues and validates ID tokens and password reset tokens using RS256 or ES256.
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	idTTL      time.Duration
	resetTTL   time.Duration
}

// NewTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
// issuer and audience are set on claims and checked on validation.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, idTTL, resetTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		idTTL:      idTTL,
		resetTTL:   resetTTL,
	}
}

// IssueIDToken issues an ID token for userID carrying the custom claims.
func (p *TokenProvider) IssueIDToken(userID, email string, custom CustomClaims) (token string, expiresAt time.Time, err error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.idTTL)
	claims := IDClaims{
		RegisteredClaims: p.registered(jti, userID, now, expiresAt),
		Email:            email,
		CustomClaims:     custom,
	}
	token, err = p.sign(claims)
	return token, expiresAt, err
}

// IssueResetToken issues a single-use password reset token bound to the current password hash.
func (p *TokenProvider) IssueResetToken(userID, email, passwordHash string) (token string, expiresAt time.Time, err error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.resetTTL)
	claims := ResetClaims{
		RegisteredClaims: p.registered(jti, userID, now, expiresAt),
		Purpose:          PurposePasswordReset,
		Email:            email,
		Stamp:            Fingerprint(passwordHash),
	}
	token, err = p.sign(claims)
	return token, expiresAt, err
}

// ValidateIDToken parses and validates an ID token (signature, exp, iss, aud).
func (p *TokenProvider) ValidateIDToken(tokenString string) (*IDClaims, error) {
	claims := &IDClaims{}
	if err := p.parse(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateResetToken parses and validates a password reset token. It does not check the stamp;
// callers compare it with the stored hash using FingerprintEqual.
func (p *TokenProvider) ValidateResetToken(tokenString string) (*ResetClaims, error) {
	claims := &ResetClaims{}
	if err := p.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Purpose != PurposePasswordReset {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (p *TokenProvider) registered(jti, subject string, now, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        jti,
		Subject:   subject,
		Issuer:    p.issuer,
		Audience:  jwt.ClaimStrings{p.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(p.privateKey)
}

func (p *TokenProvider) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
			return p.publicKey, nil
		}
		return nil, ErrInvalidToken
	})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	if iss, _ := claims.GetIssuer(); iss != p.issuer {
		return ErrInvalidToken
	}
	if aud, _ := claims.GetAudience(); !slices.Contains(aud, p.audience) {
		return ErrInvalidToken
	}
	return nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

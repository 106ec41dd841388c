// Package provider defines the contract of the external identity-and-document provider.
// Implementations hand back JSON-decoded payloads; validation and mapping happen in the caller.
package provider

import (
	"context"

	"academia-identity/backend/internal/identity/domain"
)

// Record is an untyped, JSON-decoded payload as returned by the provider.
type Record = map[string]any

// Credential carries the result of a federated sign-in ceremony. Either IDToken is set, or
// AuthCode (with the PKCE CodeVerifier when one was used) for the provider to exchange.
type Credential struct {
	IDToken      string
	AuthCode     string
	CodeVerifier string
}

// AuthClient is the credential-based session API of the provider.
type AuthClient interface {
	SignIn(ctx context.Context, email, password string) (Record, error)
	SignUp(ctx context.Context, email, password string) (Record, error)
	SignOut(ctx context.Context) error
	// CurrentUser returns the signed-in identity record, or nil when nobody is signed in.
	CurrentUser(ctx context.Context) (Record, error)
	// OnAuthStateChanged registers fn and returns the func that removes the registration.
	// fn receives nil when the session ends.
	OnAuthStateChanged(fn func(Record)) (unsubscribe func())
	SignInWithCredential(ctx context.Context, p domain.FederatedProvider, cred Credential) (Record, error)
	SendPasswordResetEmail(ctx context.Context, email string) error
}

// DocumentStore is a document store addressable by collection and id.
type DocumentStore interface {
	// GetDoc returns the document, or nil and no error when it does not exist.
	GetDoc(ctx context.Context, collection, id string) (Record, error)
	// SetDoc creates or replaces the document.
	SetDoc(ctx context.Context, collection, id string, data Record) error
	// UpdateDoc merges data into an existing document. It fails with CodeNotFound when the document is absent.
	UpdateDoc(ctx context.Context, collection, id string, data Record) error
}

// ClaimsSource exposes the custom claims attached to a user's token.
type ClaimsSource interface {
	// Claims returns the custom claims of uid, or nil when none are attached.
	Claims(ctx context.Context, uid string) (Record, error)
	// RefreshToken forces a new ID token for uid so that it reflects the current claims.
	RefreshToken(ctx context.Context, uid string) (string, error)
}

type serverTimestamp struct{}

// ServerTimestamp is a sentinel field value; the document store replaces it with its own clock on write.
var ServerTimestamp any = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

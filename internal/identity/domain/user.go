package domain

import "time"

// User is the identity snapshot returned after a successful sign-in or sign-up.
// It is never mutated in place; callers re-fetch it.
type User struct {
	ID            string
	Email         string
	EmailVerified bool
	CreatedAt     time.Time
	LastSignInAt  *time.Time
}

// FederatedProvider names an external identity provider usable for federated sign-in.
type FederatedProvider string

const (
	FederatedGoogle    FederatedProvider = "google"
	FederatedApple     FederatedProvider = "apple"
	FederatedFacebook  FederatedProvider = "facebook"
	FederatedMicrosoft FederatedProvider = "microsoft"
)

// FederatedProviders lists every supported federated provider.
var FederatedProviders = []FederatedProvider{
	FederatedGoogle,
	FederatedApple,
	FederatedFacebook,
	FederatedMicrosoft,
}

// Valid reports whether p is one of the supported federated providers.
func (p FederatedProvider) Valid() bool {
	for _, fp := range FederatedProviders {
		if p == fp {
			return true
		}
	}
	return false
}

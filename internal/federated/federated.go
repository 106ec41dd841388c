// Package federated verifies credentials issued by external OpenID Connect providers.
// Providers return identity facts only; account creation and linking happen in the caller.
package federated

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"academia-identity/backend/internal/identity/domain"
	"academia-identity/backend/internal/identity/provider"
)

// Identity is what a federated provider asserts about the user who completed its sign-in.
type Identity struct {
	Provider      domain.FederatedProvider
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// Verifier turns a credential from one provider into a verified Identity.
type Verifier interface {
	Provider() domain.FederatedProvider
	Verify(ctx context.Context, cred provider.Credential) (*Identity, error)
}

// Registry holds the configured providers and allows lookup by provider.
// It performs no auth logic itself.
type Registry struct {
	verifiers map[domain.FederatedProvider]Verifier
}

// NewRegistry registers the given verifiers. A later verifier for the same provider wins.
func NewRegistry(list ...Verifier) *Registry {
	m := make(map[domain.FederatedProvider]Verifier, len(list))
	for _, v := range list {
		m[v.Provider()] = v
	}
	return &Registry{verifiers: m}
}

// Get returns the verifier of p. A provider that is not configured yields auth/operation-not-allowed.
func (r *Registry) Get(p domain.FederatedProvider) (Verifier, error) {
	if r != nil {
		if v, ok := r.verifiers[p]; ok {
			return v, nil
		}
	}
	return nil, provider.NewError(provider.CodeOperationNotAllowed, fmt.Sprintf("sign-in with %s is not enabled", p))
}

// Providers lists the configured providers in declaration order of domain.FederatedProviders.
func (r *Registry) Providers() []domain.FederatedProvider {
	var out []domain.FederatedProvider
	for _, p := range domain.FederatedProviders {
		if _, ok := r.verifiers[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// flexBool accepts both JSON booleans and the "true"/"false" strings some providers send.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = flexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*b = flexBool(v)
	return nil
}

package federated

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"academia-identity/backend/internal/identity/domain"
	"academia-identity/backend/internal/identity/provider"
)

// Issuers of the supported providers. Microsoft is configured for the multi-tenant endpoint,
// whose tokens carry a tenant-specific issuer.
var Issuers = map[domain.FederatedProvider]string{
	domain.FederatedGoogle:    "https://accounts.google.com",
	domain.FederatedApple:     "https://appleid.apple.com",
	domain.FederatedFacebook:  "https://www.facebook.com",
	domain.FederatedMicrosoft: "https://login.microsoftonline.com/common/v2.0",
}

const microsoftTenantIssuer = "https://login.microsoftonline.com/{tenantid}/v2.0"

// Config configures one OIDC provider.
type Config struct {
	Provider     domain.FederatedProvider
	ClientID     string
	ClientSecret string
	// RedirectURL is needed only for the auth-code flow.
	RedirectURL string
	// Tenants limits Microsoft sign-in to these tenant ids. When empty any tenant is accepted,
	// provided the token issuer belongs to the tenant named in its tid claim.
	Tenants []string
}

// OIDCProvider verifies ID tokens of one OpenID Connect provider and, when an OAuth client is
// configured, exchanges authorization codes for them.
type OIDCProvider struct {
	name     domain.FederatedProvider
	verifier *oidc.IDTokenVerifier
	oauth    *oauth2.Config

	// Set for the Microsoft multi-tenant endpoint, where the verifier cannot check the issuer.
	perTenant bool
	tenants   map[string]bool
}

// NewOIDC discovers the provider's configuration and returns a verifier for cfg.ClientID.
func NewOIDC(ctx context.Context, cfg Config) (*OIDCProvider, error) {
	issuer, ok := Issuers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unsupported federated provider %q", cfg.Provider)
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%s oidc config missing client id", cfg.Provider)
	}
	oidcConfig := &oidc.Config{ClientID: cfg.ClientID}
	if cfg.Provider == domain.FederatedMicrosoft {
		// The issuer is checked against the tid claim in Verify.
		ctx = oidc.InsecureIssuerURLContext(ctx, microsoftTenantIssuer)
		oidcConfig.SkipIssuerCheck = true
	}
	oidcProvider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("init %s oidc provider: %w", cfg.Provider, err)
	}
	p := &OIDCProvider{
		name:     cfg.Provider,
		verifier: oidcProvider.Verifier(oidcConfig),
	}
	if cfg.Provider == domain.FederatedMicrosoft {
		p.restrictTenants(cfg.Tenants)
	}
	if cfg.ClientSecret != "" && cfg.RedirectURL != "" {
		p.oauth = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     oidcProvider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		}
	}
	return p, nil
}

// NewOIDCWithKeySet builds a provider from a fixed issuer and key set, skipping discovery.
func NewOIDCWithKeySet(name domain.FederatedProvider, issuer, clientID string, keySet oidc.KeySet, oauth *oauth2.Config) *OIDCProvider {
	return &OIDCProvider{
		name:     name,
		verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{ClientID: clientID}),
		oauth:    oauth,
	}
}

// NewMicrosoftWithKeySet builds a Microsoft multi-tenant provider from a fixed key set, skipping
// discovery. tenants has the meaning of Config.Tenants.
func NewMicrosoftWithKeySet(clientID string, keySet oidc.KeySet, oauth *oauth2.Config, tenants []string) *OIDCProvider {
	p := &OIDCProvider{
		name:     domain.FederatedMicrosoft,
		verifier: oidc.NewVerifier("", keySet, &oidc.Config{ClientID: clientID, SkipIssuerCheck: true}),
		oauth:    oauth,
	}
	p.restrictTenants(tenants)
	return p
}

func (p *OIDCProvider) restrictTenants(tenants []string) {
	p.perTenant = true
	for _, t := range tenants {
		if t = strings.TrimSpace(t); t != "" {
			if p.tenants == nil {
				p.tenants = make(map[string]bool)
			}
			p.tenants[strings.ToLower(t)] = true
		}
	}
}

// checkTenant validates a multi-tenant token: the issuer must be the one of the tenant in tid,
// and the tenant must be allowed.
func (p *OIDCProvider) checkTenant(issuer, tenant string) error {
	tenant = strings.ToLower(tenant)
	if tenant == "" || !strings.EqualFold(issuer, strings.Replace(microsoftTenantIssuer, "{tenantid}", tenant, 1)) {
		return provider.NewError(provider.CodeInvalidCredential, fmt.Sprintf("%s id_token issuer does not match its tenant", p.name))
	}
	if p.tenants != nil && !p.tenants[tenant] {
		return provider.NewError(provider.CodeInvalidCredential, fmt.Sprintf("%s tenant %s is not allowed", p.name, tenant))
	}
	return nil
}

// Provider returns the provider identifier used by the registry.
func (p *OIDCProvider) Provider() domain.FederatedProvider {
	return p.name
}

// AuthCodeURL builds the authorization URL with PKCE parameters. It is empty when no OAuth
// client is configured.
func (p *OIDCProvider) AuthCodeURL(state, codeChallenge string) string {
	if p.oauth == nil {
		return ""
	}
	return p.oauth.AuthCodeURL(
		state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// Verify checks cred.IDToken, or exchanges cred.AuthCode first when no ID token is given.
func (p *OIDCProvider) Verify(ctx context.Context, cred provider.Credential) (*Identity, error) {
	raw := cred.IDToken
	if raw == "" {
		if cred.AuthCode == "" {
			return nil, provider.NewError(provider.CodeInvalidCredential, "credential has neither id token nor auth code")
		}
		var err error
		if raw, err = p.exchange(ctx, cred); err != nil {
			return nil, err
		}
	}

	idToken, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, provider.WrapError(provider.CodeInvalidCredential, fmt.Errorf("%s id_token verification failed: %w", p.name, err))
	}
	var claims struct {
		Subject       string   `json:"sub"`
		Email         string   `json:"email"`
		EmailVerified flexBool `json:"email_verified"`
		Name          string   `json:"name"`
		TenantID      string   `json:"tid"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, provider.WrapError(provider.CodeInvalidCredential, fmt.Errorf("%s id_token claims parse failed: %w", p.name, err))
	}
	if p.perTenant {
		if err := p.checkTenant(idToken.Issuer, claims.TenantID); err != nil {
			return nil, err
		}
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, provider.NewError(provider.CodeInvalidCredential, fmt.Sprintf("%s id_token missing required claims", p.name))
	}
	return &Identity{
		Provider:      p.name,
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: bool(claims.EmailVerified),
		Name:          claims.Name,
	}, nil
}

func (p *OIDCProvider) exchange(ctx context.Context, cred provider.Credential) (string, error) {
	if p.oauth == nil {
		return "", provider.NewError(provider.CodeOperationNotAllowed, fmt.Sprintf("%s auth-code sign-in is not configured", p.name))
	}
	var opts []oauth2.AuthCodeOption
	if cred.CodeVerifier != "" {
		opts = append(opts, oauth2.SetAuthURLParam("code_verifier", cred.CodeVerifier))
	}
	token, err := p.oauth.Exchange(ctx, cred.AuthCode, opts...)
	if err != nil {
		return "", exchangeError(p.name, err)
	}
	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return "", provider.NewError(provider.CodeInvalidCredential, fmt.Sprintf("%s did not return id_token", p.name))
	}
	return raw, nil
}

func exchangeError(name domain.FederatedProvider, err error) error {
	wrapped := fmt.Errorf("%s token exchange failed: %w", name, err)
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.Response != nil && re.Response.StatusCode == 429 {
			return provider.WrapError(provider.CodeTooManyRequests, wrapped)
		}
		if re.Response != nil && re.Response.StatusCode >= 500 {
			return provider.WrapError(provider.CodeUnavailable, wrapped)
		}
		return provider.WrapError(provider.CodeInvalidCredential, wrapped)
	}
	var ne net.Error
	if errors.As(err, &ne) || errors.Is(err, context.DeadlineExceeded) {
		return provider.WrapError(provider.CodeNetworkRequestFailed, wrapped)
	}
	return provider.WrapError(provider.CodeInternal, wrapped)
}

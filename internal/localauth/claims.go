package localauth

import (
	"context"
	"errors"

	auditdomain "academia-identity/backend/internal/audit/domain"
	"academia-identity/backend/internal/identity/provider"
	"academia-identity/backend/internal/security"
)

// Claims returns the custom claims of uid, or nil when none are set. Permissions come from the
// policy engine when one is configured, otherwise from the stored claims.
func (c *Client) Claims(ctx context.Context, uid string) (provider.Record, error) {
	custom, err := c.customClaims(ctx, uid)
	if err != nil || custom == nil {
		return nil, err
	}
	perms := custom.Permissions
	if perms == nil {
		perms = []string{}
	}
	rec := provider.Record{
		"role":        custom.Role,
		"academiaId":  nil,
		"permissions": perms,
	}
	if custom.AcademiaID != nil {
		rec["academiaId"] = *custom.AcademiaID
	}
	return rec, nil
}

// SetClaims attaches role and academia to uid. Tokens issued afterwards carry them.
func (c *Client) SetClaims(ctx context.Context, uid, role string, academiaID *string) error {
	if role == "" {
		return errors.New("localauth: role is required")
	}
	acct, err := c.accountByID(ctx, uid)
	if err != nil {
		return err
	}
	if acct == nil {
		return provider.NewError(provider.CodeUserNotFound, "no account "+uid)
	}
	doc := provider.Record{"role": role, "academiaId": nil, "updatedAt": provider.ServerTimestamp}
	if academiaID != nil {
		doc["academiaId"] = *academiaID
	}
	if err := c.store.SetDoc(ctx, ClaimsCollection, uid, doc); err != nil {
		return err
	}
	c.audit(ctx, uid, auditdomain.ActionClaimsChanged, map[string]string{"role": role})
	return nil
}

// RefreshToken issues a new ID token for uid carrying its current claims.
func (c *Client) RefreshToken(ctx context.Context, uid string) (string, error) {
	acct, err := c.accountByID(ctx, uid)
	if err != nil {
		return "", err
	}
	if acct == nil {
		return "", provider.NewError(provider.CodeUserNotFound, "no account "+uid)
	}
	custom, err := c.customClaims(ctx, uid)
	if err != nil {
		return "", err
	}
	if custom == nil {
		custom = &security.CustomClaims{}
	}
	token, _, err := c.tokens.IssueIDToken(acct.uid, acct.email, *custom)
	if err != nil {
		return "", provider.WrapError(provider.CodeInternal, err)
	}
	return token, nil
}

func (c *Client) customClaims(ctx context.Context, uid string) (*security.CustomClaims, error) {
	doc, err := c.store.GetDoc(ctx, ClaimsCollection, uid)
	if err != nil || doc == nil {
		return nil, err
	}
	custom := &security.CustomClaims{}
	custom.Role, _ = doc["role"].(string)
	if id, ok := doc["academiaId"].(string); ok {
		custom.AcademiaID = &id
	}
	if c.permissions != nil {
		perms, err := c.permissions.Permissions(ctx, custom.Role, custom.AcademiaID)
		if err != nil {
			return nil, provider.WrapError(provider.CodeInternal, err)
		}
		custom.Permissions = perms
		return custom, nil
	}
	if list, ok := doc["permissions"].([]any); ok {
		for _, p := range list {
			if s, ok := p.(string); ok {
				custom.Permissions = append(custom.Permissions, s)
			}
		}
	}
	return custom, nil
}

package localauth

import (
	"context"
	"errors"

	"go.uber.org/zap"

	auditdomain "academia-identity/backend/internal/audit/domain"
	"academia-identity/backend/internal/docstore"
	"academia-identity/backend/internal/federated"
	"academia-identity/backend/internal/identity/domain"
	"academia-identity/backend/internal/identity/provider"
)

// SignInWithCredential verifies a federated credential and signs in the linked account.
// An unknown identity is linked to the account with the same verified email, or gets a new account.
func (c *Client) SignInWithCredential(ctx context.Context, p domain.FederatedProvider, cred provider.Credential) (provider.Record, error) {
	verifier, err := c.registry.Get(p)
	if err != nil {
		return nil, err
	}
	id, err := verifier.Verify(ctx, cred)
	if err != nil {
		return nil, err
	}
	email, err := normalizeEmail(id.Email)
	if err != nil {
		return nil, err
	}

	linkKey := string(p) + ":" + id.Subject
	acct, err := c.accountByIndex(ctx, LinksCollection, linkKey)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		if acct, err = c.linkIdentity(ctx, linkKey, email, id); err != nil {
			return nil, err
		}
	}

	extra := provider.Record{}
	if id.EmailVerified {
		extra["emailVerified"] = true
	}
	if acct, err = c.touch(ctx, acct.uid, extra); err != nil {
		return nil, err
	}
	rec := acct.record()
	c.setCurrent(rec)
	c.audit(ctx, acct.uid, auditdomain.ActionSignIn, map[string]string{"method": string(p)})
	c.logger.Debug("federated sign-in", zap.String("provider", string(p)), zap.String("uid", acct.uid))
	return rec, nil
}

func (c *Client) linkIdentity(ctx context.Context, linkKey, email string, id *federated.Identity) (*account, error) {
	acct, err := c.accountByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	switch {
	case acct != nil && !id.EmailVerified:
		return nil, provider.NewError(provider.CodeCredentialAlreadyInUse, "an account already exists with this email")
	case acct == nil:
		var name *string
		if id.Name != "" {
			name = &id.Name
		}
		if acct, err = c.createAccount(ctx, email, "", id.EmailVerified, name); err != nil {
			return nil, err
		}
	}
	err = c.store.CreateDoc(ctx, LinksCollection, linkKey, provider.Record{
		"uid":      acct.uid,
		"provider": string(id.Provider),
		"linkedAt": provider.ServerTimestamp,
	})
	if errors.Is(err, docstore.ErrExists) {
		// Lost a race with a concurrent sign-in for the same identity.
		return c.accountByIndex(ctx, LinksCollection, linkKey)
	}
	if err != nil {
		return nil, err
	}
	c.audit(ctx, acct.uid, auditdomain.ActionIdentityLinked, map[string]string{"provider": string(id.Provider), "subject": id.Subject})
	c.logger.Info("federated identity linked", zap.String("provider", string(id.Provider)), zap.String("uid", acct.uid))
	return acct, nil
}

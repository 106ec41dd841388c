package localauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"academia-identity/backend/internal/docstore"
	"academia-identity/backend/internal/identity/provider"
)

// account is the stored form of an identity. passwordHash is empty for federated-only accounts.
type account struct {
	uid          string
	email        string
	passwordHash string
	doc          provider.Record
}

// publicFields are the account fields exposed on identity records.
var publicFields = []string{"uid", "email", "emailVerified", "displayName", "createdAt", "lastSignInAt"}

func (a *account) record() provider.Record {
	rec := make(provider.Record, len(publicFields))
	for _, f := range publicFields {
		if v, ok := a.doc[f]; ok {
			rec[f] = v
		}
	}
	return rec
}

func (c *Client) accountByID(ctx context.Context, uid string) (*account, error) {
	doc, err := c.store.GetDoc(ctx, AccountsCollection, uid)
	if err != nil || doc == nil {
		return nil, err
	}
	email, _ := doc["email"].(string)
	hash, _ := doc["passwordHash"].(string)
	return &account{uid: uid, email: email, passwordHash: hash, doc: doc}, nil
}

// accountByEmail returns nil when no account owns email.
func (c *Client) accountByEmail(ctx context.Context, email string) (*account, error) {
	return c.accountByIndex(ctx, EmailsCollection, email)
}

func (c *Client) accountByIndex(ctx context.Context, collection, key string) (*account, error) {
	idx, err := c.store.GetDoc(ctx, collection, key)
	if err != nil || idx == nil {
		return nil, err
	}
	uid, _ := idx["uid"].(string)
	if uid == "" {
		return nil, provider.NewError(provider.CodeInternal, fmt.Sprintf("index %s/%s has no uid", collection, key))
	}
	return c.accountByID(ctx, uid)
}

// createAccount reserves email and writes a new account. The reservation is released when the
// account write fails.
func (c *Client) createAccount(ctx context.Context, email, passwordHash string, emailVerified bool, displayName *string) (*account, error) {
	uid := uuid.New().String()
	if err := c.store.CreateDoc(ctx, EmailsCollection, email, provider.Record{"uid": uid}); err != nil {
		if errors.Is(err, docstore.ErrExists) {
			return nil, provider.NewError(provider.CodeEmailAlreadyInUse, "the email address is already in use by another account")
		}
		return nil, err
	}
	doc := provider.Record{
		"uid":           uid,
		"email":         email,
		"emailVerified": emailVerified,
		"displayName":   nil,
		"createdAt":     provider.ServerTimestamp,
		"lastSignInAt":  provider.ServerTimestamp,
	}
	if displayName != nil {
		doc["displayName"] = *displayName
	}
	if passwordHash != "" {
		doc["passwordHash"] = passwordHash
	}
	if err := c.store.SetDoc(ctx, AccountsCollection, uid, doc); err != nil {
		if derr := c.store.DeleteDoc(ctx, EmailsCollection, email); derr != nil {
			c.logger.Error("release email reservation failed", zap.String("email", email), zap.Error(derr))
		}
		return nil, err
	}
	return c.accountByID(ctx, uid)
}

// touch records a sign-in and returns the fresh account.
func (c *Client) touch(ctx context.Context, uid string, extra provider.Record) (*account, error) {
	data := provider.Record{"lastSignInAt": provider.ServerTimestamp}
	for k, v := range extra {
		data[k] = v
	}
	if err := c.store.UpdateDoc(ctx, AccountsCollection, uid, data); err != nil {
		return nil, err
	}
	return c.accountByID(ctx, uid)
}

package repository

import (
	"context"
	"fmt"

	"academia-identity/backend/internal/identity/mapper"
	"academia-identity/backend/internal/identity/provider"
	"academia-identity/backend/internal/policy/domain"
)

// DefaultCollection holds one policy document per academia, keyed by academia id.
const DefaultCollection = "academia_policies"

// DocStoreRepository implements Repository over a document store.
type DocStoreRepository struct {
	docs       provider.DocumentStore
	collection string
}

// NewDocStoreRepository returns a Repository over docs. An empty collection selects DefaultCollection.
func NewDocStoreRepository(docs provider.DocumentStore, collection string) *DocStoreRepository {
	if collection == "" {
		collection = DefaultCollection
	}
	return &DocStoreRepository{docs: docs, collection: collection}
}

func (r *DocStoreRepository) GetByAcademia(ctx context.Context, academiaID string) (*domain.Policy, error) {
	doc, err := r.docs.GetDoc(ctx, r.collection, academiaID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	rules, ok := doc["rules"].(string)
	if !ok {
		return nil, fmt.Errorf("policy %s: rules is not a string", academiaID)
	}
	enabled, _ := doc["enabled"].(bool)
	p := &domain.Policy{AcademiaID: academiaID, Rules: rules, Enabled: enabled}
	if t, ok := mapper.ToTime(doc["updatedAt"]); ok {
		p.UpdatedAt = t
	}
	return p, nil
}

func (r *DocStoreRepository) Save(ctx context.Context, p *domain.Policy) error {
	return r.docs.SetDoc(ctx, r.collection, p.AcademiaID, provider.Record{
		"rules":     p.Rules,
		"enabled":   p.Enabled,
		"updatedAt": provider.ServerTimestamp,
	})
}

package repository

import (
	"context"

	"academia-identity/backend/internal/audit/domain"
	"academia-identity/backend/internal/identity/mapper"
	"academia-identity/backend/internal/identity/provider"
)

// DefaultCollection holds one document per audit entry, keyed by entry id.
const DefaultCollection = "audit_logs"

// DocStoreRepository keeps audit logs in a document store.
type DocStoreRepository struct {
	docs       provider.DocumentStore
	collection string
}

// NewDocStoreRepository returns an audit log repository over docs. An empty collection selects DefaultCollection.
func NewDocStoreRepository(docs provider.DocumentStore, collection string) *DocStoreRepository {
	if collection == "" {
		collection = DefaultCollection
	}
	return &DocStoreRepository{docs: docs, collection: collection}
}

// GetByID returns the audit log for id, or nil if not found.
func (r *DocStoreRepository) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	doc, err := r.docs.GetDoc(ctx, r.collection, id)
	if err != nil || doc == nil {
		return nil, err
	}
	a := &domain.AuditLog{ID: id}
	a.AcademiaID, _ = doc["academiaId"].(string)
	a.UserID, _ = doc["userId"].(string)
	a.Action, _ = doc["action"].(string)
	if meta, ok := doc["metadata"].(map[string]any); ok {
		a.Metadata = make(map[string]string, len(meta))
		for k, v := range meta {
			if s, ok := v.(string); ok {
				a.Metadata[k] = s
			}
		}
	}
	if t, ok := mapper.ToTime(doc["createdAt"]); ok {
		a.CreatedAt = t
	}
	return a, nil
}

// Create writes the entry; CreatedAt comes from the store clock.
func (r *DocStoreRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	meta := make(map[string]any, len(a.Metadata))
	for k, v := range a.Metadata {
		meta[k] = v
	}
	return r.docs.SetDoc(ctx, r.collection, a.ID, provider.Record{
		"academiaId": a.AcademiaID,
		"userId":     a.UserID,
		"action":     a.Action,
		"metadata":   meta,
		"createdAt":  provider.ServerTimestamp,
	})
}

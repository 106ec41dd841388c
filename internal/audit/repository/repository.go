package repository

import (
	"context"

	"academia-identity/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	// GetByID returns the entry, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.AuditLog, error)
	Create(ctx context.Context, a *domain.AuditLog) error
}

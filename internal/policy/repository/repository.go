package repository

import (
	"context"

	"academia-identity/backend/internal/policy/domain"
)

// Repository defines persistence for academia policies.
type Repository interface {
	// GetByAcademia returns the policy of academiaID, or nil when it has none.
	GetByAcademia(ctx context.Context, academiaID string) (*domain.Policy, error)
	Save(ctx context.Context, p *domain.Policy) error
}

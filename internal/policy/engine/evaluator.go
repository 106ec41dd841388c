package engine

import "context"

// Evaluator computes the permissions granted by a role.
type Evaluator interface {
	// Permissions returns the sorted permission list of role within academiaID (nil for none).
	// Unknown roles get no permissions.
	Permissions(ctx context.Context, role string, academiaID *string) ([]string, error)
}

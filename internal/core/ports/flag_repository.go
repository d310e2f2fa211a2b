package ports

import (
	"context"

	"github.com/progressly/featuregate/internal/core/domain"
)

// FlagRepository defines persistence operations for feature flags.
type FlagRepository interface {
	Create(ctx context.Context, f *domain.Flag) error
	Update(ctx context.Context, f *domain.Flag) error
	// GetByKey retrieves a flag by its unique key.
	GetByKey(ctx context.Context, key string) (*domain.Flag, error)
	List(ctx context.Context) ([]*domain.Flag, error)
}

// RuleRepository defines persistence operations for access rules.
// List order is insertion order; evaluation relies on it for the
// first-match-wins behavior when duplicate rules exist.
type RuleRepository interface {
	Create(ctx context.Context, r *domain.AccessRule) error
	Update(ctx context.Context, r *domain.AccessRule) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.AccessRule, error)
	// ListByFeature returns every rule for the feature key, in insertion order.
	ListByFeature(ctx context.Context, featureKey string) ([]*domain.AccessRule, error)
}

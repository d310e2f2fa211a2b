package ports

import (
	"context"

	"github.com/progressly/featuregate/internal/core/domain"
)

// OnboardingRepository defines persistence for per-user funnel records.
// Exactly one record exists per user; Upsert creates or replaces it.
type OnboardingRepository interface {
	GetByUser(ctx context.Context, userID string) (*domain.OnboardingProgress, error)
	Upsert(ctx context.Context, p *domain.OnboardingProgress) error
}

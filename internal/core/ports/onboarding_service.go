package ports

import (
	"context"

	"github.com/progressly/featuregate/internal/core/domain"
)

// AdvanceInput moves a user to a new stage. CustomData, when non-nil, is
// merged into the progress record's custom data.
type AdvanceInput struct {
	User       domain.User
	NewStage   domain.Stage
	CustomData map[string]any
}

// ActionInput reports a product event that may advance the funnel.
type ActionInput struct {
	User     domain.User
	Action   domain.Action
	Metadata map[string]any
}

// ProgressSummary is the read model returned by GetProgressSummary.
type ProgressSummary struct {
	CurrentStage          domain.Stage   `json:"current_stage"`
	CompletedStages       []domain.Stage `json:"completed_stages"`
	ProgressPercentage    int            `json:"progress_percentage"`
	AvailableFeatures     []string       `json:"available_features"`
	NextStage             domain.Stage   `json:"next_stage,omitempty"`
	NextStageRequirements []string       `json:"next_stage_requirements,omitempty"`
}

// OnboardingService owns funnel progression. Mutating methods report
// success as a bool; failures are logged and leave the record unchanged.
type OnboardingService interface {
	AdvanceToStage(ctx context.Context, in AdvanceInput) bool
	MarkStageCompleted(ctx context.Context, user domain.User, stage domain.Stage) bool
	HandleAction(ctx context.Context, in ActionInput) bool
	// CheckStageRequirements reports whether the user may advance to the
	// target stage, naming every unmet requirement.
	CheckStageRequirements(ctx context.Context, user domain.User, target domain.Stage) (bool, []string)
	GetProgressSummary(ctx context.Context, user domain.User) (*ProgressSummary, error)
}

package ports

import (
	"context"
	"time"

	"github.com/progressly/featuregate/internal/core/domain"
)

// EvaluateInput carries everything needed to evaluate a single flag.
type EvaluateInput struct {
	User    domain.User
	FlagKey string
	// Org is the optional tenant context; nil when the caller has none.
	Org *domain.Organization
	// ForceRefresh bypasses the cached per-user result and re-evaluates.
	ForceRefresh bool
}

// UserFlagsInput carries the parameters for a bulk evaluation.
type UserFlagsInput struct {
	User domain.User
	Org  *domain.Organization
	// FlagKeys limits the evaluation to the given keys; empty means all
	// known flags.
	FlagKeys []string
}

// CreateFlagInput carries all data needed to create a flag.
type CreateFlagInput struct {
	Key               string `validate:"required"`
	Name              string
	Description       string
	GloballyEnabled   bool
	RolloutPercentage int `validate:"min=0,max=100"`
	ActiveFrom        *time.Time
	ActiveUntil       *time.Time
	Permanent         bool
	RequiresRestart   bool
	Environments      []string
}

// UpdateFlagInput replaces the mutable fields of an existing flag.
type UpdateFlagInput struct {
	Key               string `validate:"required"`
	Name              string
	Description       string
	GloballyEnabled   bool
	RolloutPercentage int `validate:"min=0,max=100"`
	ActiveFrom        *time.Time
	ActiveUntil       *time.Time
	Permanent         bool
	RequiresRestart   bool
	Environments      []string
}

// CreateRuleInput carries all data needed to create an access rule.
type CreateRuleInput struct {
	FeatureKey string `validate:"required"`
	Target     domain.RuleTarget
	Enabled    bool
	Conditions domain.RuleConditions
	Reason     string
}

// UpdateRuleInput replaces the mutable fields of an existing rule. The
// target is immutable after creation; retarget by delete + create.
type UpdateRuleInput struct {
	ID         string `validate:"required"`
	Enabled    bool
	Conditions domain.RuleConditions
	Reason     string
}

// FlagService is the evaluation facade exposed to in-process callers.
//
// Read methods never return errors: every read-path failure degrades to the
// safe default (flag disabled, key omitted from bulk results) plus a log
// line. Write methods surface validation and store errors.
type FlagService interface {
	IsFeatureEnabled(ctx context.Context, in EvaluateInput) bool
	// GetUserFlags evaluates many flags at once; keys that cannot be
	// resolved are omitted from the result.
	GetUserFlags(ctx context.Context, in UserFlagsInput) map[string]bool
	// GetEnabledFlags returns the keys of every flag that evaluates true.
	GetEnabledFlags(ctx context.Context, user domain.User, org *domain.Organization) []string

	CreateFlag(ctx context.Context, in CreateFlagInput) (*domain.Flag, error)
	UpdateFlag(ctx context.Context, in UpdateFlagInput) (*domain.Flag, error)
	CreateAccessRule(ctx context.Context, in CreateRuleInput) (*domain.AccessRule, error)
	UpdateAccessRule(ctx context.Context, in UpdateRuleInput) (*domain.AccessRule, error)
	DeleteAccessRule(ctx context.Context, id string) error
}

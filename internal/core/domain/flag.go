package domain

import (
	"errors"
	"fmt"
	"time"
)

var ErrFlagNotFound = errors.New("flag not found")
var ErrFlagExists = errors.New("flag already exists")
var ErrRuleNotFound = errors.New("access rule not found")
var ErrProgressNotFound = errors.New("onboarding progress not found")

// Flag is a named capability toggle. The engine only ever reads flags; they
// are created and updated by the management surface, which must invalidate
// the cache for the flag key on every write.
type Flag struct {
	ID                string     `json:"id" bson:"_id,omitempty"`
	Key               string     `json:"key" bson:"key"`
	Name              string     `json:"name,omitempty" bson:"name,omitempty"`
	Description       string     `json:"description,omitempty" bson:"description,omitempty"`
	GloballyEnabled   bool       `json:"globally_enabled" bson:"globally_enabled"`
	RolloutPercentage int        `json:"rollout_percentage" bson:"rollout_percentage"`
	ActiveFrom        *time.Time `json:"active_from,omitempty" bson:"active_from,omitempty"`
	ActiveUntil       *time.Time `json:"active_until,omitempty" bson:"active_until,omitempty"`
	Permanent         bool       `json:"permanent" bson:"permanent"`
	RequiresRestart   bool       `json:"requires_restart" bson:"requires_restart"`
	Environments      []string   `json:"environments,omitempty" bson:"environments,omitempty"`
	CreatedAt         time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" bson:"updated_at"`
}

// Validate enforces the flag invariants: rollout percentage in [0,100] and,
// when both schedule ends are set, a non-empty ordered window.
func (f *Flag) Validate() error {
	if f.Key == "" {
		return fmt.Errorf("%w: key is required", ErrValidation)
	}
	if f.RolloutPercentage < 0 || f.RolloutPercentage > 100 {
		return fmt.Errorf("%w: rollout_percentage must be between 0 and 100, got %d", ErrValidation, f.RolloutPercentage)
	}
	if f.ActiveFrom != nil && f.ActiveUntil != nil && !f.ActiveFrom.Before(*f.ActiveUntil) {
		return fmt.Errorf("%w: active_from must be before active_until", ErrValidation)
	}
	return nil
}

// ActiveAt reports whether the flag's schedule window admits the given time.
// An unset end is unbounded on that side.
func (f *Flag) ActiveAt(now time.Time) bool {
	if f.ActiveFrom != nil && now.Before(*f.ActiveFrom) {
		return false
	}
	if f.ActiveUntil != nil && now.After(*f.ActiveUntil) {
		return false
	}
	return true
}

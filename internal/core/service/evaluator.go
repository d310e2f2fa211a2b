package service

import (
	"time"

	"github.com/progressly/featuregate/internal/core/domain"
)

// DecisionLayer identifies which precedence layer produced an evaluation
// result. Exposed for logging and metrics.
type DecisionLayer string

const (
	LayerSchedule   DecisionLayer = "schedule"
	LayerUserRule   DecisionLayer = "user_rule"
	LayerRoleRule   DecisionLayer = "role_rule"
	LayerOrgRule    DecisionLayer = "org_rule"
	LayerGlobal     DecisionLayer = "global"
	LayerRollout    DecisionLayer = "rollout"
	LayerOnboarding DecisionLayer = "onboarding"
	LayerDefault    DecisionLayer = "default"
)

// Evaluator applies the fixed precedence order over a flag, its access
// rules, and the user's onboarding progress. It is pure: all inputs are
// passed in, including the evaluation time.
type Evaluator struct {
	bucketer Bucketer
}

// NewEvaluator returns an Evaluator.
func NewEvaluator(b Bucketer) *Evaluator {
	return &Evaluator{bucketer: b}
}

// Evaluate walks the precedence layers in order and returns at the first
// definitive answer:
//
//  1. schedule window (outside the window denies everything below)
//  2. user-specific rule (explicit denial wins even over global enable)
//  3. role rule
//  4. organization rule (enablement only)
//  5. global switch
//  6. percentage rollout
//  7. onboarding unlock
//  8. default false
func (e *Evaluator) Evaluate(
	now time.Time,
	flag *domain.Flag,
	rules []*domain.AccessRule,
	user *domain.User,
	org *domain.Organization,
	progress *domain.OnboardingProgress,
) (bool, DecisionLayer) {
	if !flag.ActiveAt(now) {
		return false, LayerSchedule
	}

	// First match wins within each target kind; duplicate rules for the
	// same target are permitted and later ones are never consulted.
	if rule := firstMatch(rules, domain.TargetUser, user.ID); rule != nil {
		if !rule.Enabled {
			return false, LayerUserRule
		}
		if rule.Conditions.Pass(now, user) {
			return true, LayerUserRule
		}
		// Enabled rule with failing conditions falls through, it is not
		// a denial.
	}

	if user.Role != "" {
		if rule := firstMatch(rules, domain.TargetRole, user.Role); rule != nil {
			if !rule.Enabled {
				return false, LayerRoleRule
			}
			if rule.Conditions.Pass(now, user) {
				return true, LayerRoleRule
			}
		}
	}

	if org != nil {
		if rule := firstMatch(rules, domain.TargetOrganization, org.ID); rule != nil && rule.Enabled {
			return true, LayerOrgRule
		}
	}

	if flag.GloballyEnabled {
		return true, LayerGlobal
	}

	if flag.RolloutPercentage > 0 && e.bucketer.InBucket(flag.Key, user.ID, flag.RolloutPercentage) {
		return true, LayerRollout
	}

	if progress != nil && unlockedByOnboarding(progress, flag.Key) {
		return true, LayerOnboarding
	}

	return false, LayerDefault
}

// firstMatch returns the first rule targeting (kind, value), or nil.
func firstMatch(rules []*domain.AccessRule, kind domain.TargetKind, value string) *domain.AccessRule {
	for _, r := range rules {
		if r.Target.Kind == kind && r.Target.Value == value {
			return r
		}
	}
	return nil
}

// unlockedByOnboarding reports whether the user's current or any completed
// stage unlocks the flag key.
func unlockedByOnboarding(p *domain.OnboardingProgress, flagKey string) bool {
	if stageUnlocks(p.CurrentStage, flagKey) {
		return true
	}
	for _, s := range p.CompletedStages {
		if stageUnlocks(s, flagKey) {
			return true
		}
	}
	return false
}

func stageUnlocks(stage domain.Stage, flagKey string) bool {
	for _, f := range stage.UnlockedFeatures() {
		if f == flagKey {
			return true
		}
	}
	return false
}

package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/progressly/featuregate/internal/core/domain"
)

var evalNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testFlag(overrides func(*domain.Flag)) *domain.Flag {
	f := &domain.Flag{
		ID:  "flag_1",
		Key: "beta",
	}
	if overrides != nil {
		overrides(f)
	}
	return f
}

func testUser() *domain.User {
	return &domain.User{
		ID:            "user_1",
		Role:          "member",
		EmailVerified: true,
		JoinedAt:      evalNow.AddDate(0, -6, 0),
	}
}

func userRule(enabled bool) *domain.AccessRule {
	return &domain.AccessRule{
		ID:         "rule_u",
		FeatureKey: "beta",
		Target:     domain.UserTarget("user_1"),
		Enabled:    enabled,
	}
}

func roleRule(enabled bool) *domain.AccessRule {
	return &domain.AccessRule{
		ID:         "rule_r",
		FeatureKey: "beta",
		Target:     domain.RoleTarget("member"),
		Enabled:    enabled,
	}
}

// ---------------------------------------------------------------------------
// Schedule gate
// ---------------------------------------------------------------------------

func TestEvaluate_FutureActiveFromDeniesEverything(t *testing.T) {
	e := NewEvaluator(NewBucketer())
	future := evalNow.Add(time.Hour)
	flag := testFlag(func(f *domain.Flag) {
		f.GloballyEnabled = true
		f.ActiveFrom = &future
	})

	enabled, layer := e.Evaluate(evalNow, flag, []*domain.AccessRule{userRule(true)}, testUser(), nil, nil)
	if enabled {
		t.Error("flag before its active window must be disabled for every user")
	}
	if layer != LayerSchedule {
		t.Errorf("expected schedule layer, got %s", layer)
	}
}

func TestEvaluate_PastActiveUntilDeniesEverything(t *testing.T) {
	e := NewEvaluator(NewBucketer())
	past := evalNow.Add(-time.Hour)
	flag := testFlag(func(f *domain.Flag) {
		f.GloballyEnabled = true
		f.ActiveUntil = &past
	})

	enabled, layer := e.Evaluate(evalNow, flag, nil, testUser(), nil, nil)
	if enabled {
		t.Error("flag past its active window must be disabled")
	}
	if layer != LayerSchedule {
		t.Errorf("expected schedule layer, got %s", layer)
	}
}

func TestEvaluate_InsideWindowFallsThrough(t *testing.T) {
	e := NewEvaluator(NewBucketer())
	from := evalNow.Add(-time.Hour)
	until := evalNow.Add(time.Hour)
	flag := testFlag(func(f *domain.Flag) {
		f.GloballyEnabled = true
		f.ActiveFrom = &from
		f.ActiveUntil = &until
	})

	enabled, layer := e.Evaluate(evalNow, flag, nil, testUser(), nil, nil)
	if !enabled || layer != LayerGlobal {
		t.Errorf("expected global enable inside window, got %v/%s", enabled, layer)
	}
}

// ---------------------------------------------------------------------------
// Rule precedence
// ---------------------------------------------------------------------------

func TestEvaluate_UserDenialBeatsRoleGrant(t *testing.T) {
	e := NewEvaluator(NewBucketer())
	rules := []*domain.AccessRule{roleRule(true), userRule(false)}

	enabled, layer := e.Evaluate(evalNow, testFlag(nil), rules, testUser(), nil, nil)
	if enabled {
		t.Error("explicit user denial must win over role grant")
	}
	if layer != LayerUserRule {
		t.Errorf("expected user_rule layer, got %s", layer)
	}
}

func TestEvaluate_UserDenialBeatsGlobalEnable(t *testing.T) {
	e := NewEvaluator(NewBucketer())
	flag := testFlag(func(f *domain.Flag) { f.GloballyEnabled = true })

	enabled, _ := e.Evaluate(evalNow, flag, []*domain.AccessRule{userRule(false)}, testUser(), nil, nil)
	if enabled {
		t.Error("explicit user denial must win over global enable")
	}
}

func TestEvaluate_FirstMatchWinsForDuplicateRules(t *testing.T) {
	e := NewEvaluator(NewBucketer())
	// Duplicate rules for the same (feature, user) pair are permitted;
	// the first in store order decides.
	rules := []*domain.AccessRule{userRule(false), userRule(true)}

	enabled, _ := e.Evaluate(evalNow, testFlag(nil), rules, testUser(), nil, nil)
	if enabled {
		t.Error("first matching rule (deny) must win over the later duplicate")
	}

	rules = []*domain.AccessRule{userRule(true), userRule(false)}
	enabled, _ = e.Evaluate(evalNow, testFlag(nil), rules, testUser(), nil, nil)
	if !enabled {
		t.Error("first matching rule (grant) must win over the later duplicate")
	}
}

func TestEvaluate_FailedConditionsFallThroughNotDeny(t *testing.T) {
	e := NewEvaluator(NewBucketer())
	minAge := 365
	rule := userRule(true)
	rule.Conditions = domain.RuleConditions{MinAccountAgeDays: &minAge}
	flag := testFlag(func(f *domain.Flag) { f.GloballyEnabled = true })

	user := testUser() // joined 6 months ago, fails the one-year condition
	enabled, layer := e.Evaluate(evalNow, flag, []*domain.AccessRule{rule}, user, nil, nil)
	if !enabled {
		t.Error("failed conditions on an enabling rule must fall through, not deny")
	}
	if layer != LayerGlobal {
		t.Errorf("expected fall-through to global layer, got %s", layer)
	}
}

func TestEvaluate_ConditionsPassGrants(t *testing.T) {
	e := NewEvaluator(NewBucketer())
	minAge := 30
	verified := true
	rule := userRule(true)
	rule.Conditions = domain.RuleConditions{MinAccountAgeDays: &minAge, RequiresEmailVerified: &verified}

	enabled, layer := e.Evaluate(evalNow, testFlag(nil), []*domain.AccessRule{rule}, testUser(), nil, nil)
	if !enabled || layer != LayerUserRule {
		t.Errorf("expected user rule grant with passing conditions, got %v/%s", enabled, layer)
	}
}

func TestEvaluate_RoleRuleConsultedWithoutUserRule(t *testing.T) {
	e := NewEvaluator(NewBucketer())
	enabled, layer := e.Evaluate(evalNow, testFlag(nil), []*domain.AccessRule{roleRule(true)}, testUser(), nil, nil)
	if !enabled || layer != LayerRoleRule {
		t.Errorf("expected role rule grant, got %v/%s", enabled, layer)
	}
}

func TestEvaluate_RoleDenialStops(t *testing.T) {
	e := NewEvaluator(NewBucketer())
	flag := testFlag(func(f *domain.Flag) { f.GloballyEnabled = true })
	enabled, layer := e.Evaluate(evalNow, flag, []*domain.AccessRule{roleRule(false)}, testUser(), nil, nil)
	if enabled {
		t.Error("role denial must stop evaluation")
	}
	if layer != LayerRoleRule {
		t.Errorf("expected role_rule layer, got %s", layer)
	}
}

func TestEvaluate_OrgRuleGrants(t *testing.T) {
	e := NewEvaluator(NewBucketer())
	org := &domain.Organization{ID: "org_1"}
	rule := &domain.AccessRule{
		FeatureKey: "beta",
		Target:     domain.OrgTarget("org_1"),
		Enabled:    true,
	}
	enabled, layer := e.Evaluate(evalNow, testFlag(nil), []*domain.AccessRule{rule}, testUser(), org, nil)
	if !enabled || layer != LayerOrgRule {
		t.Errorf("expected org rule grant, got %v/%s", enabled, layer)
	}
}

func TestEvaluate_OrgDenialIsNotAHardStop(t *testing.T) {
	e := NewEvaluator(NewBucketer())
	org := &domain.Organization{ID: "org_1"}
	rule := &domain.AccessRule{
		FeatureKey: "beta",
		Target:     domain.OrgTarget("org_1"),
		Enabled:    false,
	}
	flag := testFlag(func(f *domain.Flag) { f.GloballyEnabled = true })

	// Only enablement is consulted at the org layer; a disabled org rule
	// falls through to the global switch.
	enabled, layer := e.Evaluate(evalNow, flag, []*domain.AccessRule{rule}, testUser(), org, nil)
	if !enabled || layer != LayerGlobal {
		t.Errorf("disabled org rule must fall through, got %v/%s", enabled, layer)
	}
}

// ---------------------------------------------------------------------------
// Rollout and onboarding layers
// ---------------------------------------------------------------------------

func TestEvaluate_FullRolloutEnablesEveryone(t *testing.T) {
	e := NewEvaluator(NewBucketer())
	flag := testFlag(func(f *domain.Flag) { f.RolloutPercentage = 100 })

	for i := 0; i < 50; i++ {
		user := testUser()
		user.ID = fmt.Sprintf("user_%d", i)
		enabled, layer := e.Evaluate(evalNow, flag, nil, user, nil, nil)
		if !enabled || layer != LayerRollout {
			t.Fatalf("100%% rollout must enable every user, got %v/%s for %s", enabled, layer, user.ID)
		}
	}
}

func TestEvaluate_EverythingOffIsDisabled(t *testing.T) {
	e := NewEvaluator(NewBucketer())
	enabled, layer := e.Evaluate(evalNow, testFlag(nil), nil, testUser(), nil, nil)
	if enabled {
		t.Error("flag with no rules, no global enable, no rollout must be disabled")
	}
	if layer != LayerDefault {
		t.Errorf("expected default layer, got %s", layer)
	}
}

func TestEvaluate_OnboardingUnlockFromCurrentStage(t *testing.T) {
	e := NewEvaluator(NewBucketer())
	flag := testFlag(func(f *domain.Flag) { f.Key = "team_workspace" })
	progress := domain.NewProgress("user_1", evalNow)
	progress.CurrentStage = domain.StageOrganizationCreated

	enabled, layer := e.Evaluate(evalNow, flag, nil, testUser(), nil, progress)
	if !enabled || layer != LayerOnboarding {
		t.Errorf("expected onboarding unlock, got %v/%s", enabled, layer)
	}
}

func TestEvaluate_OnboardingUnlockFromCompletedStage(t *testing.T) {
	e := NewEvaluator(NewBucketer())
	flag := testFlag(func(f *domain.Flag) { f.Key = "email_notifications" })
	progress := domain.NewProgress("user_1", evalNow)
	progress.CurrentStage = domain.StageProfileSetup
	progress.CompletedStages = []domain.Stage{domain.StageSignupComplete, domain.StageEmailVerified}

	enabled, _ := e.Evaluate(evalNow, flag, nil, testUser(), nil, progress)
	if !enabled {
		t.Error("completed stages must keep their unlocks")
	}
}

func TestEvaluate_NoOnboardingUnlockForUnmappedKey(t *testing.T) {
	e := NewEvaluator(NewBucketer())
	progress := domain.NewProgress("user_1", evalNow)

	enabled, _ := e.Evaluate(evalNow, testFlag(nil), nil, testUser(), nil, progress)
	if enabled {
		t.Error("stage feature maps must not unlock unrelated keys")
	}
}

package service

import (
	"fmt"
	"math"
	"time"

	"github.com/progressly/featuregate/internal/core/domain"
)

// StageMachine holds the pure funnel-progression rules. All methods mutate
// the passed record in place; persistence and cache invalidation are the
// caller's concern.
type StageMachine struct{}

// NewStageMachine returns a StageMachine.
func NewStageMachine() StageMachine { return StageMachine{} }

// AdvanceToStage moves the record to newStage: the old current stage is
// appended to the completed set (once), the stage timer restarts, the action
// counter and progress percentage update, and reaching the terminal stage
// stamps the completion time.
//
// No adjacency check is performed: arbitrary forward and backward jumps are
// structurally permitted. HandleAction is the guarded entry point; this is
// the raw primitive beneath it.
func (m StageMachine) AdvanceToStage(p *domain.OnboardingProgress, newStage domain.Stage, now time.Time) error {
	if !newStage.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownStage, newStage)
	}

	if !p.HasCompleted(p.CurrentStage) {
		p.CompletedStages = append(p.CompletedStages, p.CurrentStage)
	}
	p.CurrentStage = newStage
	p.StageStartedAt = &now
	p.LastActivityAt = &now
	p.TotalActionsCompleted++
	p.ProgressPercentage = m.ProgressPercentage(p)

	if newStage == domain.StageOnboardingComplete && p.OnboardingCompletedAt == nil {
		p.OnboardingCompletedAt = &now
	}
	return nil
}

// MarkStageCompleted adds the stage to the completed set. Idempotent: a
// stage appears at most once and the current stage is untouched.
func (m StageMachine) MarkStageCompleted(p *domain.OnboardingProgress, stage domain.Stage, now time.Time) error {
	if !stage.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownStage, stage)
	}
	if !p.HasCompleted(stage) {
		p.CompletedStages = append(p.CompletedStages, stage)
		p.ProgressPercentage = m.ProgressPercentage(p)
	}
	p.LastActivityAt = &now
	return nil
}

// ProgressPercentage derives the funnel completion percentage: completed
// stages count fully, the current stage counts half once the user has moved
// past signup.
func (m StageMachine) ProgressPercentage(p *domain.OnboardingProgress) int {
	partial := 0.0
	if p.CurrentStage != domain.StageSignupComplete {
		partial = 0.5
	}
	pct := math.Round(100 * (float64(len(p.CompletedStages)) + partial) / float64(domain.TotalStages))
	if pct > 100 {
		pct = 100
	}
	return int(pct)
}

// ApplyAction dispatches a product action against the record:
//
//   - target ahead by one: normal advancement
//   - target further ahead: every intervening stage is marked completed,
//     then the record advances to the target (stage skipping)
//   - target at or behind the current stage: no regression, only the
//     metadata is merged
//
// Metadata, when non-nil, is always merged into the record's custom data.
func (m StageMachine) ApplyAction(p *domain.OnboardingProgress, action domain.Action, metadata map[string]any, now time.Time) error {
	target, ok := action.TargetStage()
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownAction, action)
	}

	mergeCustomData(p, metadata)

	cur := p.CurrentStage.Index()
	tgt := target.Index()
	if tgt <= cur {
		p.LastActivityAt = &now
		return nil
	}

	for _, stage := range domain.Stages()[cur+1 : tgt] {
		if err := m.MarkStageCompleted(p, stage, now); err != nil {
			return err
		}
	}
	return m.AdvanceToStage(p, target, now)
}

func mergeCustomData(p *domain.OnboardingProgress, metadata map[string]any) {
	if len(metadata) == 0 {
		return
	}
	if p.CustomData == nil {
		p.CustomData = make(map[string]any, len(metadata))
	}
	for k, v := range metadata {
		p.CustomData[k] = v
	}
}

// requirement is a named predicate a user must satisfy to enter a stage.
type requirement struct {
	name string
	met  func(user *domain.User, p *domain.OnboardingProgress) bool
}

// stageRequirements lists what must hold before advancing to each stage.
// Stages absent from the table have no requirements.
var stageRequirements = map[domain.Stage][]requirement{
	domain.StageEmailVerified: {
		{"email_verified", func(u *domain.User, _ *domain.OnboardingProgress) bool { return u.EmailVerified }},
	},
	domain.StageProfileSetup: {
		{"first_name", func(u *domain.User, _ *domain.OnboardingProgress) bool { return u.FirstName != "" }},
		{"last_name", func(u *domain.User, _ *domain.OnboardingProgress) bool { return u.LastName != "" }},
	},
	domain.StageOrganizationCreated: {
		{"has_organization", func(u *domain.User, _ *domain.OnboardingProgress) bool { return u.OrganizationID != "" }},
	},
	domain.StageFirstTeamMember: {
		{"organization_has_members", func(u *domain.User, p *domain.OnboardingProgress) bool {
			return customFlag(p, "has_team_member") || p.HasCompleted(domain.StageFirstTeamMember)
		}},
	},
	domain.StageFirstProject: {
		{"has_created_project", func(u *domain.User, p *domain.OnboardingProgress) bool {
			return customFlag(p, "has_created_project") || p.HasCompleted(domain.StageFirstProject)
		}},
	},
	domain.StageAdvancedFeatures: {
		{"has_used_advanced_feature", func(u *domain.User, p *domain.OnboardingProgress) bool {
			return customFlag(p, "has_used_advanced_feature") || p.HasCompleted(domain.StageAdvancedFeatures)
		}},
	},
}

// customFlag reads a boolean marker from the record's custom data.
func customFlag(p *domain.OnboardingProgress, key string) bool {
	v, ok := p.CustomData[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// CheckRequirements reports whether the user may advance to the target
// stage, returning the names of every unmet requirement.
func (m StageMachine) CheckRequirements(user *domain.User, p *domain.OnboardingProgress, target domain.Stage) (bool, []string, error) {
	if !target.Valid() {
		return false, nil, fmt.Errorf("%w: %q", domain.ErrUnknownStage, target)
	}
	var missing []string
	for _, req := range stageRequirements[target] {
		if !req.met(user, p) {
			missing = append(missing, req.name)
		}
	}
	return len(missing) == 0, missing, nil
}

// AvailableFeatures returns the deduplicated union of feature keys unlocked
// by the current stage and every completed stage, in funnel order.
func (m StageMachine) AvailableFeatures(p *domain.OnboardingProgress) []string {
	seen := make(map[string]struct{})
	var features []string
	for _, stage := range domain.Stages() {
		if stage != p.CurrentStage && !p.HasCompleted(stage) {
			continue
		}
		for _, f := range stage.UnlockedFeatures() {
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			features = append(features, f)
		}
	}
	return features
}

package domain

import (
	"errors"
	"time"
)

var ErrUnknownStage = errors.New("unknown onboarding stage")
var ErrUnknownAction = errors.New("unknown onboarding action")

// Stage is one step in the fixed, ordered onboarding funnel.
type Stage string

const (
	StageSignupComplete      Stage = "signup_complete"
	StageEmailVerified       Stage = "email_verified"
	StageProfileSetup        Stage = "profile_setup"
	StageOrganizationCreated Stage = "organization_created"
	StageFirstTeamMember     Stage = "first_team_member"
	StageFirstProject        Stage = "first_project"
	StageAdvancedFeatures    Stage = "advanced_features"
	StageOnboardingComplete  Stage = "onboarding_complete"
)

// stageOrder is the canonical funnel order, terminal stage last.
var stageOrder = []Stage{
	StageSignupComplete,
	StageEmailVerified,
	StageProfileSetup,
	StageOrganizationCreated,
	StageFirstTeamMember,
	StageFirstProject,
	StageAdvancedFeatures,
	StageOnboardingComplete,
}

// Stages returns the funnel in order. The returned slice must not be mutated.
func Stages() []Stage { return stageOrder }

// TotalStages is the funnel length, used by the progress-percentage formula.
const TotalStages = 8

// Index returns the position of the stage in the funnel, or -1 if unknown.
func (s Stage) Index() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool { return s.Index() >= 0 }

// Next returns the stage after s, or "" when s is terminal or unknown.
func (s Stage) Next() Stage {
	i := s.Index()
	if i < 0 || i == len(stageOrder)-1 {
		return ""
	}
	return stageOrder[i+1]
}

// FeatureAll is the sentinel feature key unlocked by the terminal stage.
const FeatureAll = "all_features"

// stageFeatures maps each stage to the feature keys it unlocks.
var stageFeatures = map[Stage][]string{
	StageSignupComplete:      {"basic_dashboard"},
	StageEmailVerified:       {"email_notifications"},
	StageProfileSetup:        {"profile_badges"},
	StageOrganizationCreated: {"team_workspace"},
	StageFirstTeamMember:     {"collaboration"},
	StageFirstProject:        {"project_templates", "integrations"},
	StageAdvancedFeatures:    {"api_access", "advanced_analytics"},
	StageOnboardingComplete:  {FeatureAll},
}

// UnlockedFeatures returns the feature keys unlocked by reaching s.
func (s Stage) UnlockedFeatures() []string { return stageFeatures[s] }

// Action is a named product event that can move a user through the funnel.
// The set is closed: unmapped action strings are rejected at the boundary
// rather than silently dispatched.
type Action string

const (
	ActionEmailVerified       Action = "email_verified"
	ActionProfileCompleted    Action = "profile_completed"
	ActionOrganizationCreated Action = "organization_created"
	ActionTeamMemberInvited   Action = "team_member_invited"
	ActionProjectCreated      Action = "project_created"
	ActionAdvancedFeatureUsed Action = "advanced_feature_used"
	ActionOnboardingFinished  Action = "onboarding_finished"
)

// TargetStage maps an action to the stage it drives the user toward.
// ok is false for actions outside the closed set.
func (a Action) TargetStage() (Stage, bool) {
	switch a {
	case ActionEmailVerified:
		return StageEmailVerified, true
	case ActionProfileCompleted:
		return StageProfileSetup, true
	case ActionOrganizationCreated:
		return StageOrganizationCreated, true
	case ActionTeamMemberInvited:
		return StageFirstTeamMember, true
	case ActionProjectCreated:
		return StageFirstProject, true
	case ActionAdvancedFeatureUsed:
		return StageAdvancedFeatures, true
	case ActionOnboardingFinished:
		return StageOnboardingComplete, true
	default:
		return "", false
	}
}

// OnboardingProgress is the single per-user funnel record. It is created
// lazily on first access and never hard-deleted by the engine.
type OnboardingProgress struct {
	ID                    string         `json:"id" bson:"_id,omitempty"`
	UserID                string         `json:"user_id" bson:"user_id"`
	CurrentStage          Stage          `json:"current_stage" bson:"current_stage"`
	CompletedStages       []Stage        `json:"completed_stages" bson:"completed_stages"`
	TotalActionsCompleted int            `json:"total_actions_completed" bson:"total_actions_completed"`
	ProgressPercentage    int            `json:"progress_percentage" bson:"progress_percentage"`
	CustomData            map[string]any `json:"custom_data,omitempty" bson:"custom_data,omitempty"`
	StageStartedAt        *time.Time     `json:"stage_started_at,omitempty" bson:"stage_started_at,omitempty"`
	LastActivityAt        *time.Time     `json:"last_activity_at,omitempty" bson:"last_activity_at,omitempty"`
	OnboardingCompletedAt *time.Time     `json:"onboarding_completed_at,omitempty" bson:"onboarding_completed_at,omitempty"`
}

// NewProgress returns the lazily-created initial record for a user.
func NewProgress(userID string, now time.Time) *OnboardingProgress {
	started := now
	return &OnboardingProgress{
		UserID:         userID,
		CurrentStage:   StageSignupComplete,
		StageStartedAt: &started,
		LastActivityAt: &started,
		CustomData:     map[string]any{},
	}
}

// HasCompleted reports whether the stage is in the completed set.
func (p *OnboardingProgress) HasCompleted(stage Stage) bool {
	for _, s := range p.CompletedStages {
		if s == stage {
			return true
		}
	}
	return false
}

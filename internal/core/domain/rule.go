package domain

import (
	"errors"
	"fmt"
	"time"
)

var ErrValidation = errors.New("validation failed")
var ErrInvalidTarget = errors.New("rule must target exactly one of user, role, organization")

// TargetKind discriminates who an access rule applies to.
type TargetKind string

const (
	TargetUser         TargetKind = "user"
	TargetRole         TargetKind = "role"
	TargetOrganization TargetKind = "organization"
)

// RuleTarget identifies the single subject of an access rule. Construct via
// UserTarget, RoleTarget or OrgTarget; a zero RuleTarget is invalid.
type RuleTarget struct {
	Kind  TargetKind `json:"kind" bson:"kind"`
	Value string     `json:"value" bson:"value"`
}

func UserTarget(userID string) RuleTarget {
	return RuleTarget{Kind: TargetUser, Value: userID}
}

func RoleTarget(role string) RuleTarget {
	return RuleTarget{Kind: TargetRole, Value: role}
}

func OrgTarget(orgID string) RuleTarget {
	return RuleTarget{Kind: TargetOrganization, Value: orgID}
}

// Validate enforces target cardinality: exactly one kind, with a non-empty value.
func (t RuleTarget) Validate() error {
	switch t.Kind {
	case TargetUser, TargetRole, TargetOrganization:
		if t.Value == "" {
			return fmt.Errorf("%w: empty %s value", ErrInvalidTarget, t.Kind)
		}
		return nil
	default:
		return ErrInvalidTarget
	}
}

// RuleConditions are additional predicates that must all hold for an
// enabling rule to grant access. An empty set always passes. Extra carries
// management-surface metadata the engine ignores.
type RuleConditions struct {
	MinAccountAgeDays     *int           `json:"min_account_age_days,omitempty" bson:"min_account_age_days,omitempty"`
	RequiresEmailVerified *bool          `json:"requires_email_verified,omitempty" bson:"requires_email_verified,omitempty"`
	Extra                 map[string]any `json:"extra,omitempty" bson:"extra,omitempty"`
}

// Pass evaluates the conjunction of all set conditions against the user.
func (c RuleConditions) Pass(now time.Time, user *User) bool {
	if c.MinAccountAgeDays != nil {
		age := int(now.Sub(user.JoinedAt).Hours() / 24)
		if age < *c.MinAccountAgeDays {
			return false
		}
	}
	if c.RequiresEmailVerified != nil && user.EmailVerified != *c.RequiresEmailVerified {
		return false
	}
	return true
}

// AccessRule overrides a flag's default evaluation for a single target.
// Enabled=true grants (subject to conditions); enabled=false explicitly
// denies. Multiple rules may exist for the same (feature, target) pair;
// evaluation takes the first match in store order.
type AccessRule struct {
	ID         string         `json:"id" bson:"_id,omitempty"`
	FeatureKey string         `json:"feature_key" bson:"feature_key"`
	Target     RuleTarget     `json:"target" bson:"target"`
	Enabled    bool           `json:"enabled" bson:"enabled"`
	Conditions RuleConditions `json:"conditions" bson:"conditions"`
	Reason     string         `json:"reason,omitempty" bson:"reason,omitempty"`
	CreatedAt  time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" bson:"updated_at"`
}

// Validate enforces the write-time rule invariants.
func (r *AccessRule) Validate() error {
	if r.FeatureKey == "" {
		return fmt.Errorf("%w: feature_key is required", ErrValidation)
	}
	return r.Target.Validate()
}

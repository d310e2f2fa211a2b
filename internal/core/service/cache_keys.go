package service

import (
	"fmt"
	"time"
)

// Namespace partitions the cache so each entity class carries its own TTL.
// Short TTLs on the per-user namespaces mean a forgotten invalidation
// self-heals quickly; flag metadata and rules change rarely and live longer.
type Namespace string

const (
	NamespaceUserFlags  Namespace = "userflags"
	NamespaceFlagMeta   Namespace = "flagmeta"
	NamespaceRules      Namespace = "rules"
	NamespaceOnboarding Namespace = "onboarding"
	// NamespaceRollout is reserved for bucket-assignment caching. The
	// bucketer is deterministic and cheap in-process, so the baseline
	// evaluation path never writes to it.
	NamespaceRollout Namespace = "rollout"
)

// CacheTTLs holds the per-namespace expiry durations.
type CacheTTLs struct {
	UserFlags  time.Duration
	FlagMeta   time.Duration
	Rules      time.Duration
	Onboarding time.Duration
	Rollout    time.Duration
}

// DefaultCacheTTLs returns the baseline TTLs.
func DefaultCacheTTLs() CacheTTLs {
	return CacheTTLs{
		UserFlags:  5 * time.Minute,
		FlagMeta:   30 * time.Minute,
		Rules:      30 * time.Minute,
		Onboarding: 10 * time.Minute,
		Rollout:    10 * time.Minute,
	}
}

// For returns the TTL for a namespace.
func (t CacheTTLs) For(ns Namespace) time.Duration {
	switch ns {
	case NamespaceUserFlags:
		return t.UserFlags
	case NamespaceFlagMeta:
		return t.FlagMeta
	case NamespaceRules:
		return t.Rules
	case NamespaceOnboarding:
		return t.Onboarding
	case NamespaceRollout:
		return t.Rollout
	default:
		return time.Minute
	}
}

// Key format: {namespace}:{entityType}:{id}

// userFlagsKey addresses the user's whole flag map. Organization scope lives
// inside the map entries (see userFlagEntry), not in the key, so one delete
// clears every scope the user was evaluated under.
func userFlagsKey(userID string) string {
	return fmt.Sprintf("%s:user:%s", NamespaceUserFlags, userID)
}

// userFlagEntry names one evaluation result inside the user's flag map.
// Evaluations carrying an organization are scoped to it so the same flag can
// resolve differently per organization; orgless entries use the bare key.
func userFlagEntry(orgID, flagKey string) string {
	if orgID != "" {
		return orgID + "|" + flagKey
	}
	return flagKey
}

func flagMetaKey(flagKey string) string {
	return fmt.Sprintf("%s:flag:%s", NamespaceFlagMeta, flagKey)
}

func rulesKey(featureKey string) string {
	return fmt.Sprintf("%s:feature:%s", NamespaceRules, featureKey)
}

func onboardingKey(userID string) string {
	return fmt.Sprintf("%s:user:%s", NamespaceOnboarding, userID)
}

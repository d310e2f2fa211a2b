package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/progressly/featuregate/internal/core/domain"
	"github.com/progressly/featuregate/internal/core/ports"
	"github.com/progressly/featuregate/internal/metrics"
)

// FlagService is the evaluation facade: cache in front, repositories behind,
// the Evaluator in the middle. It owns write-path validation and the
// targeted cache invalidation every write must perform.
type FlagService struct {
	flags      ports.FlagRepository
	rules      ports.RuleRepository
	onboarding ports.OnboardingRepository
	cache      cacheClient
	eval       *Evaluator
	validate   *inputValidator
	now        func() time.Time
	log        zerolog.Logger
}

var _ ports.FlagService = (*FlagService)(nil)

// NewFlagService wires the facade. The cache store is injected so tests can
// substitute an in-memory fake.
func NewFlagService(
	flags ports.FlagRepository,
	rules ports.RuleRepository,
	onboarding ports.OnboardingRepository,
	cache ports.CacheStore,
	ttls CacheTTLs,
	log zerolog.Logger,
) *FlagService {
	return &FlagService{
		flags:      flags,
		rules:      rules,
		onboarding: onboarding,
		cache:      cacheClient{store: cache, ttls: ttls, log: log},
		eval:       NewEvaluator(NewBucketer()),
		validate:   newInputValidator(),
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
}

// ---------------------------------------------------------------------------
// Read path
// ---------------------------------------------------------------------------

// IsFeatureEnabled evaluates a single flag for the user. All read-path
// failures degrade to false; callers cannot distinguish "disabled" from
// "evaluation failed", which keeps flag checks from ever becoming a point
// of failure.
func (s *FlagService) IsFeatureEnabled(ctx context.Context, in ports.EvaluateInput) bool {
	cacheKey := userFlagsKey(in.User.ID)
	entry := userFlagEntry(orgIDOf(in.Org), in.FlagKey)

	if !in.ForceRefresh {
		var cached map[string]bool
		if s.cache.get(ctx, NamespaceUserFlags, cacheKey, &cached) {
			if enabled, present := cached[entry]; present {
				return enabled
			}
		}
	}

	start := time.Now()
	enabled, layer, err := s.evaluateFlag(ctx, &in.User, in.FlagKey, in.Org)
	if err != nil {
		s.logEvaluationFailure(err, in.FlagKey, in.User.ID)
		return false
	}
	metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	metrics.EvaluationsTotal.WithLabelValues(string(layer), resultLabel(enabled)).Inc()

	s.storeUserFlag(ctx, cacheKey, entry, enabled)

	s.log.Debug().
		Str("flag_key", in.FlagKey).
		Str("user_id", in.User.ID).
		Str("layer", string(layer)).
		Bool("enabled", enabled).
		Msg("flag evaluated")

	return enabled
}

// GetUserFlags evaluates many flags at once. Keys that cannot be resolved
// (unknown flag, store failure) are omitted from the result rather than
// reported as errors.
func (s *FlagService) GetUserFlags(ctx context.Context, in ports.UserFlagsInput) map[string]bool {
	keys := in.FlagKeys
	if len(keys) == 0 {
		all, err := s.flags.List(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("flag listing failed, returning empty flag map")
			return map[string]bool{}
		}
		keys = make([]string, 0, len(all))
		for _, f := range all {
			keys = append(keys, f.Key)
		}
	}

	cacheKey := userFlagsKey(in.User.ID)
	orgID := orgIDOf(in.Org)
	var cached map[string]bool
	s.cache.get(ctx, NamespaceUserFlags, cacheKey, &cached)

	result := make(map[string]bool, len(keys))
	dirty := false
	for _, key := range keys {
		entry := userFlagEntry(orgID, key)
		if enabled, ok := cached[entry]; ok {
			result[key] = enabled
			continue
		}
		enabled, layer, err := s.evaluateFlag(ctx, &in.User, key, in.Org)
		if err != nil {
			s.logEvaluationFailure(err, key, in.User.ID)
			continue
		}
		metrics.EvaluationsTotal.WithLabelValues(string(layer), resultLabel(enabled)).Inc()
		result[key] = enabled
		if cached == nil {
			cached = make(map[string]bool)
		}
		cached[entry] = enabled
		dirty = true
	}
	if dirty {
		s.cache.set(ctx, NamespaceUserFlags, cacheKey, cached)
	}
	return result
}

// GetEnabledFlags returns the sorted keys of every flag evaluating true.
func (s *FlagService) GetEnabledFlags(ctx context.Context, user domain.User, org *domain.Organization) []string {
	all := s.GetUserFlags(ctx, ports.UserFlagsInput{User: user, Org: org})
	enabled := make([]string, 0, len(all))
	for key, on := range all {
		if on {
			enabled = append(enabled, key)
		}
	}
	sort.Strings(enabled)
	return enabled
}

// evaluateFlag loads the flag, its rules, and the user's onboarding progress
// (cache first, store on miss) and runs the precedence algorithm.
func (s *FlagService) evaluateFlag(ctx context.Context, user *domain.User, flagKey string, org *domain.Organization) (bool, DecisionLayer, error) {
	flag, err := s.loadFlag(ctx, flagKey)
	if err != nil {
		return false, "", err
	}
	rules, err := s.loadRules(ctx, flagKey)
	if err != nil {
		return false, "", err
	}
	progress, err := s.loadProgress(ctx, user.ID)
	if err != nil {
		return false, "", err
	}
	enabled, layer := s.eval.Evaluate(s.now(), flag, rules, user, org, progress)
	return enabled, layer, nil
}

func (s *FlagService) loadFlag(ctx context.Context, key string) (*domain.Flag, error) {
	cacheKey := flagMetaKey(key)
	var cached domain.Flag
	if s.cache.get(ctx, NamespaceFlagMeta, cacheKey, &cached) {
		return &cached, nil
	}
	flag, err := s.flags.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	s.cache.set(ctx, NamespaceFlagMeta, cacheKey, flag)
	return flag, nil
}

func (s *FlagService) loadRules(ctx context.Context, featureKey string) ([]*domain.AccessRule, error) {
	cacheKey := rulesKey(featureKey)
	var cached []*domain.AccessRule
	if s.cache.get(ctx, NamespaceRules, cacheKey, &cached) {
		return cached, nil
	}
	rules, err := s.rules.ListByFeature(ctx, featureKey)
	if err != nil {
		return nil, err
	}
	s.cache.set(ctx, NamespaceRules, cacheKey, rules)
	return rules, nil
}

// loadProgress returns the user's funnel record. A user with no persisted
// record gets a fresh in-memory one at the initial stage; the read path
// never writes to the store.
func (s *FlagService) loadProgress(ctx context.Context, userID string) (*domain.OnboardingProgress, error) {
	cacheKey := onboardingKey(userID)
	var cached domain.OnboardingProgress
	if s.cache.get(ctx, NamespaceOnboarding, cacheKey, &cached) {
		return &cached, nil
	}
	progress, err := s.onboarding.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrProgressNotFound) {
			return domain.NewProgress(userID, s.now()), nil
		}
		return nil, err
	}
	s.cache.set(ctx, NamespaceOnboarding, cacheKey, progress)
	return progress, nil
}

// storeUserFlag merges one evaluation result into the user's cached flag map.
func (s *FlagService) storeUserFlag(ctx context.Context, cacheKey, entry string, enabled bool) {
	var cached map[string]bool
	s.cache.get(ctx, NamespaceUserFlags, cacheKey, &cached)
	if cached == nil {
		cached = make(map[string]bool, 1)
	}
	cached[entry] = enabled
	s.cache.set(ctx, NamespaceUserFlags, cacheKey, cached)
}

func (s *FlagService) logEvaluationFailure(err error, flagKey, userID string) {
	if errors.Is(err, domain.ErrFlagNotFound) {
		s.log.Debug().Str("flag_key", flagKey).Msg("unknown flag treated as disabled")
		return
	}
	s.log.Error().Err(err).
		Str("flag_key", flagKey).
		Str("user_id", userID).
		Msg("evaluation failed, failing closed")
}

// ---------------------------------------------------------------------------
// Write path
// ---------------------------------------------------------------------------

// CreateFlag validates and persists a new flag, then invalidates its cache
// keys.
func (s *FlagService) CreateFlag(ctx context.Context, in ports.CreateFlagInput) (*domain.Flag, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	now := s.now()
	flag := &domain.Flag{
		ID:                uuid.NewString(),
		Key:               in.Key,
		Name:              in.Name,
		Description:       in.Description,
		GloballyEnabled:   in.GloballyEnabled,
		RolloutPercentage: in.RolloutPercentage,
		ActiveFrom:        in.ActiveFrom,
		ActiveUntil:       in.ActiveUntil,
		Permanent:         in.Permanent,
		RequiresRestart:   in.RequiresRestart,
		Environments:      in.Environments,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := flag.Validate(); err != nil {
		return nil, err
	}
	if err := s.flags.Create(ctx, flag); err != nil {
		return nil, fmt.Errorf("create flag: %w", err)
	}
	metrics.FlagWritesTotal.WithLabelValues("flag", "create").Inc()
	s.invalidateFlag(ctx, flag.Key)
	s.log.Info().Str("flag_key", flag.Key).Msg("flag created")
	return flag, nil
}

// UpdateFlag replaces the mutable fields of an existing flag and invalidates
// its cache keys.
func (s *FlagService) UpdateFlag(ctx context.Context, in ports.UpdateFlagInput) (*domain.Flag, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	flag, err := s.flags.GetByKey(ctx, in.Key)
	if err != nil {
		return nil, err
	}
	flag.Name = in.Name
	flag.Description = in.Description
	flag.GloballyEnabled = in.GloballyEnabled
	flag.RolloutPercentage = in.RolloutPercentage
	flag.ActiveFrom = in.ActiveFrom
	flag.ActiveUntil = in.ActiveUntil
	flag.Permanent = in.Permanent
	flag.RequiresRestart = in.RequiresRestart
	flag.Environments = in.Environments
	flag.UpdatedAt = s.now()

	if err := flag.Validate(); err != nil {
		return nil, err
	}
	if err := s.flags.Update(ctx, flag); err != nil {
		return nil, fmt.Errorf("update flag: %w", err)
	}
	metrics.FlagWritesTotal.WithLabelValues("flag", "update").Inc()
	s.invalidateFlag(ctx, flag.Key)
	s.log.Info().Str("flag_key", flag.Key).Msg("flag updated")
	return flag, nil
}

// CreateAccessRule validates and persists a new rule, then invalidates the
// feature's rule cache and, for user-targeted rules, that user's flag map.
func (s *FlagService) CreateAccessRule(ctx context.Context, in ports.CreateRuleInput) (*domain.AccessRule, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	now := s.now()
	rule := &domain.AccessRule{
		ID:         uuid.NewString(),
		FeatureKey: in.FeatureKey,
		Target:     in.Target,
		Enabled:    in.Enabled,
		Conditions: in.Conditions,
		Reason:     in.Reason,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("create access rule: %w", err)
	}
	metrics.FlagWritesTotal.WithLabelValues("rule", "create").Inc()
	s.invalidateRule(ctx, rule)
	s.log.Info().
		Str("feature_key", rule.FeatureKey).
		Str("target_kind", string(rule.Target.Kind)).
		Msg("access rule created")
	return rule, nil
}

// UpdateAccessRule replaces the mutable fields of an existing rule. The
// target is immutable; retargeting is delete + create.
func (s *FlagService) UpdateAccessRule(ctx context.Context, in ports.UpdateRuleInput) (*domain.AccessRule, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	rule, err := s.rules.GetByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	rule.Enabled = in.Enabled
	rule.Conditions = in.Conditions
	rule.Reason = in.Reason
	rule.UpdatedAt = s.now()

	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, fmt.Errorf("update access rule: %w", err)
	}
	metrics.FlagWritesTotal.WithLabelValues("rule", "update").Inc()
	s.invalidateRule(ctx, rule)
	return rule, nil
}

// DeleteAccessRule removes a rule and invalidates its cache keys.
func (s *FlagService) DeleteAccessRule(ctx context.Context, id string) error {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.rules.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete access rule: %w", err)
	}
	metrics.FlagWritesTotal.WithLabelValues("rule", "delete").Inc()
	s.invalidateRule(ctx, rule)
	return nil
}

// invalidateFlag removes the flag's metadata and rules entries. Per-user
// flag maps are not enumerable by flag key; their short TTL covers them.
func (s *FlagService) invalidateFlag(ctx context.Context, flagKey string) {
	s.cache.delete(ctx, flagMetaKey(flagKey), rulesKey(flagKey))
}

// invalidateRule drops the feature's rule list and, for user-targeted rules,
// that user's flag map. Org scope lives inside the map, so the one delete
// covers every organization the user was evaluated under.
func (s *FlagService) invalidateRule(ctx context.Context, rule *domain.AccessRule) {
	keys := []string{rulesKey(rule.FeatureKey)}
	if rule.Target.Kind == domain.TargetUser {
		keys = append(keys, userFlagsKey(rule.Target.Value))
	}
	s.cache.delete(ctx, keys...)
}

func orgIDOf(org *domain.Organization) string {
	if org == nil {
		return ""
	}
	return org.ID
}

func resultLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

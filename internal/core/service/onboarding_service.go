package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/progressly/featuregate/internal/core/domain"
	"github.com/progressly/featuregate/internal/core/ports"
	"github.com/progressly/featuregate/internal/metrics"
)

// OnboardingService drives the funnel: it loads (or lazily creates) the
// per-user record, applies the stage machine, persists the result, and
// invalidates the user's cache entries so the next evaluation sees the new
// unlocks.
type OnboardingService struct {
	repo    ports.OnboardingRepository
	cache   cacheClient
	machine StageMachine
	now     func() time.Time
	log     zerolog.Logger
}

var _ ports.OnboardingService = (*OnboardingService)(nil)

// NewOnboardingService wires the funnel service.
func NewOnboardingService(
	repo ports.OnboardingRepository,
	cache ports.CacheStore,
	ttls CacheTTLs,
	log zerolog.Logger,
) *OnboardingService {
	return &OnboardingService{
		repo:    repo,
		cache:   cacheClient{store: cache, ttls: ttls, log: log},
		machine: NewStageMachine(),
		now:     func() time.Time { return time.Now().UTC() },
		log:     log,
	}
}

// AdvanceToStage moves the user to the given stage. Failures are logged and
// reported as false; the record is only persisted when the machine accepted
// the transition.
func (s *OnboardingService) AdvanceToStage(ctx context.Context, in ports.AdvanceInput) bool {
	progress, err := s.loadOrCreate(ctx, in.User.ID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", in.User.ID).Msg("progress load failed")
		return false
	}
	mergeCustomData(progress, in.CustomData)
	if err := s.machine.AdvanceToStage(progress, in.NewStage, s.now()); err != nil {
		s.log.Warn().Err(err).Str("user_id", in.User.ID).Msg("stage advance rejected")
		return false
	}
	if !s.persist(ctx, progress) {
		return false
	}
	metrics.OnboardingAdvancesTotal.WithLabelValues(string(in.NewStage)).Inc()
	s.log.Info().
		Str("user_id", in.User.ID).
		Str("stage", string(in.NewStage)).
		Int("progress_pct", progress.ProgressPercentage).
		Msg("onboarding advanced")
	return true
}

// MarkStageCompleted adds a stage to the user's completed set without
// moving the current stage. Idempotent.
func (s *OnboardingService) MarkStageCompleted(ctx context.Context, user domain.User, stage domain.Stage) bool {
	progress, err := s.loadOrCreate(ctx, user.ID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("progress load failed")
		return false
	}
	if err := s.machine.MarkStageCompleted(progress, stage, s.now()); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("mark completed rejected")
		return false
	}
	return s.persist(ctx, progress)
}

// HandleAction dispatches a product action. Actions targeting a stage at or
// behind the current one merge metadata only; actions further ahead
// auto-complete the intervening stages.
func (s *OnboardingService) HandleAction(ctx context.Context, in ports.ActionInput) bool {
	progress, err := s.loadOrCreate(ctx, in.User.ID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", in.User.ID).Msg("progress load failed")
		return false
	}
	before := progress.CurrentStage
	if err := s.machine.ApplyAction(progress, in.Action, in.Metadata, s.now()); err != nil {
		s.log.Warn().Err(err).
			Str("user_id", in.User.ID).
			Str("action", string(in.Action)).
			Msg("action rejected")
		return false
	}
	if !s.persist(ctx, progress) {
		return false
	}
	if progress.CurrentStage != before {
		metrics.OnboardingAdvancesTotal.WithLabelValues(string(progress.CurrentStage)).Inc()
		s.log.Info().
			Str("user_id", in.User.ID).
			Str("action", string(in.Action)).
			Str("from", string(before)).
			Str("to", string(progress.CurrentStage)).
			Msg("action advanced onboarding")
	}
	return true
}

// CheckStageRequirements reports whether the user may advance to the target
// stage, naming every unmet requirement.
func (s *OnboardingService) CheckStageRequirements(ctx context.Context, user domain.User, target domain.Stage) (bool, []string) {
	progress, err := s.loadOrCreate(ctx, user.ID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("progress load failed")
		return false, nil
	}
	ok, missing, err := s.machine.CheckRequirements(&user, progress, target)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("requirement check rejected")
		return false, nil
	}
	return ok, missing
}

// GetProgressSummary returns the funnel read model: current position,
// completion percentage, unlocked features, and what is still missing for
// the next stage.
func (s *OnboardingService) GetProgressSummary(ctx context.Context, user domain.User) (*ports.ProgressSummary, error) {
	progress, err := s.loadOrCreate(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("progress summary: %w", err)
	}

	summary := &ports.ProgressSummary{
		CurrentStage:       progress.CurrentStage,
		CompletedStages:    progress.CompletedStages,
		ProgressPercentage: progress.ProgressPercentage,
		AvailableFeatures:  s.machine.AvailableFeatures(progress),
	}
	if next := progress.CurrentStage.Next(); next != "" {
		summary.NextStage = next
		if _, missing, err := s.machine.CheckRequirements(&user, progress, next); err == nil {
			summary.NextStageRequirements = missing
		}
	}
	return summary, nil
}

// loadOrCreate returns the user's record, creating and persisting the
// initial one on first access.
func (s *OnboardingService) loadOrCreate(ctx context.Context, userID string) (*domain.OnboardingProgress, error) {
	cacheKey := onboardingKey(userID)
	var cached domain.OnboardingProgress
	if s.cache.get(ctx, NamespaceOnboarding, cacheKey, &cached) {
		return &cached, nil
	}

	progress, err := s.repo.GetByUser(ctx, userID)
	if err == nil {
		s.cache.set(ctx, NamespaceOnboarding, cacheKey, progress)
		return progress, nil
	}
	if !errors.Is(err, domain.ErrProgressNotFound) {
		return nil, err
	}

	progress = domain.NewProgress(userID, s.now())
	if err := s.repo.Upsert(ctx, progress); err != nil {
		return nil, fmt.Errorf("create initial progress: %w", err)
	}
	s.cache.set(ctx, NamespaceOnboarding, cacheKey, progress)
	return progress, nil
}

// persist upserts the record and synchronously invalidates the user's
// onboarding and flag-map entries before returning.
func (s *OnboardingService) persist(ctx context.Context, progress *domain.OnboardingProgress) bool {
	if err := s.repo.Upsert(ctx, progress); err != nil {
		s.log.Error().Err(err).Str("user_id", progress.UserID).Msg("progress persist failed")
		return false
	}
	s.cache.delete(ctx, onboardingKey(progress.UserID), userFlagsKey(progress.UserID))
	return true
}

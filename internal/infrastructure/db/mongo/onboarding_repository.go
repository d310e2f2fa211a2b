package mongo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/progressly/featuregate/internal/core/domain"
)

const collectionOnboarding = "onboarding_progress"

// OnboardingRepository implements ports.OnboardingRepository using MongoDB.
// The unique user_id index enforces the one-record-per-user invariant.
type OnboardingRepository struct {
	col *mongo.Collection
}

// NewOnboardingRepository creates an OnboardingRepository on the given database.
func NewOnboardingRepository(db *mongo.Database) *OnboardingRepository {
	return &OnboardingRepository{col: db.Collection(collectionOnboarding)}
}

// GetByUser retrieves the user's funnel record.
func (r *OnboardingRepository) GetByUser(ctx context.Context, userID string) (*domain.OnboardingProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var p domain.OnboardingProgress
	err := r.col.FindOne(ctx, bson.M{"user_id": userID}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrProgressNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Upsert creates or replaces the user's record, keyed by user_id.
func (r *OnboardingRepository) Upsert(ctx context.Context, p *domain.OnboardingProgress) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{
		// A string _id on insert keeps the document decodable into the
		// domain record.
		"$setOnInsert": bson.M{"_id": uuid.NewString()},
		"$set": bson.M{
			"user_id":                 p.UserID,
			"current_stage":           p.CurrentStage,
			"completed_stages":        p.CompletedStages,
			"total_actions_completed": p.TotalActionsCompleted,
			"progress_percentage":     p.ProgressPercentage,
			"custom_data":             p.CustomData,
			"stage_started_at":        p.StageStartedAt,
			"last_activity_at":        p.LastActivityAt,
			"onboarding_completed_at": p.OnboardingCompletedAt,
		},
	}

	_, err := r.col.UpdateOne(ctx,
		bson.M{"user_id": p.UserID},
		update,
		options.Update().SetUpsert(true),
	)
	return err
}

// EnsureIndexes creates the unique user_id index.
func (r *OnboardingRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/progressly/featuregate/internal/core/domain"
)

const collectionRules = "access_rules"

const indexTimeout = 30 * time.Second

// RuleRepository implements ports.RuleRepository using MongoDB. No
// uniqueness constraint exists on (feature_key, target): duplicate rules
// for the same pair may coexist and list in insertion order.
type RuleRepository struct {
	col *mongo.Collection
}

// NewRuleRepository creates a RuleRepository on the given database.
func NewRuleRepository(db *mongo.Database) *RuleRepository {
	return &RuleRepository{col: db.Collection(collectionRules)}
}

// Create inserts a new rule document.
func (r *RuleRepository) Create(ctx context.Context, rule *domain.AccessRule) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, rule)
	return err
}

// Update replaces the rule document matched by id.
func (r *RuleRepository) Update(ctx context.Context, rule *domain.AccessRule) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": rule.ID}, rule)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrRuleNotFound
	}
	return nil
}

// Delete removes the rule with the given id.
func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrRuleNotFound
	}
	return nil
}

// GetByID retrieves a single rule.
func (r *RuleRepository) GetByID(ctx context.Context, id string) (*domain.AccessRule, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rule domain.AccessRule
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&rule)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// ListByFeature returns every rule for the feature key in insertion order,
// which evaluation relies on for first-match-wins.
func (r *RuleRepository) ListByFeature(ctx context.Context, featureKey string) ([]*domain.AccessRule, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx,
		bson.M{"feature_key": featureKey},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rules []*domain.AccessRule
	if err := cur.All(ctx, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// EnsureIndexes creates the lookup indexes on the rules collection.
func (r *RuleRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "feature_key", Value: 1}}},
		{Keys: bson.D{{Key: "target.kind", Value: 1}, {Key: "target.value", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

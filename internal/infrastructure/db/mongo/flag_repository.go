package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/progressly/featuregate/internal/core/domain"
)

const collectionFlags = "feature_flags"

// FlagRepository implements ports.FlagRepository using MongoDB.
type FlagRepository struct {
	col *mongo.Collection
}

// NewFlagRepository creates a FlagRepository on the given database.
func NewFlagRepository(db *mongo.Database) *FlagRepository {
	return &FlagRepository{col: db.Collection(collectionFlags)}
}

// Create inserts a new flag document. Duplicate keys surface as
// domain.ErrFlagExists.
func (r *FlagRepository) Create(ctx context.Context, f *domain.Flag) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, f)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrFlagExists
	}
	return err
}

// Update replaces the flag document matched by key.
func (r *FlagRepository) Update(ctx context.Context, f *domain.Flag) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.ReplaceOne(ctx, bson.M{"key": f.Key}, f)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrFlagNotFound
	}
	return nil
}

// GetByKey retrieves a flag by its unique key.
func (r *FlagRepository) GetByKey(ctx context.Context, key string) (*domain.Flag, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var f domain.Flag
	err := r.col.FindOne(ctx, bson.M{"key": key}).Decode(&f)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrFlagNotFound
		}
		return nil, err
	}
	return &f, nil
}

// List returns every flag, ordered by key.
func (r *FlagRepository) List(ctx context.Context) ([]*domain.Flag, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "key", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var flags []*domain.Flag
	if err := cur.All(ctx, &flags); err != nil {
		return nil, err
	}
	return flags, nil
}

// EnsureIndexes creates the unique key index on the flags collection.
func (r *FlagRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

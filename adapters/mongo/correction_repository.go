package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/speakfix/domain"
	"github.com/satriahrh/speakfix/domain/entities"
	"github.com/satriahrh/speakfix/domain/repositories"
)

const correctionsCollection = "corrections"

// CorrectionRepository implements repositories.CorrectionRepository using MongoDB
type CorrectionRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.CorrectionRepository = (*CorrectionRepository)(nil)

// NewCorrectionRepository creates a new MongoDB correction repository
func NewCorrectionRepository(db *mongo.Database, logger *zap.Logger) *CorrectionRepository {
	return &CorrectionRepository{
		collection: db.Collection(correctionsCollection),
		logger:     logger,
	}
}

// EnsureIndexes creates the indexes used by List and DeleteOlderThan
func (r *CorrectionRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "client_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		r.logger.Error("Failed to create correction indexes", zap.Error(err))
		return fmt.Errorf("failed to create correction indexes: %w", err)
	}

	r.logger.Info("Correction indexes created successfully")
	return nil
}

// Create implements repositories.CorrectionRepository
func (r *CorrectionRepository) Create(ctx context.Context, correction *entities.Correction) error {
	if correction == nil {
		return errors.New("correction cannot be nil")
	}
	if err := correction.Validate(); err != nil {
		return err
	}

	if _, err := r.collection.InsertOne(ctx, correction); err != nil {
		return fmt.Errorf("failed to create correction: %w", err)
	}
	return nil
}

// GetByID implements repositories.CorrectionRepository
func (r *CorrectionRepository) GetByID(ctx context.Context, id string) (*entities.Correction, error) {
	if id == "" {
		return nil, errors.New("correction ID cannot be empty")
	}

	var correction entities.Correction
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&correction)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("correction %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get correction %s: %w", id, err)
	}

	return &correction, nil
}

// List implements repositories.CorrectionRepository. Newest first.
func (r *CorrectionRepository) List(ctx context.Context, filter repositories.ListFilter) ([]*entities.Correction, error) {
	query := bson.M{}
	if filter.ClientID != "" {
		query["client_id"] = filter.ClientID
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(filter.NormalizedLimit()))

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list corrections: %w", err)
	}
	defer cursor.Close(ctx)

	corrections := make([]*entities.Correction, 0)
	if err := cursor.All(ctx, &corrections); err != nil {
		return nil, fmt.Errorf("failed to decode corrections: %w", err)
	}

	return corrections, nil
}

// DeleteOlderThan implements repositories.CorrectionRepository
func (r *CorrectionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete old corrections: %w", err)
	}

	if result.DeletedCount > 0 {
		r.logger.Info("Deleted old corrections",
			zap.Int64("count", result.DeletedCount),
			zap.Time("cutoff", cutoff))
	}
	return result.DeletedCount, nil
}

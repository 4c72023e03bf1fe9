package mongodb

import (
	"context"
	"time"

	"github.com/dinehub/leaderboard-backend/internal/models"
	"github.com/dinehub/leaderboard-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// WinnerRepository implements the repositories.WinnerRepository interface
type WinnerRepository struct {
	collection *mongo.Collection
}

// NewWinnerRepository creates a new WinnerRepository
func NewWinnerRepository(db *mongo.Database) repositories.WinnerRepository {
	return &WinnerRepository{
		collection: db.Collection("winners"),
	}
}

// CreateMany inserts the full winner set for a cycle in one call
func (r *WinnerRepository) CreateMany(ctx context.Context, winners []*models.Winner) error {
	if len(winners) == 0 {
		return nil
	}
	now := time.Now()
	docs := make([]interface{}, 0, len(winners))
	for _, w := range winners {
		w.CreatedAt = now
		docs = append(docs, w)
	}
	res, err := r.collection.InsertMany(ctx, docs)
	if err != nil {
		return err
	}
	for i, id := range res.InsertedIDs {
		winners[i].ID = id.(primitive.ObjectID)
	}
	return nil
}

// FindByCycleID finds winners for a cycle ordered by rank
func (r *WinnerRepository) FindByCycleID(ctx context.Context, cycleID primitive.ObjectID) ([]*models.Winner, error) {
	opts := options.Find().SetSort(bson.M{"rank": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"cycleId": cycleID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var winners []*models.Winner
	if err := cursor.All(ctx, &winners); err != nil {
		return nil, err
	}
	if winners == nil {
		winners = []*models.Winner{}
	}
	return winners, nil
}

// FindByUserID finds a user's wins across cycles with pagination
func (r *WinnerRepository) FindByUserID(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]*models.Winner, error) {
	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(bson.M{"selectedAt": -1})

	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var winners []*models.Winner
	if err := cursor.All(ctx, &winners); err != nil {
		return nil, err
	}
	if winners == nil {
		winners = []*models.Winner{}
	}
	return winners, nil
}

// DeleteByCycleID removes all winner rows for a cycle (cascade on cycle delete,
// and rollback when finalization fails after an insert)
func (r *WinnerRepository) DeleteByCycleID(ctx context.Context, cycleID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"cycleId": cycleID})
	return err
}

// Count counts all winners
func (r *WinnerRepository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

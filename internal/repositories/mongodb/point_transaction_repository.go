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

// PointTransactionRepository implements the repositories.PointTransactionRepository interface
type PointTransactionRepository struct {
	collection *mongo.Collection
}

// NewPointTransactionRepository creates a new PointTransactionRepository
func NewPointTransactionRepository(db *mongo.Database) repositories.PointTransactionRepository {
	return &PointTransactionRepository{
		collection: db.Collection("point_transactions"),
	}
}

// Create records a ledger entry
func (r *PointTransactionRepository) Create(ctx context.Context, tx *models.PointTransaction) error {
	tx.CreatedAt = time.Now()
	if tx.Timestamp.IsZero() {
		tx.Timestamp = tx.CreatedAt
	}
	res, err := r.collection.InsertOne(ctx, tx)
	if err != nil {
		return err
	}
	tx.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// TotalsByWindow aggregates cumulative points and earliest activity per user
// over entries with start <= timestamp < end.
func (r *PointTransactionRepository) TotalsByWindow(ctx context.Context, start, end time.Time) ([]*models.LedgerTotal, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"timestamp": bson.M{"$gte": start, "$lt": end},
		}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":             "$userId",
			"totalPoints":     bson.M{"$sum": "$points"},
			"firstActivityAt": bson.M{"$min": "$timestamp"},
		}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var totals []*models.LedgerTotal
	if err := cursor.All(ctx, &totals); err != nil {
		return nil, err
	}
	if totals == nil {
		totals = []*models.LedgerTotal{}
	}
	return totals, nil
}

// FindByUserID finds a user's ledger entries with pagination
func (r *PointTransactionRepository) FindByUserID(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]*models.PointTransaction, error) {
	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(bson.M{"timestamp": -1})

	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var txs []*models.PointTransaction
	if err := cursor.All(ctx, &txs); err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []*models.PointTransaction{}
	}
	return txs, nil
}

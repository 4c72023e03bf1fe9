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

// CycleRepository implements the repositories.CycleRepository interface
type CycleRepository struct {
	collection *mongo.Collection
}

// NewCycleRepository creates a new CycleRepository
func NewCycleRepository(db *mongo.Database) repositories.CycleRepository {
	return &CycleRepository{
		collection: db.Collection("cycles"),
	}
}

// Create creates a new cycle
func (r *CycleRepository) Create(ctx context.Context, cycle *models.Cycle) error {
	cycle.CreatedAt = time.Now()
	cycle.UpdatedAt = time.Now()
	res, err := r.collection.InsertOne(ctx, cycle)
	if err != nil {
		return err
	}
	cycle.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// FindByID finds a cycle by ID
func (r *CycleRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Cycle, error) {
	var cycle models.Cycle
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&cycle)
	if err != nil {
		return nil, err // mongo.ErrNoDocuments when not found
	}
	return &cycle, nil
}

// FindByStatuses finds cycles whose status is one of the given set, oldest
// end date first so the sweep settles overdue cycles before fresh ones.
func (r *CycleRepository) FindByStatuses(ctx context.Context, statuses []models.CycleStatus) ([]*models.Cycle, error) {
	filter := bson.M{"status": bson.M{"$in": statuses}}
	opts := options.Find().SetSort(bson.M{"endDate": 1})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var cycles []*models.Cycle
	if err := cursor.All(ctx, &cycles); err != nil {
		return nil, err
	}
	if cycles == nil {
		cycles = []*models.Cycle{}
	}
	return cycles, nil
}

// FindAll finds cycles with optional status filter and pagination
func (r *CycleRepository) FindAll(ctx context.Context, status models.CycleStatus, page, limit int) ([]*models.Cycle, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(bson.M{"startDate": -1})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var cycles []*models.Cycle
	if err := cursor.All(ctx, &cycles); err != nil {
		return nil, err
	}
	if cycles == nil {
		cycles = []*models.Cycle{}
	}
	return cycles, nil
}

// ReplaceGuarded replaces the cycle document only while its status still
// equals expected. Returns false when the guard no longer matches.
func (r *CycleRepository) ReplaceGuarded(ctx context.Context, cycle *models.Cycle, expected models.CycleStatus) (bool, error) {
	cycle.UpdatedAt = time.Now()
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": cycle.ID, "status": expected}, cycle)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// UpdateStatus performs the compare-and-swap on status. Zero matched
// documents means another caller already transitioned the cycle.
func (r *CycleRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.CycleStatus) (bool, error) {
	update := bson.M{"$set": bson.M{"status": to, "updatedAt": time.Now()}}
	if to == models.CycleStatusCancelled {
		update["$set"].(bson.M)["cancelledAt"] = time.Now()
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "status": from}, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// FinalizeCompletion moves a claimed cycle to COMPLETED, recording the
// effective end date, winner count, and participant count in the same write.
func (r *CycleRepository) FinalizeCompletion(ctx context.Context, id primitive.ObjectID, endDate, completedAt time.Time, numWinners, totalParticipants int) (bool, error) {
	filter := bson.M{"_id": id, "status": models.CycleStatusCompleting}
	update := bson.M{"$set": bson.M{
		"status":            models.CycleStatusCompleted,
		"endDate":           endDate,
		"completedAt":       completedAt,
		"numWinners":        numWinners,
		"totalParticipants": totalParticipants,
		"updatedAt":         time.Now(),
	}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// DeleteFrom deletes a cycle only while it is in the given status
func (r *CycleRepository) DeleteFrom(ctx context.Context, id primitive.ObjectID, from models.CycleStatus) (bool, error) {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "status": from})
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}

// Count counts cycles, optionally by status
func (r *CycleRepository) Count(ctx context.Context, status models.CycleStatus) (int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return r.collection.CountDocuments(ctx, filter)
}

package mongodb

import (
	"context"

	"github.com/dinehub/leaderboard-backend/internal/models"
	"github.com/dinehub/leaderboard-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ParticipantRepository implements the repositories.ParticipantRepository interface
type ParticipantRepository struct {
	collection *mongo.Collection
}

// NewParticipantRepository creates a new ParticipantRepository
func NewParticipantRepository(db *mongo.Database) repositories.ParticipantRepository {
	return &ParticipantRepository{
		collection: db.Collection("participants"),
	}
}

// ReplaceForCycle atomically swaps the cached standings for a cycle with a
// fresh ledger snapshot.
func (r *ParticipantRepository) ReplaceForCycle(ctx context.Context, cycleID primitive.ObjectID, participants []*models.Participant) error {
	if _, err := r.collection.DeleteMany(ctx, bson.M{"cycleId": cycleID}); err != nil {
		return err
	}
	if len(participants) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(participants))
	for _, p := range participants {
		docs = append(docs, p)
	}
	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

// FindByCycleID finds participants for a cycle, highest points first with the
// same tie-break order the ranker uses.
func (r *ParticipantRepository) FindByCycleID(ctx context.Context, cycleID primitive.ObjectID, page, limit int) ([]*models.Participant, error) {
	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "totalPoints", Value: -1}, {Key: "firstActivityAt", Value: 1}, {Key: "userId", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"cycleId": cycleID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var participants []*models.Participant
	if err := cursor.All(ctx, &participants); err != nil {
		return nil, err
	}
	if participants == nil {
		participants = []*models.Participant{}
	}
	return participants, nil
}

// DeleteByCycleID removes all participant rows for a cycle (cascade on cycle delete)
func (r *ParticipantRepository) DeleteByCycleID(ctx context.Context, cycleID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"cycleId": cycleID})
	return err
}

// CountByCycleID counts participants for a cycle
func (r *ParticipantRepository) CountByCycleID(ctx context.Context, cycleID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"cycleId": cycleID})
}

package mongodb

import (
	"context"
	"time"

	"github.com/dinehub/leaderboard-backend/internal/models"
	"github.com/dinehub/leaderboard-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SystemConfigRepository implements the repositories.SystemConfigRepository interface
type SystemConfigRepository struct {
	collection *mongo.Collection
}

// NewSystemConfigRepository creates a new SystemConfigRepository
func NewSystemConfigRepository(db *mongo.Database) repositories.SystemConfigRepository {
	return &SystemConfigRepository{
		collection: db.Collection("system_configs"),
	}
}

// FindByKey finds a configuration setting by key
func (r *SystemConfigRepository) FindByKey(ctx context.Context, key string) (*models.SystemConfig, error) {
	var config models.SystemConfig
	err := r.collection.FindOne(ctx, bson.M{"key": key}).Decode(&config)
	if err != nil {
		return nil, err
	}
	return &config, nil
}

// UpsertByKey creates or replaces the value for a key
func (r *SystemConfigRepository) UpsertByKey(ctx context.Context, key string, value interface{}, description string) error {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"value":       value,
			"description": description,
			"updatedAt":   now,
		},
		"$setOnInsert": bson.M{
			"key":       key,
			"createdAt": now,
		},
	}
	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, bson.M{"key": key}, update, opts)
	return err
}

// FindAll finds all configuration settings
func (r *SystemConfigRepository) FindAll(ctx context.Context) ([]*models.SystemConfig, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var configs []*models.SystemConfig
	if err := cursor.All(ctx, &configs); err != nil {
		return nil, err
	}
	if configs == nil {
		configs = []*models.SystemConfig{}
	}
	return configs, nil
}

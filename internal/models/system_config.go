package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Keys for engine settings stored in the system config collection.
const (
	ConfigKeyLotteryFloorWeight    = "lottery_floor_weight"
	ConfigKeyAutoCycleEnabled      = "auto_cycle_enabled"
	ConfigKeyAutoCycleDurationDays = "auto_cycle_duration_days"
)

// SystemConfig represents a configuration setting stored in the database
type SystemConfig struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Key         string             `bson:"key" json:"key"`
	Value       interface{}        `bson:"value" json:"value"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

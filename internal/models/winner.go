package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Winner represents a winner selected at cycle completion. Winner rows are
// written exactly once, as part of the completion procedure, and never
// updated afterwards. (cycleId, userId) and (cycleId, rank) are unique.
type Winner struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	CycleID            primitive.ObjectID `bson:"cycleId" json:"cycleId"`
	UserID             primitive.ObjectID `bson:"userId" json:"userId"`
	Rank               int                `bson:"rank" json:"rank"`
	PointsAtSelection  int                `bson:"pointsAtSelection" json:"pointsAtSelection"` // snapshot; immutable even if the ledger changes later
	IsGuaranteedWinner bool               `bson:"isGuaranteedWinner" json:"isGuaranteedWinner"`
	SelectedAt         time.Time          `bson:"selectedAt" json:"selectedAt"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
}

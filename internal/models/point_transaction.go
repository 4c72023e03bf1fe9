package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PointTransaction is a single entry in the points ledger. The engine treats
// the ledger as an external, read-only fact: it aggregates entries inside a
// cycle window but never recomputes or rewrites them.
type PointTransaction struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Points    int                `bson:"points" json:"points"`
	Source    string             `bson:"source,omitempty" json:"source,omitempty"` // e.g. "VISIT", "REVIEW"
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`               // when the points were earned
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// LedgerTotal is the per-user aggregation of ledger entries within a cycle
// window: the cumulative points and the earliest recorded activity, which is
// the deterministic tie-break signal for ranking.
type LedgerTotal struct {
	UserID          primitive.ObjectID `bson:"_id"`
	TotalPoints     int                `bson:"totalPoints"`
	FirstActivityAt time.Time          `bson:"firstActivityAt"`
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Participant is a per-cycle snapshot of a user's standing, materialized from
// the points ledger. (cycleId, userId) is unique. The row is a cache: the
// ledger remains the source of truth until winners are selected.
type Participant struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	CycleID         primitive.ObjectID `bson:"cycleId" json:"cycleId"`
	UserID          primitive.ObjectID `bson:"userId" json:"userId"`
	TotalPoints     int                `bson:"totalPoints" json:"totalPoints"`
	FirstActivityAt time.Time          `bson:"firstActivityAt" json:"firstActivityAt"` // earliest ledger entry in the cycle window
	RefreshedAt     time.Time          `bson:"refreshedAt" json:"refreshedAt"`
}

// ParticipantStanding is a Participant joined with user directory attributes
// for presentation.
type ParticipantStanding struct {
	Rank        int                `json:"rank"`
	UserID      primitive.ObjectID `json:"userId"`
	FirstName   string             `json:"firstName"`
	LastName    string             `json:"lastName"`
	Email       string             `json:"email,omitempty"`
	City        string             `json:"city,omitempty"`
	TotalPoints int                `json:"totalPoints"`
}

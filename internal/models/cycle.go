package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CycleStatus represents the lifecycle status of a leaderboard cycle
type CycleStatus string

const (
	CycleStatusScheduled CycleStatus = "SCHEDULED"
	// CycleStatusCompleting is a transient claim marker held by the single
	// caller that won the completion race. It is never returned to clients;
	// a cycle observed in this state is mid-completion or awaiting retry.
	CycleStatusCompleting CycleStatus = "COMPLETING"
	CycleStatusActive     CycleStatus = "ACTIVE"
	CycleStatusCompleted  CycleStatus = "COMPLETED"
	CycleStatusCancelled  CycleStatus = "CANCELLED"
)

// Cycle represents a time-boxed leaderboard competition period
type Cycle struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name                string             `bson:"name" json:"name"`
	Description         string             `bson:"description,omitempty" json:"description,omitempty"` // rich text, stored opaque
	StartDate           time.Time          `bson:"startDate" json:"startDate"`
	EndDate             time.Time          `bson:"endDate" json:"endDate"`
	NumberOfWinners     int                `bson:"numberOfWinners" json:"numberOfWinners"`
	GuaranteeFirstPlace bool               `bson:"guaranteeFirstPlace" json:"guaranteeFirstPlace"`
	Status              CycleStatus        `bson:"status" json:"status"`
	HeaderImageURL      string             `bson:"headerImageUrl,omitempty" json:"headerImageUrl,omitempty"`
	IsAutoGenerated     bool               `bson:"isAutoGenerated" json:"isAutoGenerated"`
	TotalParticipants   int                `bson:"totalParticipants" json:"totalParticipants"`
	NumWinners          int                `bson:"numWinners" json:"numWinners"` // winners actually persisted at completion
	CompletedAt         time.Time          `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CancelledAt         time.Time          `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CreatedAt           time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsTerminal reports whether no further lifecycle transition is possible
// (other than the hard delete permitted from CANCELLED).
func (s CycleStatus) IsTerminal() bool {
	return s == CycleStatusCompleted || s == CycleStatusCancelled
}

// CreateCycleRequest defines the payload for creating a cycle
type CreateCycleRequest struct {
	Name                string    `json:"name" binding:"required"`
	Description         string    `json:"description"`
	StartDate           time.Time `json:"startDate" binding:"required"`
	EndDate             time.Time `json:"endDate" binding:"required"`
	NumberOfWinners     int       `json:"numberOfWinners" binding:"required,min=1"`
	GuaranteeFirstPlace bool      `json:"guaranteeFirstPlace"`
	HeaderImageURL      string    `json:"headerImageUrl"`
	IsAutoGenerated     bool      `json:"isAutoGenerated"`
}

// UpdateCycleRequest defines the payload for partial cycle edits.
// Nil fields are left unchanged.
type UpdateCycleRequest struct {
	Name                *string    `json:"name"`
	Description         *string    `json:"description"`
	StartDate           *time.Time `json:"startDate"`
	EndDate             *time.Time `json:"endDate"`
	NumberOfWinners     *int       `json:"numberOfWinners"`
	GuaranteeFirstPlace *bool      `json:"guaranteeFirstPlace"`
	HeaderImageURL      *string    `json:"headerImageUrl"`
}

// CompletionResult is returned by the completion procedure
type CompletionResult struct {
	Cycle            *Cycle    `json:"cycle"`
	Winners          []*Winner `json:"winners"`
	WinnersCreated   int       `json:"winnersCreated"`
	AlreadyCompleted bool      `json:"alreadyCompleted"`
}

// SweepResult reports aggregate counts from one periodic trigger run
type SweepResult struct {
	Scanned   int `json:"scanned"`
	Activated int `json:"activated"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

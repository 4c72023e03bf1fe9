package services

import (
	"context"
	"time"

	"github.com/dinehub/leaderboard-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Clock supplies the current time. Injected so tests can simulate cycle
// expiry instead of sleeping.
type Clock func() time.Time

// CycleService defines the interface for cycle lifecycle operations
type CycleService interface {
	// CreateCycle creates a cycle in SCHEDULED, or ACTIVE when startDate is
	// already past.
	CreateCycle(ctx context.Context, req *models.CreateCycleRequest) (*models.Cycle, error)

	// UpdateCycle applies a partial edit, enforcing status-dependent field rules
	UpdateCycle(ctx context.Context, id primitive.ObjectID, req *models.UpdateCycleRequest) (*models.Cycle, error)

	// CancelCycle transitions SCHEDULED or ACTIVE to CANCELLED via CAS
	CancelCycle(ctx context.Context, id primitive.ObjectID) (*models.Cycle, error)

	// CompleteCycle runs the completion procedure. Manual callers get a
	// conflict error when they lose the claim race; the sweep gets a nil
	// result and treats it as a benign no-op. Completing an already
	// completed cycle returns the stored winners unchanged.
	CompleteCycle(ctx context.Context, id primitive.ObjectID, manual bool) (*models.CompletionResult, error)

	// ForceCompleteCycle ends an active cycle early, permanently truncating
	// its window to the completion instant.
	ForceCompleteCycle(ctx context.Context, id primitive.ObjectID) (*models.CompletionResult, error)

	// DeleteCycle hard-deletes a cycle and its participant and winner rows.
	// Permitted only from CANCELLED.
	DeleteCycle(ctx context.Context, id primitive.ObjectID) error

	GetCycleByID(ctx context.Context, id primitive.ObjectID) (*models.Cycle, error)
	GetCycles(ctx context.Context, status models.CycleStatus, page, limit int) ([]*models.Cycle, error)

	// GetParticipants returns the ranked standings for a cycle, read through
	// the points ledger while the cycle is running and frozen afterwards.
	GetParticipants(ctx context.Context, cycleID primitive.ObjectID, page, limit int) ([]*models.ParticipantStanding, error)

	// GetWinners returns the winner set, empty unless the cycle is COMPLETED
	GetWinners(ctx context.Context, cycleID primitive.ObjectID) ([]*models.Winner, error)
}

// SweepService defines the interface for the periodic trigger
type SweepService interface {
	// Run scans all non-terminal cycles and applies time-based transitions.
	// Safe to invoke concurrently with itself and with operator actions.
	Run(ctx context.Context) (*models.SweepResult, error)
}

// AuthService defines the interface for admin authentication operations
type AuthService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.AdminUser, error)
	Login(ctx context.Context, req *models.LoginRequest) (string, error) // returns a signed JWT
}

package repositories

import (
	"context"
	"time"

	"github.com/dinehub/leaderboard-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CycleRepository defines the interface for cycle data operations.
// Every lifecycle transition goes through a conditional write guarded on the
// expected prior status; a false return means the guard did not match and the
// caller lost the race.
type CycleRepository interface {
	Create(ctx context.Context, cycle *models.Cycle) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Cycle, error)
	FindByStatuses(ctx context.Context, statuses []models.CycleStatus) ([]*models.Cycle, error)
	FindAll(ctx context.Context, status models.CycleStatus, page, limit int) ([]*models.Cycle, error)
	// ReplaceGuarded replaces the document only while its status still equals
	// expected, so edits cannot clobber a racing transition.
	ReplaceGuarded(ctx context.Context, cycle *models.Cycle, expected models.CycleStatus) (bool, error)
	// UpdateStatus is the CAS primitive: set status to `to` only if it is
	// still `from`.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.CycleStatus) (bool, error)
	// FinalizeCompletion moves COMPLETING to COMPLETED while recording the
	// effective end of the cycle and winner count, in a single write.
	FinalizeCompletion(ctx context.Context, id primitive.ObjectID, endDate, completedAt time.Time, numWinners, totalParticipants int) (bool, error)
	// DeleteFrom removes the cycle only while it is in the given status.
	DeleteFrom(ctx context.Context, id primitive.ObjectID, from models.CycleStatus) (bool, error)
	Count(ctx context.Context, status models.CycleStatus) (int64, error)
}

// ParticipantRepository manages the per-cycle cache of ledger standings
type ParticipantRepository interface {
	ReplaceForCycle(ctx context.Context, cycleID primitive.ObjectID, participants []*models.Participant) error
	FindByCycleID(ctx context.Context, cycleID primitive.ObjectID, page, limit int) ([]*models.Participant, error)
	DeleteByCycleID(ctx context.Context, cycleID primitive.ObjectID) error
	CountByCycleID(ctx context.Context, cycleID primitive.ObjectID) (int64, error)
}

// WinnerRepository defines the interface for winner data operations. Winner
// rows are append-only: created once at completion, removed only when the
// owning cycle is deleted.
type WinnerRepository interface {
	CreateMany(ctx context.Context, winners []*models.Winner) error
	FindByCycleID(ctx context.Context, cycleID primitive.ObjectID) ([]*models.Winner, error)
	FindByUserID(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]*models.Winner, error)
	DeleteByCycleID(ctx context.Context, cycleID primitive.ObjectID) error
	Count(ctx context.Context) (int64, error)
}

// PointsLedger is the read side of the external points ledger
type PointsLedger interface {
	// TotalsByWindow aggregates cumulative points and earliest activity per
	// user, over ledger entries with start <= timestamp < end.
	TotalsByWindow(ctx context.Context, start, end time.Time) ([]*models.LedgerTotal, error)
}

// PointTransactionRepository extends the ledger with the write operations the
// surrounding application uses; the engine itself only reads.
type PointTransactionRepository interface {
	PointsLedger
	Create(ctx context.Context, tx *models.PointTransaction) error
	FindByUserID(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]*models.PointTransaction, error)
}

// UserRepository defines the interface for the identity directory
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
}

// SystemConfigRepository defines the interface for system configuration operations
type SystemConfigRepository interface {
	FindByKey(ctx context.Context, key string) (*models.SystemConfig, error)
	UpsertByKey(ctx context.Context, key string, value interface{}, description string) error
	FindAll(ctx context.Context) ([]*models.SystemConfig, error)
}

// AdminUserRepository defines the interface for admin account operations
type AdminUserRepository interface {
	Create(ctx context.Context, adminUser *models.AdminUser) error
	FindByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.AdminUser, error)
}

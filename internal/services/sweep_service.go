package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dinehub/leaderboard-backend/internal/models"
	"github.com/dinehub/leaderboard-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/exp/slog"
)

// Compile-time check to ensure SweepServiceImpl implements SweepService
var _ SweepService = (*SweepServiceImpl)(nil)

// DefaultClaimGrace is how long a COMPLETING claim may sit untouched before
// the sweep assumes the claimant died and releases it for retry.
const DefaultClaimGrace = 5 * time.Minute

// SweepServiceImpl is the periodic trigger: a stateless scan over all
// non-terminal cycles applying time-based transitions. Correctness rests on
// the CAS status writes, so overlapping sweeps and concurrent operator
// actions are safe; the sweep merely loses some races.
type SweepServiceImpl struct {
	cycleRepo    repositories.CycleRepository
	cycleService CycleService
	configRepo   repositories.SystemConfigRepository
	now          Clock
	claimGrace   time.Duration
}

// NewSweepService creates a new SweepServiceImpl. Pass nil clock for
// wall-clock time and zero claimGrace for the default.
func NewSweepService(
	cycleRepo repositories.CycleRepository,
	cycleService CycleService,
	configRepo repositories.SystemConfigRepository,
	clock Clock,
	claimGrace time.Duration,
) *SweepServiceImpl {
	if clock == nil {
		clock = time.Now
	}
	if claimGrace <= 0 {
		claimGrace = DefaultClaimGrace
	}
	return &SweepServiceImpl{
		cycleRepo:    cycleRepo,
		cycleService: cycleService,
		configRepo:   configRepo,
		now:          clock,
		claimGrace:   claimGrace,
	}
}

// Run executes one sweep. A failure on one cycle is logged and does not stop
// the scan.
func (s *SweepServiceImpl) Run(ctx context.Context) (*models.SweepResult, error) {
	cycles, err := s.cycleRepo.FindByStatuses(ctx, []models.CycleStatus{
		models.CycleStatusScheduled,
		models.CycleStatusActive,
		models.CycleStatusCompleting,
	})
	if err != nil {
		slog.Error("Sweep failed to list cycles", "error", err)
		return nil, fmt.Errorf("failed to list cycles for sweep: %w", err)
	}

	result := &models.SweepResult{Scanned: len(cycles)}
	for _, cycle := range cycles {
		if err := s.sweepCycle(ctx, cycle, result); err != nil {
			result.Failed++
			slog.Error("Sweep failed on cycle", "error", err, "cycleId", cycle.ID, "status", cycle.Status)
		}
	}

	slog.Info("Sweep finished", "scanned", result.Scanned, "activated", result.Activated, "completed", result.Completed, "failed", result.Failed)
	return result, nil
}

func (s *SweepServiceImpl) sweepCycle(ctx context.Context, cycle *models.Cycle, result *models.SweepResult) error {
	now := s.now()

	if cycle.Status == models.CycleStatusCompleting {
		return s.rescueStaleClaim(ctx, cycle, now)
	}

	if cycle.Status == models.CycleStatusScheduled && !now.Before(cycle.StartDate) {
		swapped, err := s.cycleRepo.UpdateStatus(ctx, cycle.ID, models.CycleStatusScheduled, models.CycleStatusActive)
		if err != nil {
			return fmt.Errorf("activation failed: %w", err)
		}
		if !swapped {
			// Another sweep or operator beat us; nothing left to do here.
			return nil
		}
		cycle.Status = models.CycleStatusActive
		result.Activated++
		slog.Info("Cycle activated by sweep", "cycleId", cycle.ID)
	}

	if cycle.Status == models.CycleStatusActive && !now.Before(cycle.EndDate) {
		completion, err := s.cycleService.CompleteCycle(ctx, cycle.ID, false)
		if err != nil {
			return fmt.Errorf("completion failed: %w", err)
		}
		if completion == nil || completion.AlreadyCompleted {
			return nil
		}
		result.Completed++
		s.maybeScheduleSuccessor(ctx, completion.Cycle)
	}
	return nil
}

// rescueStaleClaim releases a COMPLETING claim whose holder has not touched
// the cycle within the grace period, so the next sweep can retry completion.
func (s *SweepServiceImpl) rescueStaleClaim(ctx context.Context, cycle *models.Cycle, now time.Time) error {
	if now.Sub(cycle.UpdatedAt) < s.claimGrace {
		return nil
	}
	swapped, err := s.cycleRepo.UpdateStatus(ctx, cycle.ID, models.CycleStatusCompleting, models.CycleStatusActive)
	if err != nil {
		return fmt.Errorf("stale claim release failed: %w", err)
	}
	if swapped {
		slog.Warn("Released stale completion claim", "cycleId", cycle.ID, "claimedAt", cycle.UpdatedAt)
	}
	return nil
}

// maybeScheduleSuccessor creates the next recurring cycle after an
// auto-generated one completes, when the feature is enabled in system config.
func (s *SweepServiceImpl) maybeScheduleSuccessor(ctx context.Context, completed *models.Cycle) {
	if completed == nil || !completed.IsAutoGenerated {
		return
	}
	if !s.configBool(ctx, models.ConfigKeyAutoCycleEnabled, false) {
		return
	}
	days := s.configInt(ctx, models.ConfigKeyAutoCycleDurationDays, 7)
	if days < 1 {
		days = 7
	}

	next := &models.Cycle{
		Name:                completed.Name,
		Description:         completed.Description,
		StartDate:           completed.EndDate,
		EndDate:             completed.EndDate.AddDate(0, 0, days),
		NumberOfWinners:     completed.NumberOfWinners,
		GuaranteeFirstPlace: completed.GuaranteeFirstPlace,
		Status:              models.CycleStatusScheduled,
		HeaderImageURL:      completed.HeaderImageURL,
		IsAutoGenerated:     true,
	}
	if !s.now().Before(next.StartDate) {
		next.Status = models.CycleStatusActive
	}
	if err := s.cycleRepo.Create(ctx, next); err != nil {
		slog.Error("Failed to schedule successor cycle", "error", err, "completedCycleId", completed.ID)
		return
	}
	slog.Info("Scheduled successor cycle", "cycleId", next.ID, "start", next.StartDate, "end", next.EndDate)
}

func (s *SweepServiceImpl) configBool(ctx context.Context, key string, fallback bool) bool {
	config, err := s.configRepo.FindByKey(ctx, key)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			slog.Warn("Failed to read config", "error", err, "key", key)
		}
		return fallback
	}
	if v, ok := config.Value.(bool); ok {
		return v
	}
	return fallback
}

func (s *SweepServiceImpl) configInt(ctx context.Context, key string, fallback int) int {
	config, err := s.configRepo.FindByKey(ctx, key)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			slog.Warn("Failed to read config", "error", err, "key", key)
		}
		return fallback
	}
	switch v := config.Value.(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

package services

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"context"

	"github.com/dinehub/leaderboard-backend/internal/apperrors"
	"github.com/dinehub/leaderboard-backend/internal/models"
	"github.com/dinehub/leaderboard-backend/internal/repositories"
	"github.com/dinehub/leaderboard-backend/internal/selection"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/exp/slog"
)

// Compile-time check to ensure CycleServiceImpl implements CycleService
var _ CycleService = (*CycleServiceImpl)(nil)

// CycleServiceImpl owns the cycle state machine and orchestrates ranking and
// winner selection at completion. All transitions are CAS writes on status;
// there are no in-memory locks across processes, so concurrent sweeps and
// operator actions race safely.
type CycleServiceImpl struct {
	cycleRepo       repositories.CycleRepository
	participantRepo repositories.ParticipantRepository
	winnerRepo      repositories.WinnerRepository
	ledger          repositories.PointsLedger
	userRepo        repositories.UserRepository
	configRepo      repositories.SystemConfigRepository
	now             Clock

	rngMu sync.Mutex // rand.Rand is not safe for concurrent draws
	rng   *rand.Rand
}

// NewCycleService creates a new CycleServiceImpl. Pass nil for clock or rng
// to get wall-clock time and a time-seeded generator.
func NewCycleService(
	cycleRepo repositories.CycleRepository,
	participantRepo repositories.ParticipantRepository,
	winnerRepo repositories.WinnerRepository,
	ledger repositories.PointsLedger,
	userRepo repositories.UserRepository,
	configRepo repositories.SystemConfigRepository,
	clock Clock,
	rng *rand.Rand,
) *CycleServiceImpl {
	if clock == nil {
		clock = time.Now
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &CycleServiceImpl{
		cycleRepo:       cycleRepo,
		participantRepo: participantRepo,
		winnerRepo:      winnerRepo,
		ledger:          ledger,
		userRepo:        userRepo,
		configRepo:      configRepo,
		now:             clock,
		rng:             rng,
	}
}

// CreateCycle creates a new cycle after validating its configuration
func (s *CycleServiceImpl) CreateCycle(ctx context.Context, req *models.CreateCycleRequest) (*models.Cycle, error) {
	if err := validateCycleConfig(req.StartDate, req.EndDate, req.NumberOfWinners); err != nil {
		return nil, err
	}

	status := models.CycleStatusScheduled
	if !s.now().Before(req.StartDate) {
		status = models.CycleStatusActive
	}

	cycle := &models.Cycle{
		Name:                req.Name,
		Description:         req.Description,
		StartDate:           req.StartDate,
		EndDate:             req.EndDate,
		NumberOfWinners:     req.NumberOfWinners,
		GuaranteeFirstPlace: req.GuaranteeFirstPlace,
		Status:              status,
		HeaderImageURL:      req.HeaderImageURL,
		IsAutoGenerated:     req.IsAutoGenerated,
	}
	if err := s.cycleRepo.Create(ctx, cycle); err != nil {
		slog.Error("Failed to create cycle", "error", err)
		return nil, fmt.Errorf("failed to create cycle: %w", err)
	}

	slog.Info("Cycle created", "cycleId", cycle.ID, "status", cycle.Status, "start", cycle.StartDate, "end", cycle.EndDate)
	return cycle, nil
}

// UpdateCycle applies a partial edit under the status-dependent field rules:
// all fields are editable while SCHEDULED or ACTIVE; completed and cancelled
// cycles accept name and description only.
func (s *CycleServiceImpl) UpdateCycle(ctx context.Context, id primitive.ObjectID, req *models.UpdateCycleRequest) (*models.Cycle, error) {
	cycle, err := s.findCycle(ctx, id)
	if err != nil {
		return nil, err
	}

	if cycle.Status == models.CycleStatusCompleting {
		return nil, apperrors.Conflict("cycle %s is being completed", id.Hex())
	}

	editable := cycle.Status == models.CycleStatusScheduled || cycle.Status == models.CycleStatusActive
	if !editable && hasRestrictedEdit(req) {
		return nil, apperrors.Validation("only name and description of a %s cycle may be edited", cycle.Status)
	}

	if req.Name != nil {
		cycle.Name = *req.Name
	}
	if req.Description != nil {
		cycle.Description = *req.Description
	}
	if req.HeaderImageURL != nil {
		cycle.HeaderImageURL = *req.HeaderImageURL
	}
	if req.StartDate != nil {
		cycle.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		cycle.EndDate = *req.EndDate
	}
	if req.NumberOfWinners != nil {
		cycle.NumberOfWinners = *req.NumberOfWinners
	}
	if req.GuaranteeFirstPlace != nil {
		cycle.GuaranteeFirstPlace = *req.GuaranteeFirstPlace
	}

	if err := validateCycleConfig(cycle.StartDate, cycle.EndDate, cycle.NumberOfWinners); err != nil {
		return nil, err
	}

	// An edit never re-triggers completion: a shortened end date is picked
	// up by the next sweep, not applied here.
	swapped, err := s.cycleRepo.ReplaceGuarded(ctx, cycle, cycle.Status)
	if err != nil {
		slog.Error("Failed to update cycle", "error", err, "cycleId", id)
		return nil, fmt.Errorf("failed to update cycle: %w", err)
	}
	if !swapped {
		return nil, apperrors.Conflict("cycle %s changed status during edit", id.Hex())
	}

	slog.Info("Cycle updated", "cycleId", id, "status", cycle.Status)
	return cycle, nil
}

// CancelCycle cancels a scheduled or active cycle. Cancellation shares the
// CAS discipline with completion, so a cycle claimed by a completion run can
// no longer be cancelled.
func (s *CycleServiceImpl) CancelCycle(ctx context.Context, id primitive.ObjectID) (*models.Cycle, error) {
	for _, from := range []models.CycleStatus{models.CycleStatusScheduled, models.CycleStatusActive} {
		swapped, err := s.cycleRepo.UpdateStatus(ctx, id, from, models.CycleStatusCancelled)
		if err != nil {
			slog.Error("Failed to cancel cycle", "error", err, "cycleId", id)
			return nil, fmt.Errorf("failed to cancel cycle: %w", err)
		}
		if swapped {
			slog.Info("Cycle cancelled", "cycleId", id, "from", from)
			return s.findCycle(ctx, id)
		}
	}

	cycle, err := s.findCycle(ctx, id)
	if err != nil {
		return nil, err
	}
	if cycle.Status == models.CycleStatusCompleting {
		return nil, apperrors.Conflict("cycle %s is being completed", id.Hex())
	}
	return nil, apperrors.IllegalTransition("cannot cancel a %s cycle", cycle.Status)
}

// ForceCompleteCycle ends an active cycle early. The cycle window is
// permanently truncated to the completion instant.
func (s *CycleServiceImpl) ForceCompleteCycle(ctx context.Context, id primitive.ObjectID) (*models.CompletionResult, error) {
	return s.CompleteCycle(ctx, id, true)
}

// CompleteCycle runs the completion procedure (claim, rank, select, persist,
// finalize). Exactly one caller wins the claim; losers observe the CAS
// failure and stop without side effects.
func (s *CycleServiceImpl) CompleteCycle(ctx context.Context, id primitive.ObjectID, manual bool) (*models.CompletionResult, error) {
	cycle, err := s.findCycle(ctx, id)
	if err != nil {
		return nil, err
	}

	switch cycle.Status {
	case models.CycleStatusCompleted:
		// Idempotent: return the stored winners, no further writes.
		winners, err := s.winnerRepo.FindByCycleID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load winners: %w", err)
		}
		return &models.CompletionResult{Cycle: cycle, Winners: winners, AlreadyCompleted: true}, nil
	case models.CycleStatusCancelled:
		return nil, apperrors.IllegalTransition("cannot complete a cancelled cycle")
	case models.CycleStatusCompleting:
		if manual {
			return nil, apperrors.Conflict("cycle %s is already being completed", id.Hex())
		}
		return nil, nil
	case models.CycleStatusScheduled:
		// A scheduled cycle whose start has passed counts as active for
		// completion purposes.
		if s.now().Before(cycle.StartDate) {
			return nil, apperrors.IllegalTransition("cycle %s has not started", id.Hex())
		}
		swapped, err := s.cycleRepo.UpdateStatus(ctx, id, models.CycleStatusScheduled, models.CycleStatusActive)
		if err != nil {
			return nil, fmt.Errorf("failed to activate cycle: %w", err)
		}
		if !swapped {
			// Someone else moved it; fall through and race on the claim.
			refreshed, err := s.findCycle(ctx, id)
			if err != nil {
				return nil, err
			}
			cycle = refreshed
		} else {
			cycle.Status = models.CycleStatusActive
		}
	}

	// Step 1: claim. Only one caller proceeds past this point.
	claimed, err := s.cycleRepo.UpdateStatus(ctx, id, models.CycleStatusActive, models.CycleStatusCompleting)
	if err != nil {
		return nil, fmt.Errorf("failed to claim cycle for completion: %w", err)
	}
	if !claimed {
		if !manual {
			return nil, nil
		}
		// The racing completion may already have finished; answer with its
		// winners rather than a conflict when it has.
		refreshed, err := s.findCycle(ctx, id)
		if err != nil {
			return nil, err
		}
		if refreshed.Status == models.CycleStatusCompleted {
			winners, err := s.winnerRepo.FindByCycleID(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("failed to load winners: %w", err)
			}
			return &models.CompletionResult{Cycle: refreshed, Winners: winners, AlreadyCompleted: true}, nil
		}
		return nil, apperrors.Conflict("cycle %s status changed to %s", id.Hex(), refreshed.Status)
	}

	result, err := s.finishClaimedCycle(ctx, cycle)
	if err != nil {
		s.releaseClaim(ctx, id)
		return nil, err
	}
	return result, nil
}

// finishClaimedCycle performs steps 2-4 of the completion procedure for a
// cycle the caller has already claimed. On any error the caller rolls the
// claim back so a later sweep can retry from scratch.
func (s *CycleServiceImpl) finishClaimedCycle(ctx context.Context, cycle *models.Cycle) (*models.CompletionResult, error) {
	now := s.now()

	// Early completion truncates the window permanently.
	effectiveEnd := cycle.EndDate
	if now.Before(effectiveEnd) {
		effectiveEnd = now
	}

	participants, err := s.snapshotStandings(ctx, cycle.ID, cycle.StartDate, cycle.EndDate)
	if err != nil {
		return nil, apperrors.Dependency(err, "points ledger unavailable for cycle %s", cycle.ID.Hex())
	}

	ranked := selection.Rank(participants)
	picks := s.selectWinners(ctx, ranked, cycle)

	winners := make([]*models.Winner, 0, len(picks))
	for _, pick := range picks {
		winners = append(winners, &models.Winner{
			CycleID:            cycle.ID,
			UserID:             pick.Participant.UserID,
			Rank:               pick.Rank,
			PointsAtSelection:  pick.Participant.TotalPoints,
			IsGuaranteedWinner: pick.Guaranteed,
			SelectedAt:         now,
		})
	}

	if err := s.winnerRepo.CreateMany(ctx, winners); err != nil {
		slog.Error("Failed to persist winners", "error", err, "cycleId", cycle.ID)
		return nil, apperrors.Dependency(err, "failed to persist winners for cycle %s", cycle.ID.Hex())
	}

	finalized, err := s.cycleRepo.FinalizeCompletion(ctx, cycle.ID, effectiveEnd, now, len(winners), len(participants))
	if err != nil || !finalized {
		// Unwind the winner rows so a retry starts clean.
		if delErr := s.winnerRepo.DeleteByCycleID(ctx, cycle.ID); delErr != nil {
			slog.Error("Failed to unwind winners after finalize failure", "error", delErr, "cycleId", cycle.ID)
		}
		if err != nil {
			return nil, apperrors.Dependency(err, "failed to finalize cycle %s", cycle.ID.Hex())
		}
		return nil, apperrors.Conflict("cycle %s claim lost before finalize", cycle.ID.Hex())
	}

	completed, err := s.findCycle(ctx, cycle.ID)
	if err != nil {
		return nil, err
	}
	slog.Info("Cycle completed", "cycleId", cycle.ID, "winners", len(winners), "participants", len(participants))
	return &models.CompletionResult{Cycle: completed, Winners: winners, WinnersCreated: len(winners)}, nil
}

// snapshotStandings reads the ledger for the cycle window and refreshes the
// participant cache with the result.
func (s *CycleServiceImpl) snapshotStandings(ctx context.Context, cycleID primitive.ObjectID, start, end time.Time) ([]*models.Participant, error) {
	totals, err := s.ledger.TotalsByWindow(ctx, start, end)
	if err != nil {
		return nil, err
	}

	now := s.now()
	participants := make([]*models.Participant, 0, len(totals))
	for _, t := range totals {
		participants = append(participants, &models.Participant{
			CycleID:         cycleID,
			UserID:          t.UserID,
			TotalPoints:     t.TotalPoints,
			FirstActivityAt: t.FirstActivityAt,
			RefreshedAt:     now,
		})
	}
	if err := s.participantRepo.ReplaceForCycle(ctx, cycleID, participants); err != nil {
		return nil, err
	}
	return participants, nil
}

// selectWinners runs the selection algorithm with the configured floor weight
func (s *CycleServiceImpl) selectWinners(ctx context.Context, ranked []*models.Participant, cycle *models.Cycle) []selection.Pick {
	opts := selection.Options{
		NumberOfWinners:     cycle.NumberOfWinners,
		GuaranteeFirstPlace: cycle.GuaranteeFirstPlace,
		FloorWeight:         s.lotteryFloorWeight(ctx),
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return selection.SelectWinners(ranked, opts, s.rng)
}

// lotteryFloorWeight reads the configurable zero-point floor, defaulting when
// the setting is absent or malformed.
func (s *CycleServiceImpl) lotteryFloorWeight(ctx context.Context) float64 {
	config, err := s.configRepo.FindByKey(ctx, models.ConfigKeyLotteryFloorWeight)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			slog.Warn("Failed to read lottery floor weight config", "error", err)
		}
		return selection.DefaultFloorWeight
	}
	switch v := config.Value.(type) {
	case float64:
		if v > 0 {
			return v
		}
	case int32:
		if v > 0 {
			return float64(v)
		}
	case int64:
		if v > 0 {
			return float64(v)
		}
	}
	slog.Warn("Invalid lottery floor weight config, using default", "value", config.Value)
	return selection.DefaultFloorWeight
}

// releaseClaim rolls a failed completion back to ACTIVE so a later sweep can
// retry the whole procedure.
func (s *CycleServiceImpl) releaseClaim(ctx context.Context, id primitive.ObjectID) {
	swapped, err := s.cycleRepo.UpdateStatus(ctx, id, models.CycleStatusCompleting, models.CycleStatusActive)
	if err != nil {
		slog.Error("CRITICAL: failed to release completion claim", "error", err, "cycleId", id)
		return
	}
	if !swapped {
		slog.Warn("Completion claim already released", "cycleId", id)
	}
}

// DeleteCycle hard-deletes a cancelled cycle. Winner and participant rows go
// first; a failed cascade then leaves the cycle document in place, so the
// delete can be retried instead of orphaning child rows.
func (s *CycleServiceImpl) DeleteCycle(ctx context.Context, id primitive.ObjectID) error {
	cycle, err := s.findCycle(ctx, id)
	if err != nil {
		return err
	}
	if cycle.Status != models.CycleStatusCancelled {
		return apperrors.IllegalTransition("cannot delete a %s cycle; cancel it first", cycle.Status)
	}

	if err := s.winnerRepo.DeleteByCycleID(ctx, id); err != nil {
		slog.Error("Failed to delete winner rows", "error", err, "cycleId", id)
		return fmt.Errorf("failed to delete winner rows: %w", err)
	}
	if err := s.participantRepo.DeleteByCycleID(ctx, id); err != nil {
		slog.Error("Failed to delete participant rows", "error", err, "cycleId", id)
		return fmt.Errorf("failed to delete participant rows: %w", err)
	}

	deleted, err := s.cycleRepo.DeleteFrom(ctx, id, models.CycleStatusCancelled)
	if err != nil {
		slog.Error("Failed to delete cycle", "error", err, "cycleId", id)
		return fmt.Errorf("failed to delete cycle: %w", err)
	}
	if !deleted {
		// CANCELLED is terminal, so the only way to lose this race is a
		// concurrent delete that already removed the document.
		return apperrors.NotFound("cycle %s not found", id.Hex())
	}
	slog.Info("Cycle deleted", "cycleId", id)
	return nil
}

// GetCycleByID retrieves a cycle by its ID
func (s *CycleServiceImpl) GetCycleByID(ctx context.Context, id primitive.ObjectID) (*models.Cycle, error) {
	return s.findCycle(ctx, id)
}

// GetCycles lists cycles with optional status filter and pagination
func (s *CycleServiceImpl) GetCycles(ctx context.Context, status models.CycleStatus, page, limit int) ([]*models.Cycle, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	cycles, err := s.cycleRepo.FindAll(ctx, status, page, limit)
	if err != nil {
		slog.Error("Failed to list cycles", "error", err)
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}
	return cycles, nil
}

// GetParticipants returns ranked standings. While the cycle is running the
// cache is refreshed from the ledger first; after completion or cancellation
// the cached snapshot is frozen.
func (s *CycleServiceImpl) GetParticipants(ctx context.Context, cycleID primitive.ObjectID, page, limit int) ([]*models.ParticipantStanding, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	cycle, err := s.findCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	if cycle.Status == models.CycleStatusScheduled {
		return []*models.ParticipantStanding{}, nil
	}

	if cycle.Status == models.CycleStatusActive {
		if _, err := s.snapshotStandings(ctx, cycleID, cycle.StartDate, cycle.EndDate); err != nil {
			// Serve the stale cache rather than failing the read.
			slog.Warn("Ledger refresh failed, serving cached standings", "error", err, "cycleId", cycleID)
		}
	}

	participants, err := s.participantRepo.FindByCycleID(ctx, cycleID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	return s.toStandings(ctx, participants, page, limit)
}

// toStandings joins participant rows with the identity directory
func (s *CycleServiceImpl) toStandings(ctx context.Context, participants []*models.Participant, page, limit int) ([]*models.ParticipantStanding, error) {
	ids := make([]primitive.ObjectID, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	users, err := s.userRepo.FindByIDs(ctx, ids)
	if err != nil {
		slog.Warn("Failed to resolve user attributes for standings", "error", err)
		users = nil
	}
	byID := make(map[primitive.ObjectID]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	standings := make([]*models.ParticipantStanding, 0, len(participants))
	for i, p := range participants {
		standing := &models.ParticipantStanding{
			Rank:        (page-1)*limit + i + 1,
			UserID:      p.UserID,
			TotalPoints: p.TotalPoints,
		}
		if u, ok := byID[p.UserID]; ok {
			standing.FirstName = u.FirstName
			standing.LastName = u.LastName
			standing.Email = u.Email
			standing.City = u.City
		}
		standings = append(standings, standing)
	}
	return standings, nil
}

// GetWinners retrieves the winners for a cycle. The winner set is only
// authoritative once the cycle reads COMPLETED; rows inserted by a completion
// still in flight are not exposed.
func (s *CycleServiceImpl) GetWinners(ctx context.Context, cycleID primitive.ObjectID) ([]*models.Winner, error) {
	cycle, err := s.findCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	if cycle.Status != models.CycleStatusCompleted {
		return []*models.Winner{}, nil
	}
	winners, err := s.winnerRepo.FindByCycleID(ctx, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load winners: %w", err)
	}
	return winners, nil
}

func (s *CycleServiceImpl) findCycle(ctx context.Context, id primitive.ObjectID) (*models.Cycle, error) {
	cycle, err := s.cycleRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("cycle %s not found", id.Hex())
		}
		return nil, fmt.Errorf("failed to load cycle: %w", err)
	}
	return cycle, nil
}

func validateCycleConfig(start, end time.Time, numberOfWinners int) error {
	if !start.Before(end) {
		return apperrors.Validation("startDate must be before endDate")
	}
	if numberOfWinners < 1 {
		return apperrors.Validation("numberOfWinners must be at least 1")
	}
	return nil
}

// hasRestrictedEdit reports whether the request touches anything beyond the
// name and description, the only fields editable on a terminal cycle.
func hasRestrictedEdit(req *models.UpdateCycleRequest) bool {
	return req.StartDate != nil || req.EndDate != nil || req.NumberOfWinners != nil ||
		req.GuaranteeFirstPlace != nil || req.HeaderImageURL != nil
}

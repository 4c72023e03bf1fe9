package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dinehub/leaderboard-backend/internal/models"
)

func newSweep(env *testEnv) *SweepServiceImpl {
	return NewSweepService(env.cycleRepo, env.service, env.configRepo, env.clock.Now, 0)
}

func TestSweep_ActivatesDueScheduled(t *testing.T) {
	env := newTestEnv(baseTime, 1)
	sweep := newSweep(env)
	ctx := context.Background()

	due := seedCycle(t, env, models.CycleStatusScheduled, baseTime.Add(-time.Hour), baseTime.Add(48*time.Hour), 1, false)
	notDue := seedCycle(t, env, models.CycleStatusScheduled, baseTime.Add(time.Hour), baseTime.Add(48*time.Hour), 1, false)

	result, err := sweep.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Scanned != 2 || result.Activated != 1 || result.Completed != 0 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := env.cycleRepo.statusOf(due.ID); got != models.CycleStatusActive {
		t.Errorf("due cycle: status %s, want active", got)
	}
	if got := env.cycleRepo.statusOf(notDue.ID); got != models.CycleStatusScheduled {
		t.Errorf("future cycle: status %s, want scheduled", got)
	}
}

func TestSweep_CompletesOverdueActive(t *testing.T) {
	env := newTestEnv(baseTime, 1)
	sweep := newSweep(env)
	ctx := context.Background()

	overdue := seedCycle(t, env, models.CycleStatusActive, baseTime.Add(-48*time.Hour), baseTime.Add(-time.Hour), 2, false)
	running := seedCycle(t, env, models.CycleStatusActive, baseTime.Add(-time.Hour), baseTime.Add(48*time.Hour), 2, false)
	seedTotals(env, 60, 30, 10)

	result, err := sweep.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Completed != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := env.cycleRepo.statusOf(overdue.ID); got != models.CycleStatusCompleted {
		t.Errorf("overdue cycle: status %s, want completed", got)
	}
	if got := env.cycleRepo.statusOf(running.ID); got != models.CycleStatusActive {
		t.Errorf("running cycle: status %s, want active", got)
	}
	winners, _ := env.winnerRepo.FindByCycleID(ctx, overdue.ID)
	if len(winners) != 2 {
		t.Errorf("got %d winners, want 2", len(winners))
	}
}

func TestSweep_ActivatesAndCompletesInOneRun(t *testing.T) {
	env := newTestEnv(baseTime, 1)
	sweep := newSweep(env)
	ctx := context.Background()

	// Missed by earlier sweeps: still scheduled although the whole window is
	// in the past.
	missed := seedCycle(t, env, models.CycleStatusScheduled, baseTime.Add(-48*time.Hour), baseTime.Add(-time.Hour), 1, false)
	seedTotals(env, 25)

	result, err := sweep.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Activated != 1 || result.Completed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := env.cycleRepo.statusOf(missed.ID); got != models.CycleStatusCompleted {
		t.Errorf("missed cycle: status %s, want completed", got)
	}
}

func TestSweep_FailureIsolation(t *testing.T) {
	env := newTestEnv(baseTime, 1)
	sweep := newSweep(env)
	ctx := context.Background()

	broken := seedCycle(t, env, models.CycleStatusActive, baseTime.Add(-48*time.Hour), baseTime.Add(-2*time.Hour), 1, false)
	healthy := seedCycle(t, env, models.CycleStatusActive, baseTime.Add(-48*time.Hour), baseTime.Add(-time.Hour), 1, false)
	seedTotals(env, 50, 20)
	env.winnerRepo.failCycleIDs[broken.ID] = true

	result, err := sweep.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Failed != 1 || result.Completed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := env.cycleRepo.statusOf(healthy.ID); got != models.CycleStatusCompleted {
		t.Errorf("healthy cycle: status %s, want completed", got)
	}
	if got := env.cycleRepo.statusOf(broken.ID); got != models.CycleStatusActive {
		t.Errorf("broken cycle: status %s, want active for retry", got)
	}
}

func TestSweep_ConcurrentRunsOneWinnerSet(t *testing.T) {
	env := newTestEnv(baseTime, 1)
	sweep := newSweep(env)
	ctx := context.Background()

	overdue := seedCycle(t, env, models.CycleStatusActive, baseTime.Add(-48*time.Hour), baseTime.Add(-time.Hour), 2, false)
	seedTotals(env, 80, 40, 20)

	const runs = 6
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := sweep.Run(ctx); err != nil {
				t.Errorf("Run: %v", err)
			}
		}()
	}
	wg.Wait()

	if env.winnerRepo.inserts() != 1 {
		t.Errorf("got %d winner inserts, want 1", env.winnerRepo.inserts())
	}
	winners, _ := env.winnerRepo.FindByCycleID(ctx, overdue.ID)
	if len(winners) != 2 {
		t.Errorf("got %d persisted winners, want 2", len(winners))
	}
	if got := env.cycleRepo.statusOf(overdue.ID); got != models.CycleStatusCompleted {
		t.Errorf("status %s, want completed", got)
	}
}

func TestSweep_RescuesStaleClaim(t *testing.T) {
	env := newTestEnv(baseTime, 1)
	sweep := newSweep(env)
	ctx := context.Background()

	stale := seedCycle(t, env, models.CycleStatusCompleting, baseTime.Add(-48*time.Hour), baseTime.Add(-time.Hour), 1, false)
	env.cycleRepo.touch(stale.ID, baseTime.Add(-10*time.Minute))
	fresh := seedCycle(t, env, models.CycleStatusCompleting, baseTime.Add(-48*time.Hour), baseTime.Add(-time.Hour), 1, false)
	env.cycleRepo.touch(fresh.ID, baseTime.Add(-time.Minute))

	if _, err := sweep.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := env.cycleRepo.statusOf(stale.ID); got != models.CycleStatusActive {
		t.Errorf("stale claim: status %s, want active", got)
	}
	if got := env.cycleRepo.statusOf(fresh.ID); got != models.CycleStatusCompleting {
		t.Errorf("fresh claim: status %s, want completing", got)
	}
}

func TestSweep_SchedulesSuccessorForAutoCycles(t *testing.T) {
	env := newTestEnv(baseTime, 1)
	sweep := newSweep(env)
	ctx := context.Background()

	env.configRepo.UpsertByKey(ctx, models.ConfigKeyAutoCycleEnabled, true, "")
	env.configRepo.UpsertByKey(ctx, models.ConfigKeyAutoCycleDurationDays, int64(3), "")

	end := baseTime.Add(-time.Hour)
	recurring := seedCycle(t, env, models.CycleStatusActive, baseTime.Add(-48*time.Hour), end, 2, true)
	recurring.IsAutoGenerated = true
	if _, err := env.cycleRepo.ReplaceGuarded(ctx, recurring, models.CycleStatusActive); err != nil {
		t.Fatalf("seed auto flag: %v", err)
	}
	seedTotals(env, 40, 20)

	if _, err := sweep.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	cycles, err := env.cycleRepo.FindAll(ctx, "", 1, 20)
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(cycles) != 2 {
		t.Fatalf("got %d cycles, want completed original plus successor", len(cycles))
	}
	var successor *models.Cycle
	for _, c := range cycles {
		if c.ID != recurring.ID {
			successor = c
		}
	}
	if successor == nil {
		t.Fatal("successor cycle not created")
	}
	if !successor.StartDate.Equal(end) {
		t.Errorf("successor start %v, want %v", successor.StartDate, end)
	}
	if !successor.EndDate.Equal(end.AddDate(0, 0, 3)) {
		t.Errorf("successor end %v, want %v", successor.EndDate, end.AddDate(0, 0, 3))
	}
	if !successor.IsAutoGenerated {
		t.Error("successor not flagged auto-generated")
	}
	if successor.NumberOfWinners != 2 || !successor.GuaranteeFirstPlace {
		t.Errorf("successor did not inherit selection config: %+v", successor)
	}
}

func TestSweep_NoSuccessorWhenDisabled(t *testing.T) {
	env := newTestEnv(baseTime, 1)
	sweep := newSweep(env)
	ctx := context.Background()

	recurring := seedCycle(t, env, models.CycleStatusActive, baseTime.Add(-48*time.Hour), baseTime.Add(-time.Hour), 1, false)
	recurring.IsAutoGenerated = true
	if _, err := env.cycleRepo.ReplaceGuarded(ctx, recurring, models.CycleStatusActive); err != nil {
		t.Fatalf("seed auto flag: %v", err)
	}
	seedTotals(env, 10)

	if _, err := sweep.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	n, _ := env.cycleRepo.Count(ctx, "")
	if n != 1 {
		t.Errorf("got %d cycles, successor must not be created when disabled", n)
	}
}

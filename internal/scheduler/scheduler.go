package scheduler

import (
	"context"
	"time"

	"github.com/dinehub/leaderboard-backend/internal/services"
	"github.com/robfig/cron/v3"
	"golang.org/x/exp/slog"
)

// SweepScheduler runs the periodic trigger on a cron cadence. The sweep is
// idempotent and CAS-guarded, so overlapping runs (or a manual trigger racing
// a scheduled one) are harmless.
type SweepScheduler struct {
	cronEngine *cron.Cron
	sweep      services.SweepService
	cronSpec   string
}

// NewSweepScheduler creates a new SweepScheduler
func NewSweepScheduler(sweep services.SweepService, cronSpec string) *SweepScheduler {
	return &SweepScheduler{
		cronEngine: cron.New(),
		sweep:      sweep,
		cronSpec:   cronSpec,
	}
}

// Start registers the sweep job and starts the cron engine
func (s *SweepScheduler) Start() error {
	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := s.sweep.Run(ctx); err != nil {
			slog.Error("Scheduled sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.cronEngine.Start()
	slog.Info("Sweep scheduler started", "spec", s.cronSpec)
	return nil
}

// Stop stops the cron engine and waits for a running sweep to finish
func (s *SweepScheduler) Stop() {
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	slog.Info("Sweep scheduler stopped")
}

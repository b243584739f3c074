package scheduler

import (
	"context"
	"fmt"
	"time"

	"marketgateway/config"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

const jobTimeout = 2 * time.Minute

// Warmer reloads cached aggregates.
type Warmer interface {
	Refresh(ctx context.Context) error
}

// TokenPurger deletes refresh rows that expired before now.
type TokenPurger interface {
	PurgeExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper evicts expired entries from an in-process cache.
type Sweeper interface {
	Sweep() int
}

// MarketClock gates the warm job to trading hours.
type MarketClock interface {
	IsOpen(t time.Time) bool
}

type Deps struct {
	Warmer  Warmer
	Clock   MarketClock
	Purger  TokenPurger // optional
	Sweeper Sweeper     // optional; set when redis is disabled
	Logger  *zap.Logger
}

// Scheduler runs the gateway's periodic maintenance jobs.
type Scheduler struct {
	cron   *gocron.Scheduler
	cfg    config.SchedulerConfig
	deps   Deps
	logger *zap.Logger
	now    func() time.Time
}

func New(cfg config.SchedulerConfig, deps Deps) *Scheduler {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	cron := gocron.NewScheduler(time.UTC)
	// a slow upstream must not stack warm runs
	cron.SingletonModeAll()

	return &Scheduler{
		cron:   cron,
		cfg:    cfg,
		deps:   deps,
		logger: log.Named("scheduler"),
		now:    time.Now,
	}
}

// Start registers all jobs and runs them asynchronously.
func (s *Scheduler) Start() error {
	if s.deps.Warmer != nil && s.cfg.WarmInterval > 0 {
		if _, err := s.cron.Every(s.cfg.WarmInterval).Do(s.warm); err != nil {
			return fmt.Errorf("schedule warm job: %w", err)
		}
	}

	if s.deps.Purger != nil {
		at := s.cfg.PurgeAt
		if at == "" {
			at = "03:00"
		}
		if _, err := s.cron.Every(1).Day().At(at).Do(s.purge); err != nil {
			return fmt.Errorf("schedule purge job at %q: %w", at, err)
		}
	}

	if s.deps.Sweeper != nil {
		if _, err := s.cron.Every(time.Minute).Do(s.sweep); err != nil {
			return fmt.Errorf("schedule sweep job: %w", err)
		}
	}

	s.cron.StartAsync()
	s.logger.Info("scheduler started", zap.Int("jobs", s.cron.Len()))
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("scheduler stopped")
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return s.cron.Len()
}

// warm refreshes the overview and sector caches while the market is open.
func (s *Scheduler) warm() {
	if s.deps.Clock != nil && !s.deps.Clock.IsOpen(s.now()) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	if err := s.deps.Warmer.Refresh(ctx); err != nil {
		s.logger.Warn("cache warm failed", zap.Error(err))
		return
	}
	s.logger.Debug("cache warmed", zap.Duration("took", time.Since(start)))
}

func (s *Scheduler) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.deps.Purger.PurgeExpiredRefreshTokens(ctx, s.now().UTC())
	if err != nil {
		s.logger.Error("failed to purge expired refresh tokens", zap.Error(err))
		return
	}
	s.logger.Info("purged expired refresh tokens", zap.Int64("deleted", n))
}

func (s *Scheduler) sweep() {
	if n := s.deps.Sweeper.Sweep(); n > 0 {
		s.logger.Debug("swept expired cache entries", zap.Int("evicted", n))
	}
}

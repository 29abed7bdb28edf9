// Package maintenance runs the periodic cleanup jobs of the gate.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

type ReferencePurger interface {
	PurgeUnusedSince(ctx context.Context, cutoff time.Time) (int64, error)
}

type AttemptPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type SessionReaper interface {
	Reap(retention, maxLifetime time.Duration) int
}

type Config struct {
	// ReferenceTTL drops reference descriptors not used for this long.
	ReferenceTTL time.Duration
	// AttemptRetention drops attempt rows older than this.
	AttemptRetention time.Duration
	// SessionRetention is how long a closed session stays readable.
	SessionRetention time.Duration
	// SessionMaxLifetime closes sessions nobody closed.
	SessionMaxLifetime time.Duration
	// AttemptPurgeAt is the daily wall-clock time of the attempt purge.
	AttemptPurgeAt string
}

func DefaultConfig() Config {
	return Config{
		ReferenceTTL:       30 * time.Minute,
		AttemptRetention:   30 * 24 * time.Hour,
		SessionRetention:   5 * time.Minute,
		SessionMaxLifetime: 10 * time.Minute,
		AttemptPurgeAt:     "03:30",
	}
}

// Worker schedules purges of stored descriptors and attempts and reaps
// finished sessions from memory.
type Worker struct {
	references ReferencePurger
	attempts   AttemptPurger
	sessions   SessionReaper
	cfg        Config
	logger     *slog.Logger
	scheduler  *gocron.Scheduler
	now        func() time.Time
}

func NewWorker(references ReferencePurger, attempts AttemptPurger, sessions SessionReaper, cfg Config, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	return &Worker{
		references: references,
		attempts:   attempts,
		sessions:   sessions,
		cfg:        cfg,
		logger:     logger,
		scheduler:  s,
		now:        time.Now,
	}
}

// Start registers the jobs and runs the scheduler in the background until
// Stop is called.
func (w *Worker) Start(ctx context.Context) error {
	if w.references != nil {
		if _, err := w.scheduler.Every(10).Minutes().Tag("purge-references").Do(func() {
			w.purgeReferences(ctx)
		}); err != nil {
			return fmt.Errorf("schedule reference purge: %w", err)
		}
	}

	if w.attempts != nil {
		if _, err := w.scheduler.Every(1).Day().At(w.cfg.AttemptPurgeAt).Tag("purge-attempts").Do(func() {
			w.purgeAttempts(ctx)
		}); err != nil {
			return fmt.Errorf("schedule attempt purge: %w", err)
		}
	}

	if w.sessions != nil {
		if _, err := w.scheduler.Every(1).Minute().Tag("reap-sessions").Do(w.reapSessions); err != nil {
			return fmt.Errorf("schedule session reaper: %w", err)
		}
	}

	w.scheduler.StartAsync()
	w.logger.Info("maintenance worker started", "jobs", w.scheduler.Len())
	return nil
}

func (w *Worker) Stop() {
	w.scheduler.Stop()
	w.logger.Info("maintenance worker stopped")
}

func (w *Worker) purgeReferences(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	n, err := w.references.PurgeUnusedSince(ctx, w.now().Add(-w.cfg.ReferenceTTL))
	if err != nil {
		w.logger.Error("failed to purge reference descriptors", "error", err)
		return
	}
	if n > 0 {
		w.logger.Info("purged reference descriptors", "count", n)
	}
}

func (w *Worker) purgeAttempts(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	n, err := w.attempts.PurgeOlderThan(ctx, w.now().Add(-w.cfg.AttemptRetention))
	if err != nil {
		w.logger.Error("failed to purge verification attempts", "error", err)
		return
	}
	w.logger.Info("purged verification attempts", "count", n)
}

func (w *Worker) reapSessions() {
	if n := w.sessions.Reap(w.cfg.SessionRetention, w.cfg.SessionMaxLifetime); n > 0 {
		w.logger.Debug("reaped verification sessions", "count", n)
	}
}

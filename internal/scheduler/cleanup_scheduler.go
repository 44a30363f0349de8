package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/docspace-session-api/internal/models"
	"github.com/noah-isme/docspace-session-api/pkg/cache"
	"github.com/noah-isme/docspace-session-api/pkg/config"
	"github.com/noah-isme/docspace-session-api/pkg/jobs"
)

const (
	// CleanupJobType identifies the sweep on the job queue.
	CleanupJobType = "session.cleanup"
	cleanupLockKey = "locks:session-cleanup"
)

type cleanupRunner interface {
	Run(ctx context.Context) (*models.CleanupReport, error)
}

type lockProvider interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (*cache.Lease, bool, error)
	Release(ctx context.Context, lease *cache.Lease) error
}

// CleanupScheduler triggers the cleanup sweep on a cron schedule. Ticks are
// turned into queue jobs so a failed sweep is retried, and a Redis lock keeps
// concurrent instances from sweeping at the same time.
type CleanupScheduler struct {
	cron   *cron.Cron
	queue  *jobs.Queue
	runner cleanupRunner
	locks  lockProvider
	cfg    config.CleanupConfig
	logger *zap.Logger
}

// NewCleanupScheduler validates the schedule and wires the queue.
func NewCleanupScheduler(cfg config.CleanupConfig, runner cleanupRunner, locks lockProvider, logger *zap.Logger) (*CleanupScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CleanupScheduler{
		runner: runner,
		locks:  locks,
		cfg:    cfg,
		logger: logger,
	}

	s.queue = jobs.NewQueue("session-cleanup", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: 30 * time.Second,
		Coalesce:   true,
		OnExhausted: func(job jobs.Job, err error) {
			logger.Error("cleanup sweep abandoned", zap.String("job_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err))
		},
		Logger: logger,
	})

	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger{logger: logger}),
	)
	if _, err := s.cron.AddFunc(cfg.Schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", cfg.Schedule, err)
	}

	return s, nil
}

// Start runs the queue workers and the cron clock.
func (s *CleanupScheduler) Start(ctx context.Context) {
	s.queue.Start(ctx)
	s.cron.Start()
	s.logger.Info("cleanup scheduler started", zap.String("schedule", s.cfg.Schedule))
}

// Stop halts the clock, waits for a running tick and drains the workers.
func (s *CleanupScheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.queue.Stop()
	s.logger.Info("cleanup scheduler stopped")
}

// Trigger enqueues a sweep immediately. It returns jobs.ErrJobPending while an
// earlier sweep is queued, running or waiting for a retry.
func (s *CleanupScheduler) Trigger() error {
	return s.queue.Enqueue(jobs.Job{Type: CleanupJobType})
}

func (s *CleanupScheduler) tick() {
	err := s.Trigger()
	switch {
	case err == nil:
	case errors.Is(err, jobs.ErrJobPending):
		s.logger.Info("previous cleanup still pending, skipping tick")
	default:
		s.logger.Error("failed to enqueue cleanup", zap.Error(err))
	}
}

func (s *CleanupScheduler) handle(ctx context.Context, job jobs.Job) error {
	if job.Type != CleanupJobType {
		return fmt.Errorf("unexpected job type %q", job.Type)
	}

	lease, ok, err := s.locks.TryLock(ctx, cleanupLockKey, s.cfg.LockTTL)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Info("cleanup already running elsewhere, skipping", zap.String("job_id", job.ID))
		return nil
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), lease); err != nil {
			s.logger.Warn("failed to release cleanup lock", zap.Error(err))
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.LockTTL)
	defer cancel()

	_, err = s.runner.Run(runCtx)
	return err
}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/docspace-session-api/internal/models"
)

type retiredPrincipalStore interface {
	FindDeactivatedBefore(ctx context.Context, cutoff time.Time) ([]models.User, error)
	Purge(ctx context.Context, id string) error
}

// CleanupService purges long-deactivated principals and expired tokens.
type CleanupService struct {
	users     retiredPrincipalStore
	access    tokenStore
	refresh   tokenStore
	retention time.Duration
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewCleanupService constructs a CleanupService.
func NewCleanupService(users retiredPrincipalStore, access, refresh tokenStore, retention time.Duration, metrics *MetricsService, logger *zap.Logger) *CleanupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupService{
		users:     users,
		access:    access,
		refresh:   refresh,
		retention: retention,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run performs one sweep. A failure on one principal does not stop the
// others, and the expired token sweep runs regardless. The returned error is
// non-nil when any step failed, so the caller may retry the whole sweep.
func (s *CleanupService) Run(ctx context.Context) (*models.CleanupReport, error) {
	now := s.now()
	report := &models.CleanupReport{StartedAt: now}
	var errs []error

	retired, err := s.users.FindDeactivatedBefore(ctx, now.Add(-s.retention))
	if err != nil {
		s.logger.Error("failed to list retired principals", zap.Error(err))
		errs = append(errs, fmt.Errorf("list retired principals: %w", err))
	}

	for _, user := range retired {
		if err := s.users.Purge(ctx, user.ID); err != nil {
			report.PrincipalFailures++
			s.logger.Error("failed to purge principal", zap.String("user_id", user.ID), zap.Error(err))
			continue
		}
		report.PrincipalsPurged++
	}
	if report.PrincipalFailures > 0 {
		errs = append(errs, fmt.Errorf("%d principals could not be purged", report.PrincipalFailures))
	}

	report.ExpiredSweepSucceeded = true
	if report.AccessTokensDeleted, err = s.access.DeleteExpired(ctx, now); err != nil {
		report.ExpiredSweepSucceeded = false
		s.logger.Error("failed to delete expired access tokens", zap.Error(err))
		errs = append(errs, err)
	}
	if report.RefreshTokensDeleted, err = s.refresh.DeleteExpired(ctx, now); err != nil {
		report.ExpiredSweepSucceeded = false
		s.logger.Error("failed to delete expired refresh tokens", zap.Error(err))
		errs = append(errs, err)
	}

	s.metrics.RecordCleanup(report)
	s.logger.Info("session cleanup finished",
		zap.Int("principals_purged", report.PrincipalsPurged),
		zap.Int("principal_failures", report.PrincipalFailures),
		zap.Int64("access_tokens_deleted", report.AccessTokensDeleted),
		zap.Int64("refresh_tokens_deleted", report.RefreshTokensDeleted),
		zap.Duration("took", s.now().Sub(now)),
	)

	return report, errors.Join(errs...)
}

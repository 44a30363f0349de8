package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/docspace-session-api/pkg/errors"
)

type accountStore interface {
	Deactivate(ctx context.Context, id string, ts time.Time) error
	Purge(ctx context.Context, id string) error
}

// AccountService applies principal lifecycle changes that cascade into sessions.
type AccountService struct {
	users        accountStore
	revocations  *RevocationService
	logger       *zap.Logger
	storeTimeout time.Duration
	now          func() time.Time
}

// NewAccountService constructs an AccountService.
func NewAccountService(users accountStore, revocations *RevocationService, logger *zap.Logger, storeTimeout time.Duration) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		users:        users,
		revocations:  revocations,
		logger:       logger,
		storeTimeout: storeTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Deactivate marks the user inactive and revokes all of their tokens. The
// tokens are removed for good by the cleanup sweep after the retention period.
func (s *AccountService) Deactivate(ctx context.Context, userID string) error {
	storeCtx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.users.Deactivate(storeCtx, userID, s.now()); err != nil {
		return appErrors.Unavailable(err)
	}
	return s.revocations.RevokeAll(ctx, userID)
}

// Delete removes the user and every token they own in one transaction.
func (s *AccountService) Delete(ctx context.Context, userID string) error {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.users.Purge(ctx, userID); err != nil {
		return appErrors.Unavailable(err)
	}
	s.logger.Info("account deleted", zap.String("user_id", userID))
	return nil
}

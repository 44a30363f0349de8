package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/docspace-session-api/pkg/errors"
)

// RevocationService marks tokens unusable.
type RevocationService struct {
	access       tokenStore
	refresh      tokenStore
	logger       *zap.Logger
	storeTimeout time.Duration
	now          func() time.Time
}

// NewRevocationService constructs a RevocationService.
func NewRevocationService(access, refresh tokenStore, logger *zap.Logger, storeTimeout time.Duration) *RevocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RevocationService{
		access:       access,
		refresh:      refresh,
		logger:       logger,
		storeTimeout: storeTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Revoke revokes the given token strings in both collections. Unknown and
// already revoked tokens are not an error.
func (s *RevocationService) Revoke(ctx context.Context, tokens ...string) error {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	now := s.now()
	for _, token := range tokens {
		if token == "" {
			continue
		}
		for _, store := range []tokenStore{s.access, s.refresh} {
			if _, err := store.Revoke(ctx, token, now); err != nil {
				return appErrors.Unavailable(err)
			}
		}
	}
	return nil
}

// RevokeAll revokes every live token held by userID.
func (s *RevocationService) RevokeAll(ctx context.Context, userID string) error {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	now := s.now()
	accessCount, err := s.access.RevokeAllByUser(ctx, userID, now)
	if err != nil {
		return appErrors.Unavailable(err)
	}
	refreshCount, err := s.refresh.RevokeAllByUser(ctx, userID, now)
	if err != nil {
		return appErrors.Unavailable(err)
	}

	s.logger.Info("revoked all sessions",
		zap.String("user_id", userID),
		zap.Int64("access_tokens", accessCount),
		zap.Int64("refresh_tokens", refreshCount),
	)
	return nil
}

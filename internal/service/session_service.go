package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/docspace-session-api/internal/models"
	"github.com/noah-isme/docspace-session-api/internal/repository"
	appErrors "github.com/noah-isme/docspace-session-api/pkg/errors"
)

type principalReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SessionConfig controls reissue policy and store call bounds.
type SessionConfig struct {
	RotationWindow time.Duration
	StoreTimeout   time.Duration
}

// SessionService implements login, access validation and reissue.
type SessionService struct {
	users     principalReader
	access    tokenStore
	refresh   tokenStore
	issuer    *TokenIssuer
	verifier  CredentialVerifier
	audit     auditRecorder
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	config    SessionConfig
	now       func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(
	users principalReader,
	access, refresh tokenStore,
	issuer *TokenIssuer,
	verifier CredentialVerifier,
	audit auditRecorder,
	validate *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
	config SessionConfig,
) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SessionService{
		users:     users,
		access:    access,
		refresh:   refresh,
		issuer:    issuer,
		verifier:  verifier,
		audit:     audit,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RejectLogin counts a login attempt whose payload could not be read or
// validated and returns the error to render.
func (s *SessionService) RejectLogin(cause error) error {
	s.metrics.RecordLogin(outcomeRejected)
	return appErrors.Wrap(cause, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
}

// Login verifies credentials and issues a new token pair.
func (s *SessionService) Login(ctx context.Context, req models.LoginRequest) (*models.User, *models.IssuedPair, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, s.RejectLogin(err)
	}

	ctx, cancel := withStoreTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	user, err := s.verifier.Verify(ctx, req.Email, req.Password)
	if err != nil {
		mapped := storeError(err)
		s.metrics.RecordLogin(outcomeFor(mapped))
		return nil, nil, mapped
	}

	meta := models.ClientMeta{IP: req.IP, UserAgent: req.UserAgent}
	pair, err := s.issuer.Issue(ctx, user.ID, meta)
	if err != nil {
		mapped := storeError(err)
		s.metrics.RecordLogin(outcomeFor(mapped))
		return nil, nil, mapped
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}
	s.record(ctx, user.ID, models.AuditActionLogin, meta, map[string]interface{}{"status": "success"})
	s.metrics.RecordLogin(outcomeSuccess)

	return user, pair, nil
}

// ValidateAccess resolves an access token to its principal. Every failure
// cause collapses to ErrTokenInvalid, except store failures.
func (s *SessionService) ValidateAccess(ctx context.Context, token string) (*models.Principal, error) {
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrTokenInvalid, "")
	}

	claims, err := s.issuer.ParseAccess(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrTokenInvalid.Code, appErrors.ErrTokenInvalid.Status, appErrors.ErrTokenInvalid.Message)
	}

	ctx, cancel := withStoreTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	now := s.now()
	row, err := s.access.FindValid(ctx, token, now)
	if err != nil {
		return nil, tokenLookupError(err)
	}
	if !row.Valid(now) || row.UserID != claims.Subject {
		return nil, appErrors.Clone(appErrors.ErrTokenInvalid, "")
	}

	user, err := s.activeOwner(ctx, row.UserID)
	if err != nil {
		return nil, err
	}

	return &models.Principal{User: user.Info(), AccessToken: token, ExpiresAt: row.ExpiresAt}, nil
}

// Reissue exchanges a valid refresh token for a new access token. The refresh
// token is replaced only once it has entered the rotation window.
func (s *SessionService) Reissue(ctx context.Context, refreshToken string, meta models.ClientMeta) (*models.ReissueResult, error) {
	result, err := s.reissue(ctx, refreshToken, meta)
	switch {
	case err == nil && result.RefreshRotated:
		s.metrics.RecordReissue(outcomeSuccess, true)
	case err == nil:
		s.metrics.RecordReissue(outcomeSuccess, false)
	default:
		s.metrics.RecordReissue(outcomeFor(err), false)
	}
	return result, err
}

func (s *SessionService) reissue(ctx context.Context, refreshToken string, meta models.ClientMeta) (*models.ReissueResult, error) {
	if refreshToken == "" {
		return nil, appErrors.Clone(appErrors.ErrTokenInvalid, "")
	}

	ctx, cancel := withStoreTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	now := s.now()
	row, err := s.refresh.FindValid(ctx, refreshToken, now)
	if err != nil {
		return nil, tokenLookupError(err)
	}
	if !row.Valid(now) {
		return nil, appErrors.Clone(appErrors.ErrTokenInvalid, "")
	}

	user, err := s.activeOwner(ctx, row.UserID)
	if err != nil {
		return nil, err
	}

	result := &models.ReissueResult{
		UserID:           user.ID,
		RefreshToken:     row.Token,
		RefreshExpiresAt: row.ExpiresAt,
	}

	// The access row is written before the refresh token is rotated, so a
	// failure at any step leaves the presented refresh token usable.
	access, err := s.issuer.IssueAccess(ctx, user.ID, meta)
	if err != nil {
		return nil, storeError(err)
	}
	result.AccessToken = access.Token
	result.AccessExpiresAt = access.ExpiresAt

	current := models.RefreshToken{Token: *row}
	if current.InRotationWindow(now, s.config.RotationWindow) {
		next, err := s.issuer.RotateRefresh(ctx, row.Token, user.ID, meta)
		if err != nil {
			s.discardAccess(ctx, access.Token)
			if errors.Is(err, repository.ErrTokenNotActive) {
				return nil, appErrors.Clone(appErrors.ErrTokenInvalid, "")
			}
			return nil, storeError(err)
		}
		result.RefreshToken = next.Token
		result.RefreshExpiresAt = next.ExpiresAt
		result.RefreshRotated = true
	}

	s.record(ctx, user.ID, models.AuditActionTokenReissue, meta, map[string]interface{}{"refresh_rotated": result.RefreshRotated})
	return result, nil
}

// discardAccess revokes an access row that will never reach the client.
func (s *SessionService) discardAccess(ctx context.Context, token string) {
	ctx, cancel := withStoreTimeout(context.WithoutCancel(ctx), s.config.StoreTimeout)
	defer cancel()
	if _, err := s.access.Revoke(ctx, token, s.now()); err != nil {
		s.logger.Warn("failed to revoke undelivered access token", zap.Error(err))
	}
}

// ListSessions returns the user's active refresh sessions.
func (s *SessionService) ListSessions(ctx context.Context, userID string) ([]models.SessionInfo, error) {
	ctx, cancel := withStoreTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	sessions, err := s.refresh.ListActiveByUser(ctx, userID, s.now())
	if err != nil {
		return nil, appErrors.Unavailable(err)
	}
	return sessions, nil
}

func (s *SessionService) activeOwner(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, tokenLookupError(err)
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrTokenInvalid, "")
	}
	return user, nil
}

func (s *SessionService) record(ctx context.Context, userID, action string, meta models.ClientMeta, values map[string]interface{}) {
	if s.audit == nil {
		return
	}
	body, _ := json.Marshal(values)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "session",
		ResourceID: &userID,
		NewValues:  body,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func tokenLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrTokenInvalid, "")
	}
	return appErrors.Unavailable(err)
}

// storeError keeps typed errors and turns anything else into a 503.
func storeError(err error) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Unavailable(err)
}

func withStoreTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/docspace-session-api/internal/models"
	"github.com/noah-isme/docspace-session-api/internal/repository"
	appErrors "github.com/noah-isme/docspace-session-api/pkg/errors"
)

const (
	maxIssueAttempts  = 5
	refreshTokenBytes = 32
)

// tokenStore is the persistence contract for one token collection.
type tokenStore interface {
	Create(ctx context.Context, token *models.Token) error
	FindValid(ctx context.Context, token string, now time.Time) (*models.Token, error)
	Revoke(ctx context.Context, token string, now time.Time) (bool, error)
	RevokeAllByUser(ctx context.Context, userID string, now time.Time) (int64, error)
	Rotate(ctx context.Context, old string, next *models.Token, now time.Time) error
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]models.SessionInfo, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// TokenConfig defines lifetimes and signing material for issued tokens.
type TokenConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenIssuer mints access and refresh tokens and persists them.
type TokenIssuer struct {
	access  tokenStore
	refresh tokenStore
	config  TokenConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer.
func NewTokenIssuer(access, refresh tokenStore, config TokenConfig, logger *zap.Logger) *TokenIssuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenIssuer{
		access:  access,
		refresh: refresh,
		config:  config,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates a fresh access/refresh pair for the user.
func (i *TokenIssuer) Issue(ctx context.Context, userID string, meta models.ClientMeta) (*models.IssuedPair, error) {
	access, err := i.IssueAccess(ctx, userID, meta)
	if err != nil {
		return nil, err
	}

	refresh, err := i.IssueRefresh(ctx, userID, meta)
	if err != nil {
		if _, revokeErr := i.access.Revoke(context.WithoutCancel(ctx), access.Token, i.now()); revokeErr != nil {
			i.logger.Warn("failed to revoke orphaned access token", zap.String("user_id", userID), zap.Error(revokeErr))
		}
		return nil, err
	}

	return &models.IssuedPair{
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// IssueAccess persists a new access token for the user.
func (i *TokenIssuer) IssueAccess(ctx context.Context, userID string, meta models.ClientMeta) (*models.Token, error) {
	return i.persist(func() (*models.Token, error) {
		return i.newAccess(userID, meta)
	}, func(tok *models.Token) error {
		return i.access.Create(ctx, tok)
	})
}

// IssueRefresh persists a new refresh token for the user.
func (i *TokenIssuer) IssueRefresh(ctx context.Context, userID string, meta models.ClientMeta) (*models.Token, error) {
	return i.persist(func() (*models.Token, error) {
		return i.newRefresh(userID, meta)
	}, func(tok *models.Token) error {
		return i.refresh.Create(ctx, tok)
	})
}

// RotateRefresh revokes old and stores its replacement atomically. It returns
// repository.ErrTokenNotActive when old was already revoked or expired.
func (i *TokenIssuer) RotateRefresh(ctx context.Context, old, userID string, meta models.ClientMeta) (*models.Token, error) {
	return i.persist(func() (*models.Token, error) {
		return i.newRefresh(userID, meta)
	}, func(tok *models.Token) error {
		return i.refresh.Rotate(ctx, old, tok, i.now())
	})
}

// ParseAccess checks the signature and expiry of an access token and returns its claims.
// Validity is still decided by the stored row.
func (i *TokenIssuer) ParseAccess(tokenString string) (*jwt.RegisteredClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	}
	if i.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.config.Issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(i.config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid access token claims")
	}
	return claims, nil
}

func (i *TokenIssuer) persist(build func() (*models.Token, error), store func(*models.Token) error) (*models.Token, error) {
	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		tok, err := build()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate token")
		}

		err = store(tok)
		if err == nil {
			return tok, nil
		}
		if !errors.Is(err, repository.ErrDuplicateToken) {
			return nil, err
		}
		i.logger.Warn("token collision, regenerating", zap.Int("attempt", attempt))
	}
	return nil, appErrors.Clone(appErrors.ErrInternal, "failed to issue a unique token")
}

func (i *TokenIssuer) newAccess(userID string, meta models.ClientMeta) (*models.Token, error) {
	issuedAt := i.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(i.config.AccessTTL)

	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    i.config.Issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.config.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &models.Token{
		Token:     signed,
		UserID:    userID,
		ExpiresAt: expiresAt,
		UserAgent: meta.UserAgent,
		IPAddress: meta.IP,
		CreatedAt: issuedAt,
	}, nil
}

func (i *TokenIssuer) newRefresh(userID string, meta models.ClientMeta) (*models.Token, error) {
	value, err := randomToken()
	if err != nil {
		return nil, err
	}
	issuedAt := i.now().Truncate(time.Second)
	return &models.Token{
		Token:     value,
		UserID:    userID,
		ExpiresAt: issuedAt.Add(i.config.RefreshTTL),
		UserAgent: meta.UserAgent,
		IPAddress: meta.IP,
		CreatedAt: issuedAt,
	}, nil
}

func randomToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

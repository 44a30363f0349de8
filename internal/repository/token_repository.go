package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/docspace-session-api/internal/models"
)

const tokenColumns = `id, token, user_id, expires_at, revoked, revoked_at, user_agent, ip_address, created_at`

// TokenRepository stores one kind of session token. Access and refresh tokens
// share the row layout and live in separate tables.
type TokenRepository struct {
	db       *sqlx.DB
	kind     models.TokenKind
	table    string
	observer QueryObserver
}

// NewTokenRepository creates a repository bound to the table for kind.
func NewTokenRepository(db *sqlx.DB, kind models.TokenKind, observer QueryObserver) *TokenRepository {
	return &TokenRepository{db: db, kind: kind, table: tableFor(kind), observer: observerOrNop(observer)}
}

func tableFor(kind models.TokenKind) string {
	if kind == models.TokenKindAccess {
		return "access_tokens"
	}
	return "refresh_tokens"
}

// Kind reports which token collection this repository serves.
func (r *TokenRepository) Kind() models.TokenKind {
	return r.kind
}

// Create inserts a new token row. A collision on the token string yields ErrDuplicateToken.
func (r *TokenRepository) Create(ctx context.Context, token *models.Token) error {
	defer r.observe("create", time.Now())
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO ` + r.table + ` (` + tokenColumns + `) VALUES (:id, :token, :user_id, :expires_at, :revoked, :revoked_at, :user_agent, :ip_address, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateToken
		}
		return fmt.Errorf("create %s token: %w", r.kind, err)
	}
	return nil
}

// FindValid returns the row for token only when it is unrevoked and unexpired at now.
// Any other case returns sql.ErrNoRows.
func (r *TokenRepository) FindValid(ctx context.Context, token string, now time.Time) (*models.Token, error) {
	defer r.observe("find_valid", time.Now())
	query := `SELECT ` + tokenColumns + ` FROM ` + r.table + ` WHERE token = $1 AND revoked = FALSE AND expires_at > $2 LIMIT 1`
	var row models.Token
	if err := r.db.GetContext(ctx, &row, query, token, now); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find %s token: %w", r.kind, err)
	}
	return &row, nil
}

// Revoke marks token revoked if it is not already. It reports whether this call
// performed the transition; unknown or already revoked tokens return false.
func (r *TokenRepository) Revoke(ctx context.Context, token string, now time.Time) (bool, error) {
	defer r.observe("revoke", time.Now())
	query := `UPDATE ` + r.table + ` SET revoked = TRUE, revoked_at = $2 WHERE token = $1 AND revoked = FALSE`
	res, err := r.db.ExecContext(ctx, query, token, now)
	if err != nil {
		return false, fmt.Errorf("revoke %s token: %w", r.kind, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke %s token rows: %w", r.kind, err)
	}
	return affected == 1, nil
}

// RevokeAllByUser revokes every live row owned by userID.
func (r *TokenRepository) RevokeAllByUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	defer r.observe("revoke_all", time.Now())
	query := `UPDATE ` + r.table + ` SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	res, err := r.db.ExecContext(ctx, query, userID, now)
	if err != nil {
		return 0, fmt.Errorf("revoke user %s tokens: %w", r.kind, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke user %s tokens: %w", r.kind, err)
	}
	return affected, nil
}

// Rotate revokes old and inserts next in one transaction. The revoke is a
// compare-and-set: if old is no longer live, nothing is written and
// ErrTokenNotActive is returned, so of two racing rotations only one wins.
func (r *TokenRepository) Rotate(ctx context.Context, old string, next *models.Token, now time.Time) (err error) {
	defer r.observe("rotate", time.Now())
	if next.ID == "" {
		next.ID = uuid.NewString()
	}
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s rotation: %w", r.kind, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	revoke := `UPDATE ` + r.table + ` SET revoked = TRUE, revoked_at = $2 WHERE token = $1 AND revoked = FALSE AND expires_at > $2`
	res, err := tx.ExecContext(ctx, revoke, old, now)
	if err != nil {
		return fmt.Errorf("revoke rotated %s token: %w", r.kind, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke rotated %s token rows: %w", r.kind, err)
	}
	if affected != 1 {
		return ErrTokenNotActive
	}

	insert := `INSERT INTO ` + r.table + ` (` + tokenColumns + `) VALUES (:id, :token, :user_id, :expires_at, :revoked, :revoked_at, :user_agent, :ip_address, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insert, next); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateToken
		}
		return fmt.Errorf("insert rotated %s token: %w", r.kind, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s rotation: %w", r.kind, err)
	}
	return nil
}

// ListActiveByUser returns the live rows for userID, newest first.
func (r *TokenRepository) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]models.SessionInfo, error) {
	defer r.observe("list_active", time.Now())
	query := `SELECT id, user_agent, ip_address, created_at, expires_at FROM ` + r.table + ` WHERE user_id = $1 AND revoked = FALSE AND expires_at > $2 ORDER BY created_at DESC`
	var sessions []models.SessionInfo
	if err := r.db.SelectContext(ctx, &sessions, query, userID, now); err != nil {
		return nil, fmt.Errorf("list %s tokens: %w", r.kind, err)
	}
	return sessions, nil
}

// DeleteExpired removes every row whose expiry is before now, regardless of owner.
func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	defer r.observe("delete_expired", time.Now())
	query := `DELETE FROM ` + r.table + ` WHERE expires_at < $1`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired %s tokens: %w", r.kind, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired %s tokens rows: %w", r.kind, err)
	}
	return affected, nil
}

func (r *TokenRepository) observe(op string, start time.Time) {
	r.observer.ObserveDBQuery(r.table+"."+op, time.Since(start))
}

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

const userColumns = `id, email, password_hash, full_name, active, deactivated_at, last_login, created_at, updated_at`

// UserRepository provides database access for principals.
type UserRepository struct {
	db       *sqlx.DB
	observer QueryObserver
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB, observer QueryObserver) *UserRepository {
	return &UserRepository{db: db, observer: observerOrNop(observer)}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	defer r.observe("find_by_email", time.Now())
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	defer r.observe("find_by_id", time.Now())
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	defer r.observe("create", time.Now())
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, email, password_hash, full_name, active, created_at, updated_at) VALUES (:id, :email, :password_hash, :full_name, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	defer r.observe("update_last_login", time.Now())
	const query = `UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// Deactivate marks the user inactive and stamps deactivated_at once.
func (r *UserRepository) Deactivate(ctx context.Context, id string, ts time.Time) error {
	defer r.observe("deactivate", time.Now())
	const query = `UPDATE users SET active = FALSE, deactivated_at = COALESCE(deactivated_at, $2), updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	return nil
}

// FindDeactivatedBefore lists inactive users whose deactivation predates cutoff.
func (r *UserRepository) FindDeactivatedBefore(ctx context.Context, cutoff time.Time) ([]models.User, error) {
	defer r.observe("find_deactivated", time.Now())
	const query = `SELECT ` + userColumns + ` FROM users WHERE active = FALSE AND deactivated_at IS NOT NULL AND deactivated_at < $1 ORDER BY deactivated_at`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, cutoff); err != nil {
		return nil, fmt.Errorf("find deactivated users: %w", err)
	}
	return users, nil
}

// Purge deletes every access and refresh token row of the user and then the
// user row itself, in one transaction. No token rows survive their owner.
func (r *UserRepository) Purge(ctx context.Context, id string) (err error) {
	defer r.observe("purge", time.Now())
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin purge user: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM access_tokens WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("purge access tokens: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("purge refresh tokens: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("purge user: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit purge user: %w", err)
	}
	return nil
}

func (r *UserRepository) observe(op string, start time.Time) {
	r.observer.ObserveDBQuery("users."+op, time.Since(start))
}

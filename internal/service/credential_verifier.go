package service

import (
	"context"
	"database/sql"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/docspace-session-api/internal/models"
	appErrors "github.com/noah-isme/docspace-session-api/pkg/errors"
)

// CredentialVerifier checks a presented identity and secret and returns the principal.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (*models.User, error)
}

type userFinder interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// PasswordVerifier verifies bcrypt password hashes stored on the user row.
type PasswordVerifier struct {
	users userFinder
}

// NewPasswordVerifier constructs a PasswordVerifier.
func NewPasswordVerifier(users userFinder) *PasswordVerifier {
	return &PasswordVerifier{users: users}
}

// Verify returns ErrInvalidCredentials for unknown emails or wrong passwords and
// ErrInactiveAccount when the credentials match a deactivated user. Store
// failures are returned unwrapped.
func (v *PasswordVerifier) Verify(ctx context.Context, email, password string) (*models.User, error) {
	user, err := v.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}

	return user, nil
}

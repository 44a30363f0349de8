package models

import "time"

// TokenTypeCookie tells clients the credentials travel in cookies only.
const TokenTypeCookie = "cookie"

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// ClientMeta is provenance recorded on issued tokens. Advisory only.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// IssuedPair is the result of issuing a new session.
type IssuedPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// LoginResponse is the body returned on a successful login. Token strings are
// carried only by cookies.
type LoginResponse struct {
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	User             UserInfo  `json:"user"`
}

// ReissueResult is what the reissue path produced.
type ReissueResult struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	RefreshRotated   bool
	UserID           string
}

// ReissueResponse is the body returned on a successful reissue.
type ReissueResponse struct {
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	RefreshRotated   bool      `json:"refresh_rotated"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// Principal is the authenticated caller attached to a request.
type Principal struct {
	User        UserInfo
	AccessToken string
	ExpiresAt   time.Time
}

// SessionInfo describes one active refresh session without its secret.
type SessionInfo struct {
	ID        string    `json:"id" db:"id"`
	UserAgent string    `json:"user_agent" db:"user_agent"`
	IPAddress string    `json:"ip_address" db:"ip_address"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// CleanupReport summarises one cleanup sweep.
type CleanupReport struct {
	StartedAt             time.Time `json:"started_at"`
	PrincipalsPurged      int       `json:"principals_purged"`
	PrincipalFailures     int       `json:"principal_failures"`
	AccessTokensDeleted   int64     `json:"access_tokens_deleted"`
	RefreshTokensDeleted  int64     `json:"refresh_tokens_deleted"`
	ExpiredSweepSucceeded bool      `json:"expired_sweep_succeeded"`
}

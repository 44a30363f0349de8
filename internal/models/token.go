package models

import "time"

// TokenKind distinguishes the two token collections.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Revocable is implemented by every expirable, soft-revocable session credential.
type Revocable interface {
	TokenValue() string
	OwnerID() string
	IsRevoked() bool
	ExpiresAtTime() time.Time
	Valid(now time.Time) bool
}

// Token is the row shape shared by access and refresh tokens.
type Token struct {
	ID        string     `db:"id" json:"id"`
	Token     string     `db:"token" json:"-"`
	UserID    string     `db:"user_id" json:"user_id"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	Revoked   bool       `db:"revoked" json:"revoked"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	UserAgent string     `db:"user_agent" json:"user_agent"`
	IPAddress string     `db:"ip_address" json:"ip_address"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Valid reports whether the token may still be used: not revoked and not expired.
func (t *Token) Valid(now time.Time) bool {
	return t != nil && !t.Revoked && now.Before(t.ExpiresAt)
}

func (t *Token) TokenValue() string       { return t.Token }
func (t *Token) OwnerID() string          { return t.UserID }
func (t *Token) IsRevoked() bool          { return t.Revoked }
func (t *Token) ExpiresAtTime() time.Time { return t.ExpiresAt }

// AccessToken authorizes ordinary requests for a short window.
type AccessToken struct {
	Token
}

// RefreshToken authorizes renewal of access tokens.
type RefreshToken struct {
	Token
}

// InRotationWindow reports whether the refresh token is close enough to expiry
// that reissue should replace it instead of reusing it.
func (t *RefreshToken) InRotationWindow(now time.Time, window time.Duration) bool {
	return !now.Before(t.ExpiresAt.Add(-window))
}

var (
	_ Revocable = (*AccessToken)(nil)
	_ Revocable = (*RefreshToken)(nil)
)

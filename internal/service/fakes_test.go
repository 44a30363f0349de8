package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/docspace-session-api/internal/models"
	"github.com/noah-isme/docspace-session-api/internal/repository"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memTokenStore mirrors the compare-and-set semantics of TokenRepository.
type memTokenStore struct {
	mu         sync.Mutex
	rows       map[string]*models.Token
	duplicates int
	err        error
	rotateErr  error
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{rows: map[string]*models.Token{}}
}

func (m *memTokenStore) Create(_ context.Context, token *models.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.duplicates > 0 {
		m.duplicates--
		return repository.ErrDuplicateToken
	}
	if _, exists := m.rows[token.Token]; exists {
		return repository.ErrDuplicateToken
	}
	row := *token
	m.rows[token.Token] = &row
	return nil
}

func (m *memTokenStore) FindValid(_ context.Context, token string, now time.Time) (*models.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	row, ok := m.rows[token]
	if !ok || !row.Valid(now) {
		return nil, sql.ErrNoRows
	}
	copied := *row
	return &copied, nil
}

func (m *memTokenStore) Revoke(_ context.Context, token string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	row, ok := m.rows[token]
	if !ok || row.Revoked {
		return false, nil
	}
	row.Revoked = true
	row.RevokedAt = &now
	return true, nil
}

func (m *memTokenStore) RevokeAllByUser(_ context.Context, userID string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for _, row := range m.rows {
		if row.UserID == userID && !row.Revoked {
			row.Revoked = true
			row.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (m *memTokenStore) Rotate(_ context.Context, old string, next *models.Token, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.rotateErr != nil {
		return m.rotateErr
	}
	row, ok := m.rows[old]
	if !ok || row.Revoked || !now.Before(row.ExpiresAt) {
		return repository.ErrTokenNotActive
	}
	if m.duplicates > 0 {
		m.duplicates--
		return repository.ErrDuplicateToken
	}
	if _, exists := m.rows[next.Token]; exists {
		return repository.ErrDuplicateToken
	}
	row.Revoked = true
	row.RevokedAt = &now
	inserted := *next
	m.rows[next.Token] = &inserted
	return nil
}

func (m *memTokenStore) ListActiveByUser(_ context.Context, userID string, now time.Time) ([]models.SessionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var sessions []models.SessionInfo
	for _, row := range m.rows {
		if row.UserID == userID && row.Valid(now) {
			sessions = append(sessions, models.SessionInfo{ID: row.ID, UserAgent: row.UserAgent, IPAddress: row.IPAddress, CreatedAt: row.CreatedAt, ExpiresAt: row.ExpiresAt})
		}
	}
	return sessions, nil
}

func (m *memTokenStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for key, row := range m.rows {
		if row.ExpiresAt.Before(now) {
			delete(m.rows, key)
			n++
		}
	}
	return n, nil
}

func (m *memTokenStore) get(token string) *models.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[token]
}

func (m *memTokenStore) countFor(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, row := range m.rows {
		if row.UserID == userID {
			n++
		}
	}
	return n
}

func (m *memTokenStore) countValid(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, row := range m.rows {
		if row.Valid(now) {
			n++
		}
	}
	return n
}

// memUserStore keeps principals and, like UserRepository.Purge, removes their
// tokens from the linked stores.
type memUserStore struct {
	mu        sync.Mutex
	users     map[string]*models.User
	tokens    []*memTokenStore
	err       error
	purgeErrs map[string]error
}

func newMemUserStore(tokens ...*memTokenStore) *memUserStore {
	return &memUserStore{users: map[string]*models.User{}, tokens: tokens, purgeErrs: map[string]error{}}
}

func (m *memUserStore) add(user *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

func (m *memUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, user := range m.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memUserStore) FindByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (m *memUserStore) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		user.LastLogin = &ts
	}
	return nil
}

func (m *memUserStore) Deactivate(_ context.Context, id string, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if user, ok := m.users[id]; ok {
		user.Active = false
		if user.DeactivatedAt == nil {
			user.DeactivatedAt = &ts
		}
	}
	return nil
}

func (m *memUserStore) FindDeactivatedBefore(_ context.Context, cutoff time.Time) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var users []models.User
	for _, user := range m.users {
		if !user.Active && user.DeactivatedAt != nil && user.DeactivatedAt.Before(cutoff) {
			users = append(users, *user)
		}
	}
	return users, nil
}

func (m *memUserStore) Purge(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.purgeErrs[id]; err != nil {
		return err
	}
	for _, store := range m.tokens {
		store.mu.Lock()
		for key, row := range store.rows {
			if row.UserID == id {
				delete(store.rows, key)
			}
		}
		store.mu.Unlock()
	}
	delete(m.users, id)
	return nil
}

type fakeAudit struct {
	mu   sync.Mutex
	logs []models.AuditLog
}

func (f *fakeAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, *log)
	return nil
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.logs))
	for _, log := range f.logs {
		out = append(out, log.Action)
	}
	return out
}

func mustHash(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}

type sessionFixture struct {
	clock   *fakeClock
	users   *memUserStore
	access  *memTokenStore
	refresh *memTokenStore
	audit   *fakeAudit
	issuer  *TokenIssuer
	svc     *SessionService
}

func newSessionFixture() *sessionFixture {
	clock := newFakeClock(t0)
	access := newMemTokenStore()
	refresh := newMemTokenStore()
	users := newMemUserStore(access, refresh)
	audit := &fakeAudit{}

	users.add(&models.User{ID: "u1", Email: "reader@example.com", PasswordHash: mustHash("s3cret!"), FullName: "Reader", Active: true})
	users.add(&models.User{ID: "u2", Email: "retired@example.com", PasswordHash: mustHash("s3cret!"), FullName: "Retired", Active: false})

	issuer := NewTokenIssuer(access, refresh, TokenConfig{Secret: "test-secret", Issuer: "docspace", AccessTTL: 30 * time.Minute, RefreshTTL: 2 * time.Hour}, nil)
	issuer.now = clock.Now

	svc := NewSessionService(users, access, refresh, issuer, NewPasswordVerifier(users), audit, nil, NewMetricsService(), nil, SessionConfig{RotationWindow: 30 * time.Minute, StoreTimeout: time.Second})
	svc.now = clock.Now

	return &sessionFixture{clock: clock, users: users, access: access, refresh: refresh, audit: audit, issuer: issuer, svc: svc}
}

func (f *sessionFixture) login() *models.IssuedPair {
	_, pair, err := f.svc.Login(context.Background(), models.LoginRequest{Email: "reader@example.com", Password: "s3cret!"})
	if err != nil {
		panic(err)
	}
	return pair
}

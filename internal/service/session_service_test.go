package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/docspace-session-api/internal/models"
	appErrors "github.com/noah-isme/docspace-session-api/pkg/errors"
)

func requireAppError(t *testing.T, err error, target *appErrors.Error) {
	t.Helper()
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, target.Code, appErr.Code)
	assert.Equal(t, target.Status, appErr.Status)
}

func TestLoginSuccess(t *testing.T) {
	f := newSessionFixture()

	user, pair, err := f.svc.Login(context.Background(), models.LoginRequest{Email: "reader@example.com", Password: "s3cret!", IP: "10.1.1.1", UserAgent: "ua"})
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, t0.Add(30*time.Minute), pair.AccessExpiresAt)
	assert.Equal(t, t0.Add(2*time.Hour), pair.RefreshExpiresAt)
	assert.Equal(t, 1, f.access.countFor("u1"))
	assert.Equal(t, 1, f.refresh.countFor("u1"))
	assert.Equal(t, []string{models.AuditActionLogin}, f.audit.actions())

	stored, _ := f.users.FindByID(context.Background(), "u1")
	require.NotNil(t, stored.LastLogin)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.svc.metrics.logins.WithLabelValues(outcomeSuccess)))
}

func TestLoginRejections(t *testing.T) {
	cases := []struct {
		name   string
		req    models.LoginRequest
		target *appErrors.Error
	}{
		{"wrong password", models.LoginRequest{Email: "reader@example.com", Password: "nope"}, appErrors.ErrInvalidCredentials},
		{"unknown email", models.LoginRequest{Email: "ghost@example.com", Password: "s3cret!"}, appErrors.ErrInvalidCredentials},
		{"inactive account", models.LoginRequest{Email: "retired@example.com", Password: "s3cret!"}, appErrors.ErrInactiveAccount},
		{"malformed payload", models.LoginRequest{Email: "not-an-email"}, appErrors.ErrValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newSessionFixture()
			_, pair, err := f.svc.Login(context.Background(), tc.req)
			requireAppError(t, err, tc.target)
			assert.Nil(t, pair)
			assert.Equal(t, 0, f.access.countValid(t0))
			assert.Equal(t, 0, f.refresh.countValid(t0))
			assert.Empty(t, f.audit.actions())
		})
	}
}

func TestRejectLoginCountsAttempt(t *testing.T) {
	f := newSessionFixture()

	err := f.svc.RejectLogin(errors.New("unexpected EOF"))
	requireAppError(t, err, appErrors.ErrValidation)

	_, _, err = f.svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: "x"})
	requireAppError(t, err, appErrors.ErrValidation)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.svc.metrics.logins.WithLabelValues(outcomeRejected)))
}

func TestLoginStoreFailureIsUnavailable(t *testing.T) {
	f := newSessionFixture()
	f.refresh.err = errors.New("dial tcp: i/o timeout")

	_, _, err := f.svc.Login(context.Background(), models.LoginRequest{Email: "reader@example.com", Password: "s3cret!"})
	requireAppError(t, err, appErrors.ErrUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, appErrors.FromError(err).Status)
	assert.Equal(t, 0, f.access.countValid(t0))
}

func TestValidateAccess(t *testing.T) {
	f := newSessionFixture()
	pair := f.login()

	principal, err := f.svc.ValidateAccess(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", principal.User.ID)
	assert.Equal(t, pair.AccessExpiresAt, principal.ExpiresAt)

	t.Run("refresh token is not an access token", func(t *testing.T) {
		_, err := f.svc.ValidateAccess(context.Background(), pair.RefreshToken)
		requireAppError(t, err, appErrors.ErrTokenInvalid)
	})

	t.Run("revoked", func(t *testing.T) {
		other := f.login()
		_, _ = f.access.Revoke(context.Background(), other.AccessToken, t0)
		_, err := f.svc.ValidateAccess(context.Background(), other.AccessToken)
		requireAppError(t, err, appErrors.ErrTokenInvalid)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := f.svc.ValidateAccess(context.Background(), "")
		requireAppError(t, err, appErrors.ErrTokenInvalid)
	})

	t.Run("store down", func(t *testing.T) {
		f.access.err = errors.New("connection reset")
		defer func() { f.access.err = nil }()
		_, err := f.svc.ValidateAccess(context.Background(), pair.AccessToken)
		requireAppError(t, err, appErrors.ErrUnavailable)
	})
}

func TestLoginThenExpiryScenario(t *testing.T) {
	f := newSessionFixture()
	pair := f.login()
	assert.Equal(t, t0.Add(30*time.Minute), pair.AccessExpiresAt)
	assert.Equal(t, t0.Add(2*time.Hour), pair.RefreshExpiresAt)

	f.clock.Advance(31 * time.Minute)

	_, err := f.svc.ValidateAccess(context.Background(), pair.AccessToken)
	requireAppError(t, err, appErrors.ErrTokenInvalid)

	result, err := f.svc.Reissue(context.Background(), pair.RefreshToken, models.ClientMeta{})
	require.NoError(t, err)
	assert.Equal(t, t0.Add(61*time.Minute), result.AccessExpiresAt)
	assert.False(t, result.RefreshRotated)
	assert.Equal(t, pair.RefreshToken, result.RefreshToken)

	principal, err := f.svc.ValidateAccess(context.Background(), result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", principal.User.ID)
}

func TestReissueOutsideWindowReusesRefresh(t *testing.T) {
	f := newSessionFixture()
	pair := f.login()

	result, err := f.svc.Reissue(context.Background(), pair.RefreshToken, models.ClientMeta{})
	require.NoError(t, err)
	assert.False(t, result.RefreshRotated)
	assert.Equal(t, pair.RefreshToken, result.RefreshToken)
	assert.Equal(t, pair.RefreshExpiresAt, result.RefreshExpiresAt)
	assert.NotEqual(t, pair.AccessToken, result.AccessToken)
	assert.Equal(t, 1, f.refresh.countFor("u1"))
	assert.Contains(t, f.audit.actions(), models.AuditActionTokenReissue)
}

func TestConcurrentReissuesDoNotDuplicateRefresh(t *testing.T) {
	f := newSessionFixture()
	pair := f.login()

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Reissue(context.Background(), pair.RefreshToken, models.ClientMeta{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, f.refresh.countFor("u1"))
	assert.Equal(t, n+1, f.access.countFor("u1"))
	assert.False(t, f.refresh.get(pair.RefreshToken).Revoked)
}

func TestReissueNearExpiryRotates(t *testing.T) {
	f := newSessionFixture()
	pair := f.login()

	f.clock.Advance(90 * time.Minute)

	result, err := f.svc.Reissue(context.Background(), pair.RefreshToken, models.ClientMeta{})
	require.NoError(t, err)
	assert.True(t, result.RefreshRotated)
	assert.NotEqual(t, pair.RefreshToken, result.RefreshToken)
	assert.Equal(t, t0.Add(90*time.Minute+2*time.Hour), result.RefreshExpiresAt)

	assert.True(t, f.refresh.get(pair.RefreshToken).Revoked)
	assert.Equal(t, 2, f.refresh.countFor("u1"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.svc.metrics.rotations))
}

func TestReissueRotatedTokenTwiceIsInvalid(t *testing.T) {
	f := newSessionFixture()
	pair := f.login()
	f.clock.Advance(100 * time.Minute)

	_, err := f.svc.Reissue(context.Background(), pair.RefreshToken, models.ClientMeta{})
	require.NoError(t, err)

	_, err = f.svc.Reissue(context.Background(), pair.RefreshToken, models.ClientMeta{})
	requireAppError(t, err, appErrors.ErrTokenInvalid)
	assert.Equal(t, 2, f.refresh.countFor("u1"))
}

func TestConcurrentRotationHasSingleWinner(t *testing.T) {
	f := newSessionFixture()
	pair := f.login()
	f.clock.Advance(100 * time.Minute)

	const n = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.svc.Reissue(context.Background(), pair.RefreshToken, models.ClientMeta{})
			if err != nil {
				assert.Equal(t, appErrors.ErrTokenInvalid.Code, appErrors.FromError(err).Code)
				return
			}
			assert.True(t, result.RefreshRotated)
			mu.Lock()
			winners++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, 2, f.refresh.countFor("u1"))
	assert.Equal(t, 1, f.access.countValid(f.clock.Now()), "losers must not keep a live access row")
}

func TestReissueAccessFailureInWindowKeepsRefresh(t *testing.T) {
	f := newSessionFixture()
	pair := f.login()
	f.clock.Advance(100 * time.Minute)

	f.access.err = errors.New("connection reset")
	_, err := f.svc.Reissue(context.Background(), pair.RefreshToken, models.ClientMeta{})
	requireAppError(t, err, appErrors.ErrUnavailable)
	assert.False(t, f.refresh.get(pair.RefreshToken).Revoked)
	assert.Equal(t, 1, f.refresh.countFor("u1"))

	f.access.err = nil
	result, err := f.svc.Reissue(context.Background(), pair.RefreshToken, models.ClientMeta{})
	require.NoError(t, err)
	assert.True(t, result.RefreshRotated)
	assert.Equal(t, 2, f.refresh.countFor("u1"))
}

func TestReissueRotationFailureDiscardsAccess(t *testing.T) {
	f := newSessionFixture()
	pair := f.login()
	f.clock.Advance(100 * time.Minute)

	f.refresh.rotateErr = errors.New("deadlock detected")
	_, err := f.svc.Reissue(context.Background(), pair.RefreshToken, models.ClientMeta{})
	requireAppError(t, err, appErrors.ErrUnavailable)
	assert.False(t, f.refresh.get(pair.RefreshToken).Revoked)
	assert.Equal(t, 0, f.access.countValid(f.clock.Now()))

	f.refresh.rotateErr = nil
	result, err := f.svc.Reissue(context.Background(), pair.RefreshToken, models.ClientMeta{})
	require.NoError(t, err)
	assert.True(t, result.RefreshRotated)
	assert.Equal(t, 1, f.access.countValid(f.clock.Now()))
}

func TestReissueRejections(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		f := newSessionFixture()
		_, err := f.svc.Reissue(context.Background(), "", models.ClientMeta{})
		requireAppError(t, err, appErrors.ErrTokenInvalid)
	})

	t.Run("unknown", func(t *testing.T) {
		f := newSessionFixture()
		_, err := f.svc.Reissue(context.Background(), "garbage", models.ClientMeta{})
		requireAppError(t, err, appErrors.ErrTokenInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		f := newSessionFixture()
		pair := f.login()
		f.clock.Advance(2 * time.Hour)
		_, err := f.svc.Reissue(context.Background(), pair.RefreshToken, models.ClientMeta{})
		requireAppError(t, err, appErrors.ErrTokenInvalid)
	})

	t.Run("owner deactivated", func(t *testing.T) {
		f := newSessionFixture()
		pair := f.login()
		require.NoError(t, f.users.Deactivate(context.Background(), "u1", t0))
		_, err := f.svc.Reissue(context.Background(), pair.RefreshToken, models.ClientMeta{})
		requireAppError(t, err, appErrors.ErrTokenInvalid)
	})

	t.Run("store down", func(t *testing.T) {
		f := newSessionFixture()
		pair := f.login()
		f.refresh.err = errors.New("too many connections")
		_, err := f.svc.Reissue(context.Background(), pair.RefreshToken, models.ClientMeta{})
		requireAppError(t, err, appErrors.ErrUnavailable)
	})
}

func TestListSessions(t *testing.T) {
	f := newSessionFixture()
	f.login()
	f.login()

	sessions, err := f.svc.ListSessions(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

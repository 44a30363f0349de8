package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/docspace-session-api/internal/models"
)

const retention = 90 * 24 * time.Hour

func newTestCleanup(f *sessionFixture) *CleanupService {
	svc := NewCleanupService(f.users, f.access, f.refresh, retention, f.svc.metrics, nil)
	svc.now = f.clock.Now
	return svc
}

func retire(f *sessionFixture, id string, at time.Time) {
	f.users.add(&models.User{ID: id, Email: id + "@example.com", Active: false, DeactivatedAt: &at})
	_, _ = f.issuer.Issue(context.Background(), id, models.ClientMeta{})
}

func TestCleanupPurgesRetiredPrincipals(t *testing.T) {
	f := newSessionFixture()
	retire(f, "old", t0.Add(-retention-time.Hour))
	retire(f, "recent", t0.Add(-time.Hour))
	svc := newTestCleanup(f)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.PrincipalsPurged)
	assert.Zero(t, report.PrincipalFailures)
	assert.True(t, report.ExpiredSweepSucceeded)

	_, err = f.users.FindByID(context.Background(), "old")
	assert.Error(t, err)
	assert.Zero(t, f.refresh.countFor("old"))
	assert.Zero(t, f.access.countFor("old"))

	_, err = f.users.FindByID(context.Background(), "recent")
	assert.NoError(t, err)
	assert.Equal(t, 1, f.refresh.countFor("recent"))
}

func TestCleanupDeletesExpiredTokensOfActivePrincipals(t *testing.T) {
	f := newSessionFixture()
	f.login()
	f.clock.Advance(3 * time.Hour)
	fresh := f.login()
	svc := newTestCleanup(f)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.AccessTokensDeleted)
	assert.Equal(t, int64(1), report.RefreshTokensDeleted)
	assert.NotNil(t, f.refresh.get(fresh.RefreshToken))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.svc.metrics.cleanupDeleted.WithLabelValues("refresh_token")))
}

func TestCleanupContinuesPastFailures(t *testing.T) {
	f := newSessionFixture()
	retire(f, "stuck", t0.Add(-retention-time.Hour))
	retire(f, "gone", t0.Add(-retention-2*time.Hour))
	f.users.purgeErrs["stuck"] = errors.New("deadlock detected")
	f.clock.Advance(3 * time.Hour)
	svc := newTestCleanup(f)

	report, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, report.PrincipalsPurged)
	assert.Equal(t, 1, report.PrincipalFailures)
	assert.True(t, report.ExpiredSweepSucceeded)
	assert.Equal(t, int64(1), report.RefreshTokensDeleted, "tokens of the principal that failed to purge still expire")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.svc.metrics.cleanupFailures))
}

func TestCleanupReportsExpiredSweepFailure(t *testing.T) {
	f := newSessionFixture()
	f.access.err = errors.New("statement timeout")
	svc := newTestCleanup(f)

	report, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.False(t, report.ExpiredSweepSucceeded)
}

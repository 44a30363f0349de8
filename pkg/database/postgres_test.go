package database

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateWrapsFailure(t *testing.T) {
	original := gooseUp
	t.Cleanup(func() { gooseUp = original })

	calls := 0
	gooseUp = func(ctx context.Context, db *sqlx.DB) error {
		calls++
		return errors.New("boom")
	}

	err := Migrate(context.Background(), nil, fstest.MapFS{"00001_init.sql": {Data: []byte("-- +goose Up\n")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply migrations")
	assert.Equal(t, 1, calls)
}

func TestMigrateSucceeds(t *testing.T) {
	original := gooseUp
	t.Cleanup(func() { gooseUp = original })
	gooseUp = func(ctx context.Context, db *sqlx.DB) error { return nil }

	require.NoError(t, Migrate(context.Background(), nil, fstest.MapFS{}))
}

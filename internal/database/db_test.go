package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, name string) *DB {
	t.Helper()

	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: ProfileStandard,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestNewAndMigrate(t *testing.T) {
	db := newTestDB(t, "results")
	require.NoError(t, db.Migrate())

	// Schema applied: runs table accepts inserts
	_, err := db.Exec(
		`INSERT INTO runs (id, name, config, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		"run-1", "default", "{}", "running", 1700000000,
	)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count))
	assert.Equal(t, 1, count)

	// Migrate is idempotent
	require.NoError(t, db.Migrate())
}

func TestMigrateUnknownNameIsNoop(t *testing.T) {
	db := newTestDB(t, "scratch")
	require.NoError(t, db.Migrate())
}

func TestWithTransactionCommit(t *testing.T) {
	db := newTestDB(t, "results")
	require.NoError(t, db.Migrate())

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO runs (id, name, config, status, started_at) VALUES (?, ?, ?, ?, ?)`,
			"run-1", "default", "{}", "running", 1700000000,
		)
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestWithTransactionRollback(t *testing.T) {
	db := newTestDB(t, "results")
	require.NoError(t, db.Migrate())

	wantErr := errors.New("boom")
	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, execErr := tx.Exec(
			`INSERT INTO runs (id, name, config, status, started_at) VALUES (?, ?, ?, ?, ?)`,
			"run-1", "default", "{}", "running", 1700000000,
		)
		require.NoError(t, execErr)
		return wantErr
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count))
	assert.Equal(t, 0, count, "insert must be rolled back")
}

func TestHealthCheckAndStats(t *testing.T) {
	db := newTestDB(t, "results")
	require.NoError(t, db.Migrate())

	require.NoError(t, db.HealthCheck(context.Background()))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageCount, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))
}

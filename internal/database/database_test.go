package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"slotbook/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "db_test_dir")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	dbPath := filepath.Join(tempDir, "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	assert.Equal(t, config.DriverSQLite, db.Driver())
}

func TestNewDB_InMemory(t *testing.T) {
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.UpsertCompany(context.Background(), testCompany("c1")))
	_, err = db.GetCompany(context.Background(), "c1")
	assert.NoError(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.migrate(context.Background()))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	logger := zerolog.Nop()
	_, err := Open(config.DatabaseConfig{Driver: "mysql"}, &logger)
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestDB_ErrorPaths(t *testing.T) {
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "closed.db"), &logger)
	require.NoError(t, err)
	db.Close()

	ctx := context.Background()

	_, err = db.GetReservation(ctx, "r1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = db.ListConfirmedReservations(ctx, "c1", "2024-05-06")
	assert.Error(t, err)

	err = db.InsertConfirmedReservation(ctx, testReservation("c1", "2024-05-06", "10:00"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSlotTaken)
}

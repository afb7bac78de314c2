package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	assert.NoError(t, db.Ping())
}

func TestOpenUnsupportedDriver(t *testing.T) {
	db, err := Open("postgres", filepath.Join(t.TempDir(), "test.db"))
	assert.Error(t, err)
	assert.Nil(t, db)
}

func TestOpenInvalidPath(t *testing.T) {
	db, err := Open("sqlite", "/invalid/path/test.db")
	assert.Error(t, err)
	assert.Nil(t, db)
}

func TestMigrate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"apps", "app_versions", "schema_version"} {
		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s", table)
	}

	var version int
	require.NoError(t, db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version))
	assert.Equal(t, schemaVersion, version)
}

func TestMigrateIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := Open("sqlite", dbPath)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count))
	assert.Equal(t, 1, count)
}

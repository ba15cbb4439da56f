package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate(t *testing.T) {
	ctx := context.Background()

	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Migrate(ctx))

	var version int
	require.NoError(t, store.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, ExpectedSchemaVersion, version)

	// Re-running against a current database is a no-op.
	require.NoError(t, store.Migrate(ctx))

	for _, table := range []string{"rules", "sync_sessions", "auth_session", "sync_transactions"} {
		var name string
		err := store.db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		assert.NoError(t, err, "table %s should exist", table)
	}
}

func TestMigrationVersionsAreOrdered(t *testing.T) {
	last := 0
	for _, m := range migrations {
		assert.Greater(t, m.Version, last, "migration versions must strictly increase")
		assert.NotEmpty(t, m.Description)
		last = m.Version
	}
	assert.Equal(t, ExpectedSchemaVersion, last)
}

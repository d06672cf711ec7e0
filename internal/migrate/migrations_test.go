package migrate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docketline/internal/db"
	"docketline/internal/migrate"
)

func TestMigrateRecordsAppliedFiles(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	applied, err := migrate.List(ctx, conn)
	require.NoError(t, err)
	assert.Empty(t, applied)

	before := time.Now().UTC().Add(-time.Second)
	version, err := migrate.Migrate(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	applied, err = migrate.List(ctx, conn)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, 1, applied[0].Version)
	assert.Equal(t, "0001_init.sql", applied[0].Name)
	assert.True(t, applied[0].AppliedAt.After(before))

	version, err = migrate.Migrate(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	applied, err = migrate.List(ctx, conn)
	require.NoError(t, err)
	assert.Len(t, applied, 1, "re-running applies nothing")

	var tables int
	require.NoError(t, conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('appointments','mediations','tasks','events')`).Scan(&tables))
	assert.Equal(t, 4, tables)
}

package migrations_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/daytask/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/migrations"
)

func TestRun_SQLite(t *testing.T) {
	ctx := context.Background()
	conn, err := database.NewConnection(ctx, database.SQLiteConfig(filepath.Join(t.TempDir(), "m.db")))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, migrations.Run(ctx, conn))
	// second run is a no-op
	require.NoError(t, migrations.Run(ctx, conn))

	versions, err := migrations.Versions(database.DriverSQLite)
	require.NoError(t, err)
	require.NotEmpty(t, versions)

	var n int
	require.NoError(t, conn.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, len(versions), n)

	for _, table := range []string{"tasks", "users", "sessions", "password_resets", "local_cache", "outbox"} {
		var name string
		err := conn.QueryRow(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestVersions_MatchAcrossDrivers(t *testing.T) {
	lite, err := migrations.Versions(database.DriverSQLite)
	require.NoError(t, err)
	pg, err := migrations.Versions(database.DriverPostgres)
	require.NoError(t, err)

	assert.Equal(t, lite, pg)
}

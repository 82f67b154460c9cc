package migrations_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth/bunadapter"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/db/bunx"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/migrations"
)

func sqliteTables(t *testing.T, db *bun.DB) []string {
	t.Helper()
	var names []string
	err := db.NewRaw(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'bun_%' AND name NOT LIKE 'sqlite_%' ORDER BY name`).
		Scan(context.Background(), &names)
	require.NoError(t, err)
	return names
}

func TestMigrations_UpAndDown(t *testing.T) {
	db, err := bunx.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })

	assert.True(t, migrations.IsSQLite(db))
	assert.False(t, migrations.IsPostgreSQL(db))

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))

	group, err := migrator.Migrate(ctx)
	require.NoError(t, err)
	assert.NotZero(t, group.ID)
	assert.Len(t, group.Migrations, 3)

	assert.Equal(t, []string{"casbin_rules", "credentials", "principals"}, sqliteTables(t, db))

	var rules []bunadapter.CasbinRule
	require.NoError(t, db.NewSelect().Model(&rules).Scan(ctx))
	assert.Len(t, rules, len(migrations.DefaultRoutePolicies))

	// Re-running is a no-op.
	group, err = migrator.Migrate(ctx)
	require.NoError(t, err)
	assert.Zero(t, group.ID)

	_, err = migrator.Rollback(ctx)
	require.NoError(t, err)
	assert.Empty(t, sqliteTables(t, db))
}

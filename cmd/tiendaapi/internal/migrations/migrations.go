package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the registry of schema migrations, populated by init functions.
var Migrations = migrate.NewMigrations()

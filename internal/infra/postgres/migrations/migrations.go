package migrations

import "github.com/uptrace/bun/migrate"

// Migrations collects every schema change; bun derives versions from file names.
var Migrations = migrate.NewMigrations()

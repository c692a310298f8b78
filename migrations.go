package relaybus

import "embed"

// MigrationFiles contains per-dialect SQL migration files embedded in the
// binary, one directory per database driver: migrations/mysql,
// migrations/postgres and migrations/sqlite3. Users can access these
// files programmatically to apply migrations using their preferred
// migration tool (goose, golang-migrate, atlas, etc.)
//
// Example with goose:
//
//	import (
//	    "github.com/pressly/goose/v3"
//	    relaybus "github.com/coregx/relaybus"
//	)
//
//	goose.SetBaseFS(relaybus.MigrationFiles)
//	if err := goose.SetDialect("mysql"); err != nil {
//	    log.Fatal(err)
//	}
//	if err := goose.Up(db, relaybus.MigrationsDir("mysql")); err != nil {
//	    log.Fatal(err)
//	}
//
//go:embed migrations/*/*.sql
var MigrationFiles embed.FS

// MigrationsDir returns the embedded migrations directory for a database
// driver name ("mysql", "postgres" or "sqlite3").
func MigrationsDir(driverName string) string {
	return "migrations/" + driverName
}

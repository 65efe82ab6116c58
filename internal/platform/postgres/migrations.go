package postgres

import "embed"

// Migrations holds the embedded SQL migration files. Embedding keeps the
// server binary self-contained: the migration runner does not depend on
// locating a migrations directory relative to the working directory.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the path of the migration files within Migrations.
const MigrationsDir = "migrations"

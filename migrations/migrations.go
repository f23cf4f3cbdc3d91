// Package migrations embeds the schema for each supported database driver.
package migrations

import "embed"

// SqliteMigrations holds sqlite/NNN_name.sql, applied in filename order.
//
//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

// PostgresMigrations holds postgres/NNN_name.sql, applied in filename order.
//
//go:embed postgres/*.sql
var PostgresMigrations embed.FS

// Package migration applies versioned SQL files to a SQLite database.
//
// Migration files are read from an fs.FS (usually an embed.FS) and follow the
// naming convention {version}_{description}.sql, for example
// "001_reference_data.sql". Applied versions are tracked in the
// schema_migrations table so every file runs exactly once, inside its own
// transaction.
package migration

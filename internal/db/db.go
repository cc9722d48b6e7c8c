// Package db stores driving scenes and their perturbation runs in SQLite.
// Scene frames are kept as compact binary blobs next to queryable metadata,
// and the schema is managed through embedded migrations.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB

	// path is the filesystem location of the database, kept for admin
	// tooling labels.
	path string
}

// OpenDB opens the SQLite database at path and applies the connection
// pragmas, without touching the schema. Use NewDB to open and migrate in
// one step.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serialises writers; a single connection avoids SQLITE_BUSY
	// churn between the API handlers and background work.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{DB: sqlDB, path: path}
	if err := db.applyPragmas(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// NewDB opens the database and applies any pending migrations from the
// embedded migration files.
func NewDB(path string) (*DB, error) {
	return NewDBWithMigrationCheck(path, true)
}

// NewDBWithMigrationCheck opens the database. With autoMigrate set, pending
// migrations are applied immediately; otherwise the schema version is only
// checked and an out-of-date database is reported as an error so the
// operator can run "trajlab migrate up" deliberately.
func NewDBWithMigrationCheck(path string, autoMigrate bool) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	fsys, err := getMigrationsFS()
	if err != nil {
		db.Close()
		return nil, err
	}

	if autoMigrate {
		if err := db.MigrateUp(fsys); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	}

	behind, err := db.CheckAndPromptMigrations(fsys)
	if err != nil {
		db.Close()
		return nil, err
	}
	if behind {
		db.Close()
		return nil, fmt.Errorf("database schema is out of date")
	}
	return db, nil
}

// applyPragmas sets the connection pragmas every trajlab database runs with.
func (db *DB) applyPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return nil
}

// Path returns the filesystem location this database was opened from.
func (db *DB) Path() string {
	return db.path
}

// Package db is the sqlite persistence layer: synced activities and health
// metrics, analyzed dives with their labels, and per-user baseline state.
// Schema lifecycle is handled by embedded golang-migrate migrations.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the sqlite database at path. The schema
// is not touched; run MigrateUp for that.
func Open(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	// modernc sqlite is single-writer; serialize access through one
	// connection and wait out writer contention instead of failing.
	sqldb.SetMaxOpenConns(1)
	if _, err := sqldb.Exec(`
		PRAGMA busy_timeout = 5000;
		PRAGMA journal_mode = WAL;
		PRAGMA foreign_keys = ON;
	`); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	return &DB{sqldb}, nil
}

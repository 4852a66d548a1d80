package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// pragmas run on every open. The poll loop is the only writer; history
// reads run beside it, hence WAL.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// migration upgrades a cycle log written by an older build. migrations[i]
// takes user_version i to i+1.
type migration struct {
	name string
	stmt string
}

var migrations = []migration{
	{
		name: "changes identity index",
		stmt: `CREATE INDEX IF NOT EXISTS idx_changes_identity ON changes(identity, cycle_seq)`,
	},
}

// currentSchemaVersion is the user_version of a fully migrated cycle log.
var currentSchemaVersion = len(migrations)

// Store is the cycle log: every poll cycle, the changes it committed and
// the latest committed board.
type Store struct {
	db *sql.DB
}

// Open opens the cycle log at path, creating it when missing, and brings
// its schema up to date. Opening an existing log again is harmless.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cycle log %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open cycle log %s: %w", path, err)
	}

	// One connection: SQLite serializes writers anyway and this keeps
	// SQLITE_BUSY out of the poll loop.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := prepare(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare cycle log %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the database. A zero Store closes cleanly.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func prepare(db *sql.DB) error {
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return migrate(db)
}

// migrate runs the migrations past the stored user_version, in order.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		m := migrations[i]
		if _, err := db.Exec(m.stmt); err != nil {
			return fmt.Errorf("migration %d (%s): %w", i+1, m.name, err)
		}
	}

	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("write user_version: %w", err)
		}
	}
	return nil
}

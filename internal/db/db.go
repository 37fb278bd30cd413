package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Init initializes the SQLite registry at baseDir/pyforge.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.pyforge.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(baseDir, 0700)

	// Create projects subdirectory
	projectsDir := filepath.Join(baseDir, "projects")
	if err := os.MkdirAll(projectsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create projects directory: %w", err)
	}
	_ = os.Chmod(projectsDir, 0700)

	// Open database with pragmas in connection string (applies to all connections)
	dbPath := filepath.Join(baseDir, "pyforge.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify WAL mode is active
	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations (this creates the file if it doesn't exist)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions after file exists (best-effort)
	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS projects (
		  id           TEXT PRIMARY KEY,
		  name         TEXT NOT NULL UNIQUE,
		  root_path    TEXT NOT NULL,
		  entry_script TEXT NOT NULL,
		  deps_json    TEXT,
		  env_status   TEXT NOT NULL,
		  created_at   INTEGER NOT NULL,
		  updated_at   INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS revisions (
		  id         TEXT PRIMARY KEY,
		  project_id TEXT NOT NULL REFERENCES projects(id),
		  seq        INTEGER NOT NULL,
		  source     TEXT NOT NULL,
		  origin     TEXT NOT NULL,
		  note       TEXT,
		  accepted   INTEGER NOT NULL DEFAULT 0,
		  created_at INTEGER NOT NULL,
		  UNIQUE(project_id, seq)
		);

		CREATE INDEX IF NOT EXISTS idx_revisions_project_seq
		ON revisions(project_id, seq DESC);

		CREATE INDEX IF NOT EXISTS idx_projects_updated
		ON projects(updated_at DESC);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// FileName is the archive database inside the data directory.
const FileName = "diagnoses.db"

// Open creates dataDir if needed and opens the archive inside it.
func Open(dataDir string) (*sql.DB, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data dir is not set")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return OpenDB(filepath.Join(dataDir, FileName))
}

func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS diagnoses (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id        TEXT NOT NULL UNIQUE,
		created_at    INTEGER NOT NULL,
		kind          TEXT NOT NULL,
		passed        INTEGER NOT NULL DEFAULT 0,
		failed        INTEGER NOT NULL DEFAULT 0,
		indeterminate INTEGER NOT NULL DEFAULT 0,
		payload       TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_diagnoses_created_at ON diagnoses(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

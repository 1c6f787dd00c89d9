// Package db opens the controller's SQLite database and applies its schema.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

var pragmas = []string{
	"PRAGMA journal_mode = WAL;",
	"PRAGMA foreign_keys = ON;",
	"PRAGMA busy_timeout = 5000;",
}

// InitDB opens (creating if needed) the SQLite file at path and ensures the schema.
func InitDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir %q: %w", dir, err)
		}
	}

	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %s: %w", p, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

const schemaSafetyEvents = `
CREATE TABLE IF NOT EXISTS safety_events (
    id TEXT PRIMARY KEY,
    occurred_at TIMESTAMP NOT NULL,
    type TEXT NOT NULL,
    pump_id TEXT,
    tank_id TEXT,
    message TEXT NOT NULL,
    meta TEXT
);
`

const indexSafetyEventsTime = `CREATE INDEX IF NOT EXISTS idx_safety_events_time ON safety_events (occurred_at);`

const schemaPumpStats = `
CREATE TABLE IF NOT EXISTS pump_stats (
    pump_id TEXT PRIMARY KEY,
    pump_type TEXT NOT NULL,
    total_runtime_s INTEGER NOT NULL DEFAULT 0,
    maintenance_hours INTEGER NOT NULL DEFAULT 0,
    oscillation_count INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaLevelReadings = `
CREATE TABLE IF NOT EXISTS level_readings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tank_id TEXT NOT NULL,
    level_cm REAL NOT NULL,
    level_percent REAL NOT NULL,
    sensor_type TEXT NOT NULL,
    is_valid BOOLEAN NOT NULL,
    error TEXT,
    recorded_at TIMESTAMP NOT NULL
);
`

const indexLevelReadingsTank = `CREATE INDEX IF NOT EXISTS idx_level_readings_tank ON level_readings (tank_id, recorded_at);`

const schemaOperators = `
CREATE TABLE IF NOT EXISTS operators (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL
);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range []string{
		schemaSafetyEvents,
		indexSafetyEventsTime,
		schemaPumpStats,
		schemaLevelReadings,
		indexLevelReadingsTank,
		schemaOperators,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}

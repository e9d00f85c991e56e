package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

// InitDB opens/creates a SQLite DB file and ensures tables exist.
func InitDB(path string) (*sql.DB, error) {
	conn, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// SQLite tolerates only one writer; keep the pool tiny.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return conn, nil
}

const schemaDevices = `
CREATE TABLE IF NOT EXISTS devices (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    token TEXT UNIQUE NOT NULL,
    name TEXT NOT NULL,
    log_threshold REAL NOT NULL DEFAULT 5.0,
    relay_threshold REAL NOT NULL DEFAULT 50.0,
    calibration_factor REAL NOT NULL DEFAULT 2280.0,
    is_ready BOOLEAN NOT NULL DEFAULT 1,
    last_logged_weight REAL NOT NULL DEFAULT 0,
    pending_command TEXT,
    created_at TIMESTAMP NOT NULL
);
`

const schemaLoadcellReadings = `
CREATE TABLE IF NOT EXISTS loadcell_readings (
    id TEXT PRIMARY KEY,
    device_id INTEGER NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
    weight REAL NOT NULL,
    is_relay_on BOOLEAN NOT NULL,
    recorded_at TIMESTAMP NOT NULL
);
`

const schemaPackingLogs = `
CREATE TABLE IF NOT EXISTS packing_logs (
    id TEXT PRIMARY KEY,
    device_id INTEGER NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
    weight REAL NOT NULL,
    farmer_id INTEGER,
    created_at TIMESTAMP NOT NULL
);
`

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL
);
`

const indexReadingsByDevice = `
CREATE INDEX IF NOT EXISTS idx_readings_device_recorded
    ON loadcell_readings (device_id, recorded_at DESC);
`

const indexLogsByDevice = `
CREATE INDEX IF NOT EXISTS idx_packing_logs_device_created
    ON packing_logs (device_id, created_at DESC);
`

func ensureSchema(conn *sql.DB) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaDevices,
		schemaLoadcellReadings,
		schemaPackingLogs,
		schemaUsers,
		indexReadingsByDevice,
		indexLogsByDevice,
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

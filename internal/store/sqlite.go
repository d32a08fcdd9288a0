package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure Go, cgo-free driver
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id       TEXT PRIMARY KEY,
	device_configs   TEXT NOT NULL,
	time_lanes       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS shot_results (
	session_id        TEXT NOT NULL,
	shot_index        INTEGER NOT NULL,
	device_parameters TEXT NOT NULL,
	started_at        TEXT NOT NULL,
	finished_at       TEXT NOT NULL,
	PRIMARY KEY (session_id, shot_index)
);
`

// SQLiteStore is the concrete SessionStore backed by a single SQLite
// database file (or a shared-cache in-memory URI for tests), opened through modernc.org/sqlite
// so the binary stays cgo-free.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at dsn and applies
// the store's schema.
func Open(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening %q: %w", dsn, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: pinging %q: %w", dsn, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// SaveSessionSetup records a session's static device configurations and
// time lanes, overwriting any prior setup for the same session id. This is
// outside the narrow SessionStore interface — only the CLI, which owns the
// session's description, needs to write it; downstream consumers only read
// it back through LoadDeviceConfigs/LoadTimeLanes.
func (s *SQLiteStore) SaveSessionSetup(ctx context.Context, sessionID string, deviceConfigs, timeLanes json.RawMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, device_configs, time_lanes) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET device_configs = excluded.device_configs, time_lanes = excluded.time_lanes`,
		sessionID, string(deviceConfigs), string(timeLanes),
	)
	if err != nil {
		return fmt.Errorf("store: saving session setup for %q: %w", sessionID, err)
	}
	return nil
}

func (s *SQLiteStore) LoadDeviceConfigs(ctx context.Context, sessionID string) (json.RawMessage, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT device_configs FROM sessions WHERE session_id = ?`, sessionID).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("store: loading device configs for %q: %w", sessionID, err)
	}
	return json.RawMessage(raw), nil
}

func (s *SQLiteStore) LoadTimeLanes(ctx context.Context, sessionID string) (json.RawMessage, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT time_lanes FROM sessions WHERE session_id = ?`, sessionID).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("store: loading time lanes for %q: %w", sessionID, err)
	}
	return json.RawMessage(raw), nil
}

func (s *SQLiteStore) SaveShotResult(ctx context.Context, sessionID string, shotIndex int, deviceParameters map[string]json.RawMessage, startedAt, finishedAt time.Time) error {
	encoded, err := json.Marshal(deviceParameters)
	if err != nil {
		return fmt.Errorf("store: encoding shot %d parameters for %q: %w", shotIndex, sessionID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO shot_results (session_id, shot_index, device_parameters, started_at, finished_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, shot_index) DO UPDATE SET device_parameters = excluded.device_parameters, started_at = excluded.started_at, finished_at = excluded.finished_at`,
		sessionID, shotIndex, string(encoded), startedAt.UTC().Format(time.RFC3339Nano), finishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: saving shot %d result for %q: %w", shotIndex, sessionID, err)
	}
	return nil
}

var _ SessionStore = (*SQLiteStore)(nil)

package store

import (
	"database/sql"
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "events: durable hook event queue",
		SQL: `
CREATE TABLE events (
    id          TEXT PRIMARY KEY,
    event_type  TEXT NOT NULL CHECK (event_type IN ('tool_use', 'user_prompt', 'session_start', 'session_stop', 'session_end')),
    session_id  TEXT NOT NULL,
    payload     TEXT NOT NULL,
    state       TEXT NOT NULL DEFAULT 'pending' CHECK (state IN ('pending', 'processing', 'completed', 'failed')),
    attempts    INTEGER NOT NULL DEFAULT 0,
    last_error  TEXT,
    enqueued_at INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);

CREATE INDEX idx_events_state    ON events(state);
CREATE INDEX idx_events_pending  ON events(state, enqueued_at, id);
CREATE INDEX idx_events_session  ON events(session_id);
`,
	},
	{
		Version:     2,
		Description: "engine_runs: per-granularity decay run markers",
		SQL: `
CREATE TABLE engine_runs (
    granularity TEXT PRIMARY KEY,
    bucket      TEXT NOT NULL,
    ran_at      INTEGER NOT NULL
);
`,
	},
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}

// GetRunBucket returns the recorded time bucket for a granularity, or ""
// if that granularity has never run.
func (db *DB) GetRunBucket(granularity string) (string, error) {
	var bucket string
	err := db.QueryRow(
		"SELECT bucket FROM engine_runs WHERE granularity = ?", granularity,
	).Scan(&bucket)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get run bucket: %w", err)
	}
	return bucket, nil
}

// SetRunBucket records that a granularity ran for the given time bucket.
func (db *DB) SetRunBucket(granularity, bucket string, ranAt int64) error {
	_, err := db.Exec(`
		INSERT INTO engine_runs (granularity, bucket, ran_at) VALUES (?, ?, ?)
		ON CONFLICT(granularity) DO UPDATE SET bucket = excluded.bucket, ran_at = excluded.ran_at
	`, granularity, bucket, ranAt)
	if err != nil {
		return fmt.Errorf("set run bucket: %w", err)
	}
	return nil
}

package store

import (
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
		Description: "events: normalized behavioral event log",
		SQL: `
CREATE TABLE events (
    id          INTEGER PRIMARY KEY,
    subject_id  TEXT NOT NULL,
    event_type  TEXT NOT NULL CHECK (event_type IN ('conversation', 'task', 'referral', 'need', 'other')),
    meta_kind   TEXT NOT NULL,
    meta        TEXT,
    occurred_at INTEGER NOT NULL,
    created_at  INTEGER NOT NULL
);

CREATE INDEX idx_events_subject  ON events(subject_id, occurred_at DESC);
CREATE INDEX idx_events_occurred ON events(occurred_at DESC);
`,
	},
	{
		Version:     2,
		Description: "snapshots: immutable risk score records",
		SQL: `
CREATE TABLE snapshots (
    id                INTEGER PRIMARY KEY,
    subject_id        TEXT NOT NULL,
    adherence         REAL NOT NULL,
    mental_health     REAL NOT NULL,
    social_isolation  REAL NOT NULL,
    care_coordination REAL NOT NULL,
    system_trust      REAL NOT NULL,
    overall           REAL NOT NULL,
    trends            TEXT,
    event_count       INTEGER NOT NULL DEFAULT 0,
    last_activity     INTEGER,
    created_at        INTEGER NOT NULL
);

CREATE INDEX idx_snapshots_subject ON snapshots(subject_id, created_at DESC);
`,
	},
	{
		Version:     3,
		Description: "memories: emotion-weighted memory records with embeddings",
		SQL: `
CREATE TABLE memories (
    id             TEXT PRIMARY KEY,
    subject_id     TEXT NOT NULL,
    content        TEXT NOT NULL,
    affect_label   TEXT NOT NULL,
    intensity      REAL NOT NULL,
    embedding      BLOB,
    dimensions     INTEGER NOT NULL DEFAULT 0,
    retention_days REAL NOT NULL,
    created_at     INTEGER NOT NULL,
    reinforced_at  INTEGER NOT NULL
);

CREATE INDEX idx_memories_subject ON memories(subject_id);
CREATE INDEX idx_memories_created ON memories(created_at);
`,
	},
	{
		Version:     4,
		Description: "engagements: resource engagement lifecycle",
		SQL: `
CREATE TABLE engagements (
    id             TEXT PRIMARY KEY,
    subject_id     TEXT NOT NULL,
    resource_id    TEXT NOT NULL,
    category       TEXT,
    state          TEXT NOT NULL CHECK (state IN ('DETECTED', 'OFFERED', 'ACCEPTED', 'DECLINED', 'COMPLETED', 'FAILED', 'ABANDONED')),
    confidence     REAL NOT NULL DEFAULT 0,
    trigger_phrase TEXT,
    outcome_note   TEXT,
    escalated      INTEGER NOT NULL DEFAULT 0,
    followups      INTEGER NOT NULL DEFAULT 0,
    detected_at    INTEGER NOT NULL,
    offered_at     INTEGER,
    accepted_at    INTEGER,
    resolved_at    INTEGER,
    followup_at    INTEGER,
    updated_at     INTEGER NOT NULL
);

CREATE INDEX idx_engagements_subject ON engagements(subject_id);
CREATE INDEX idx_engagements_state   ON engagements(state, updated_at);
`,
	},
	{
		Version:     5,
		Description: "dead_letters: jobs that exhausted their retries",
		SQL: `
CREATE TABLE dead_letters (
    id         INTEGER PRIMARY KEY,
    subject_id TEXT,
    kind       TEXT NOT NULL,
    error      TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX idx_dead_letters_created ON dead_letters(created_at DESC);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
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

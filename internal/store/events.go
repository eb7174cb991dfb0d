package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/caretrace/caretrace/internal/event"
)

// InsertEvent persists a normalized event and fills in its ID.
func (db *DB) InsertEvent(e *event.Event) error {
	kind, meta, err := event.EncodeMeta(e.Meta)
	if err != nil {
		return err
	}

	result, err := db.Exec(`
		INSERT INTO events (subject_id, event_type, meta_kind, meta, occurred_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.SubjectID, string(e.Type), kind, string(meta),
		e.OccurredAt.UnixMilli(), e.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	id, _ := result.LastInsertId()
	e.ID = id
	return nil
}

// EventsSince returns a subject's events with occurred_at >= since, oldest first.
func (db *DB) EventsSince(subjectID string, since time.Time) ([]event.Event, error) {
	rows, err := db.Query(`
		SELECT id, subject_id, event_type, meta_kind, meta, occurred_at, created_at
		FROM events WHERE subject_id = ? AND occurred_at >= ?
		ORDER BY occurred_at ASC
	`, subjectID, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("events since: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// LastActivity returns the occurred_at of the subject's most recent event,
// or the zero time if the subject has no events at all.
func (db *DB) LastActivity(subjectID string) (time.Time, error) {
	var ms sql.NullInt64
	err := db.QueryRow(`
		SELECT MAX(occurred_at) FROM events WHERE subject_id = ?
	`, subjectID).Scan(&ms)
	if err != nil {
		return time.Time{}, fmt.Errorf("last activity: %w", err)
	}
	if !ms.Valid {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms.Int64), nil
}

func scanEvents(rows *sql.Rows) ([]event.Event, error) {
	var events []event.Event
	for rows.Next() {
		var e event.Event
		var typ, kind string
		var meta sql.NullString
		var occurred, created int64
		if err := rows.Scan(&e.ID, &e.SubjectID, &typ, &kind, &meta, &occurred, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = event.Type(typ)
		m, err := event.DecodeMeta(kind, []byte(meta.String))
		if err != nil {
			return nil, err
		}
		e.Meta = m
		e.OccurredAt = time.UnixMilli(occurred)
		e.CreatedAt = time.UnixMilli(created)
		events = append(events, e)
	}
	return events, rows.Err()
}

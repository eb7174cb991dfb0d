package store

import (
	"fmt"
	"time"
)

// DeadLetter records a background job that exhausted its retries.
type DeadLetter struct {
	ID        int64
	SubjectID string
	Kind      string
	Error     string
	CreatedAt int64
}

// InsertDeadLetter records a permanently failed job.
func (db *DB) InsertDeadLetter(subjectID, kind, errMsg string) error {
	_, err := db.Exec(`
		INSERT INTO dead_letters (subject_id, kind, error, created_at)
		VALUES (?, ?, ?, ?)
	`, subjectID, kind, errMsg, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}
	return nil
}

// ListDeadLetters returns the most recent dead letters.
func (db *DB) ListDeadLetters(limit int) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, subject_id, kind, error, created_at
		FROM dead_letters ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var letters []DeadLetter
	for rows.Next() {
		var d DeadLetter
		if err := rows.Scan(&d.ID, &d.SubjectID, &d.Kind, &d.Error, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		letters = append(letters, d)
	}
	return letters, rows.Err()
}

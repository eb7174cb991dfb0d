package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/caretrace/caretrace/internal/scoring"
)

type trendBlob struct {
	Categories map[scoring.Category]scoring.Trend `json:"categories"`
	Overall    scoring.Trend                      `json:"overall"`
}

// InsertSnapshot persists a scoring result. Snapshots are append-only; there
// is deliberately no update path.
func (db *DB) InsertSnapshot(s *scoring.Snapshot) error {
	trends, err := json.Marshal(trendBlob{Categories: s.Trends, Overall: s.OverallTrend})
	if err != nil {
		return fmt.Errorf("encode trends: %w", err)
	}

	var lastActivity any
	if !s.LastActivity.IsZero() {
		lastActivity = s.LastActivity.UnixMilli()
	}

	_, err = db.Exec(`
		INSERT INTO snapshots (subject_id, adherence, mental_health, social_isolation,
			care_coordination, system_trust, overall, trends, event_count, last_activity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.SubjectID,
		s.Scores[scoring.Adherence], s.Scores[scoring.MentalHealth],
		s.Scores[scoring.SocialIsolation], s.Scores[scoring.CareCoordination],
		s.Scores[scoring.SystemTrust], s.Overall,
		string(trends), s.EventCount, lastActivity, s.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the subject's most recent snapshot, or nil.
func (db *DB) LatestSnapshot(subjectID string) (*scoring.Snapshot, error) {
	row := db.QueryRow(snapshotSelect+`
		WHERE subject_id = ? ORDER BY created_at DESC LIMIT 1
	`, subjectID)
	s, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return s, nil
}

// SnapshotHistory returns up to limit snapshots for a subject, newest first.
func (db *DB) SnapshotHistory(subjectID string, limit int) ([]scoring.Snapshot, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := db.Query(snapshotSelect+`
		WHERE subject_id = ? ORDER BY created_at DESC LIMIT ?
	`, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("snapshot history: %w", err)
	}
	defer rows.Close()

	var history []scoring.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("snapshot history: %w", err)
		}
		history = append(history, *s)
	}
	return history, rows.Err()
}

const snapshotSelect = `
	SELECT subject_id, adherence, mental_health, social_isolation,
		care_coordination, system_trust, overall, trends, event_count, last_activity, created_at
	FROM snapshots`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*scoring.Snapshot, error) {
	var s scoring.Snapshot
	var adherence, mental, isolation, coordination, trust float64
	var trends sql.NullString
	var lastActivity sql.NullInt64
	var created int64

	if err := row.Scan(&s.SubjectID, &adherence, &mental, &isolation,
		&coordination, &trust, &s.Overall, &trends, &s.EventCount,
		&lastActivity, &created); err != nil {
		return nil, err
	}

	s.Scores = map[scoring.Category]float64{
		scoring.Adherence:        adherence,
		scoring.MentalHealth:     mental,
		scoring.SocialIsolation:  isolation,
		scoring.CareCoordination: coordination,
		scoring.SystemTrust:      trust,
	}
	if trends.Valid && trends.String != "" {
		var blob trendBlob
		if err := json.Unmarshal([]byte(trends.String), &blob); err != nil {
			return nil, fmt.Errorf("decode trends: %w", err)
		}
		s.Trends = blob.Categories
		s.OverallTrend = blob.Overall
	}
	if lastActivity.Valid {
		s.LastActivity = time.UnixMilli(lastActivity.Int64)
	}
	s.CreatedAt = time.UnixMilli(created)
	return &s, nil
}

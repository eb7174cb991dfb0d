package store

import (
	"database/sql"
	"fmt"
)

// Engagement tracks one offered community resource for a subject, from
// detection to a terminal outcome. Rows are never deleted; terminal states
// are kept for audit.
type Engagement struct {
	ID            string
	SubjectID     string
	ResourceID    string
	Category      string
	State         string
	Confidence    float64
	TriggerPhrase string
	OutcomeNote   string
	Escalated     bool
	FollowUps     int
	DetectedAt    int64
	OfferedAt     *int64
	AcceptedAt    *int64
	ResolvedAt    *int64
	FollowUpAt    *int64
	UpdatedAt     int64
}

// InsertEngagement persists a newly detected engagement.
func (db *DB) InsertEngagement(e *Engagement) error {
	_, err := db.Exec(`
		INSERT INTO engagements (id, subject_id, resource_id, category, state,
			confidence, trigger_phrase, outcome_note, escalated, followups,
			detected_at, offered_at, accepted_at, resolved_at, followup_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.SubjectID, e.ResourceID, e.Category, e.State,
		e.Confidence, e.TriggerPhrase, e.OutcomeNote, boolInt(e.Escalated), e.FollowUps,
		e.DetectedAt, e.OfferedAt, e.AcceptedAt, e.ResolvedAt, e.FollowUpAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert engagement: %w", err)
	}
	return nil
}

// UpdateEngagement writes back a mutated engagement row.
func (db *DB) UpdateEngagement(e *Engagement) error {
	result, err := db.Exec(`
		UPDATE engagements SET state = ?, confidence = ?, trigger_phrase = ?,
			outcome_note = ?, escalated = ?, followups = ?, offered_at = ?,
			accepted_at = ?, resolved_at = ?, followup_at = ?, updated_at = ?
		WHERE id = ?
	`, e.State, e.Confidence, e.TriggerPhrase,
		e.OutcomeNote, boolInt(e.Escalated), e.FollowUps, e.OfferedAt,
		e.AcceptedAt, e.ResolvedAt, e.FollowUpAt, e.UpdatedAt, e.ID)
	if err != nil {
		return fmt.Errorf("update engagement: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("engagement %s not found", e.ID)
	}
	return nil
}

// GetEngagement returns an engagement by ID, or nil if not found.
func (db *DB) GetEngagement(id string) (*Engagement, error) {
	row := db.QueryRow(engagementSelect+` WHERE id = ?`, id)
	e, err := scanEngagement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get engagement: %w", err)
	}
	return e, nil
}

// ListEngagements returns engagements for a subject (all subjects when
// subjectID is empty), newest detection first.
func (db *DB) ListEngagements(subjectID string, limit int) ([]Engagement, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows *sql.Rows
	var err error
	if subjectID == "" {
		rows, err = db.Query(engagementSelect+`
			ORDER BY detected_at DESC LIMIT ?`, limit)
	} else {
		rows, err = db.Query(engagementSelect+`
			WHERE subject_id = ? ORDER BY detected_at DESC LIMIT ?`, subjectID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list engagements: %w", err)
	}
	defer rows.Close()
	return scanEngagements(rows)
}

// EngagementsInStates returns engagements whose state is one of the given
// set, using the (state, updated_at) index. The scheduler's selection query.
func (db *DB) EngagementsInStates(states []string) ([]Engagement, error) {
	if len(states) == 0 {
		return nil, nil
	}

	placeholders := ""
	args := make([]any, len(states))
	for i, s := range states {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = s
	}

	rows, err := db.Query(engagementSelect+`
		WHERE state IN (`+placeholders+`) ORDER BY updated_at ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("engagements in states: %w", err)
	}
	defer rows.Close()
	return scanEngagements(rows)
}

const engagementSelect = `
	SELECT id, subject_id, resource_id, category, state, confidence,
		trigger_phrase, outcome_note, escalated, followups,
		detected_at, offered_at, accepted_at, resolved_at, followup_at, updated_at
	FROM engagements`

func scanEngagement(row rowScanner) (*Engagement, error) {
	var e Engagement
	var category, trigger, note sql.NullString
	var escalated int
	var offered, accepted, resolved, followup sql.NullInt64

	if err := row.Scan(&e.ID, &e.SubjectID, &e.ResourceID, &category, &e.State,
		&e.Confidence, &trigger, &note, &escalated, &e.FollowUps,
		&e.DetectedAt, &offered, &accepted, &resolved, &followup, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Category = category.String
	e.TriggerPhrase = trigger.String
	e.OutcomeNote = note.String
	e.Escalated = escalated != 0
	e.OfferedAt = nullableInt(offered)
	e.AcceptedAt = nullableInt(accepted)
	e.ResolvedAt = nullableInt(resolved)
	e.FollowUpAt = nullableInt(followup)
	return &e, nil
}

func scanEngagements(rows *sql.Rows) ([]Engagement, error) {
	var engagements []Engagement
	for rows.Next() {
		e, err := scanEngagement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan engagement: %w", err)
		}
		engagements = append(engagements, *e)
	}
	return engagements, rows.Err()
}

func nullableInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
)

// Memory is one emotion-weighted memory record. Embedding is the combined
// vector: semantic embedding followed by the affect feature block.
type Memory struct {
	ID            string
	SubjectID     string
	Content       string
	AffectLabel   string
	Intensity     float64
	Embedding     []float64
	RetentionDays float64
	CreatedAt     int64 // unix millis
	ReinforcedAt  int64 // unix millis
}

// encodeEmbedding converts a []float64 to a binary BLOB (8 bytes per float64).
func encodeEmbedding(vec []float64) []byte {
	buf := make([]byte, len(vec)*8)
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeEmbedding converts a binary BLOB back to []float64.
func decodeEmbedding(buf []byte) []float64 {
	n := len(buf) / 8
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec
}

// InsertMemory persists a new memory record.
func (db *DB) InsertMemory(m *Memory) error {
	var blob []byte
	if len(m.Embedding) > 0 {
		blob = encodeEmbedding(m.Embedding)
	}

	_, err := db.Exec(`
		INSERT INTO memories (id, subject_id, content, affect_label, intensity,
			embedding, dimensions, retention_days, created_at, reinforced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.SubjectID, m.Content, m.AffectLabel, m.Intensity,
		blob, len(m.Embedding), m.RetentionDays, m.CreatedAt, m.ReinforcedAt)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

// GetMemory returns a memory by ID, or nil if not found.
func (db *DB) GetMemory(id string) (*Memory, error) {
	row := db.QueryRow(memorySelect+` WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return m, nil
}

// MemoriesBySubject returns all of a subject's memories with embeddings loaded.
func (db *DB) MemoriesBySubject(subjectID string) ([]Memory, error) {
	rows, err := db.Query(memorySelect+` WHERE subject_id = ?`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("memories by subject: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// MemoriesCreatedBefore returns memories older than the cutoff, for cleanup
// scans. Uses the created_at index so young records are never touched.
func (db *DB) MemoriesCreatedBefore(cutoff int64) ([]Memory, error) {
	rows, err := db.Query(memorySelect+` WHERE created_at < ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("memories created before: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// UpdateReinforcement writes back a reinforced intensity, recomputed TTL and
// reinforcement timestamp.
func (db *DB) UpdateReinforcement(id string, intensity, retentionDays float64, reinforcedAt int64) error {
	_, err := db.Exec(`
		UPDATE memories SET intensity = ?, retention_days = ?, reinforced_at = ?
		WHERE id = ?
	`, intensity, retentionDays, reinforcedAt, id)
	if err != nil {
		return fmt.Errorf("update reinforcement: %w", err)
	}
	return nil
}

// DeleteMemory removes a memory record.
func (db *DB) DeleteMemory(id string) error {
	_, err := db.Exec(`DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete memory %s: %w", id, err)
	}
	return nil
}

// CountMemories returns the number of stored memories.
func (db *DB) CountMemories() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM memories`).Scan(&n)
	return n, err
}

const memorySelect = `
	SELECT id, subject_id, content, affect_label, intensity, embedding,
		retention_days, created_at, reinforced_at
	FROM memories`

func scanMemory(row rowScanner) (*Memory, error) {
	var m Memory
	var blob []byte
	if err := row.Scan(&m.ID, &m.SubjectID, &m.Content, &m.AffectLabel,
		&m.Intensity, &blob, &m.RetentionDays, &m.CreatedAt, &m.ReinforcedAt); err != nil {
		return nil, err
	}
	if len(blob) > 0 {
		m.Embedding = decodeEmbedding(blob)
	}
	return &m, nil
}

func scanMemories(rows *sql.Rows) ([]Memory, error) {
	var memories []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		memories = append(memories, *m)
	}
	return memories, rows.Err()
}

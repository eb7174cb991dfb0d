// Package risk orchestrates scoring runs: it assembles the event window,
// invokes the scorer, attaches trends against the prior snapshot, and
// persists the result.
package risk

import (
	"fmt"
	"time"

	"github.com/caretrace/caretrace/internal/scoring"
	"github.com/caretrace/caretrace/internal/store"
)

// Service wires the pure scorer to the store.
type Service struct {
	db         *store.DB
	scorer     *scoring.Scorer
	analyzer   *scoring.Analyzer
	windowDays int
}

// NewService returns a risk Service. windowDays <= 0 defaults to 30.
func NewService(db *store.DB, scorer *scoring.Scorer, analyzer *scoring.Analyzer, windowDays int) *Service {
	if windowDays <= 0 {
		windowDays = 30
	}
	return &Service{db: db, scorer: scorer, analyzer: analyzer, windowDays: windowDays}
}

// Analyze scores the subject's recent window. When persist is true the
// snapshot is written; the live-analysis path passes false and gets the same
// result without a side effect.
func (s *Service) Analyze(subjectID string, persist bool, now time.Time) (*scoring.Snapshot, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("subject id required")
	}

	since := now.AddDate(0, 0, -s.windowDays)
	events, err := s.db.EventsSince(subjectID, since)
	if err != nil {
		return nil, fmt.Errorf("load window: %w", err)
	}
	lastActivity, err := s.db.LastActivity(subjectID)
	if err != nil {
		return nil, fmt.Errorf("load last activity: %w", err)
	}

	snapshot, err := s.scorer.Score(scoring.Window{
		SubjectID:    subjectID,
		Events:       events,
		LastActivity: lastActivity,
		Now:          now,
	})
	if err != nil {
		return nil, err
	}

	prior, err := s.db.LatestSnapshot(subjectID)
	if err != nil {
		return nil, fmt.Errorf("load prior snapshot: %w", err)
	}
	s.analyzer.Attach(snapshot, prior)

	if persist {
		if err := s.db.InsertSnapshot(snapshot); err != nil {
			return nil, err
		}
	}
	return snapshot, nil
}

// Latest returns the subject's most recent persisted snapshot, or nil.
func (s *Service) Latest(subjectID string) (*scoring.Snapshot, error) {
	return s.db.LatestSnapshot(subjectID)
}

// History returns up to limit persisted snapshots, newest first.
func (s *Service) History(subjectID string, limit int) ([]scoring.Snapshot, error) {
	return s.db.SnapshotHistory(subjectID, limit)
}

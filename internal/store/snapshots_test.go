package store

import (
	"testing"
	"time"

	"github.com/caretrace/caretrace/internal/scoring"
)

func makeSnapshot(subjectID string, overall float64, created time.Time) *scoring.Snapshot {
	return &scoring.Snapshot{
		SubjectID: subjectID,
		Scores: map[scoring.Category]float64{
			scoring.Adherence:        2.5,
			scoring.MentalHealth:     6.0,
			scoring.SocialIsolation:  4.0,
			scoring.CareCoordination: 5.0,
			scoring.SystemTrust:      3.0,
		},
		Overall: overall,
		Trends: map[scoring.Category]scoring.Trend{
			scoring.MentalHealth: {Direction: scoring.TrendIncreasing, PercentChange: 0.12},
		},
		OverallTrend: scoring.Trend{Direction: scoring.TrendStable},
		EventCount:   7,
		LastActivity: created.AddDate(0, 0, -1),
		CreatedAt:    created,
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := testDB(t)
	now := time.Now()

	if err := db.InsertSnapshot(makeSnapshot("subj-1", 4.2, now)); err != nil {
		t.Fatalf("InsertSnapshot: %v", err)
	}

	got, err := db.LatestSnapshot("subj-1")
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if got == nil {
		t.Fatal("LatestSnapshot returned nil")
	}
	if got.Overall != 4.2 {
		t.Errorf("overall = %v, want 4.2", got.Overall)
	}
	if got.Scores[scoring.MentalHealth] != 6.0 {
		t.Errorf("mental health = %v, want 6.0", got.Scores[scoring.MentalHealth])
	}
	if got.EventCount != 7 {
		t.Errorf("event count = %d, want 7", got.EventCount)
	}
	if got.Trends[scoring.MentalHealth].Direction != scoring.TrendIncreasing {
		t.Errorf("trend direction = %q, want increasing", got.Trends[scoring.MentalHealth].Direction)
	}
	if got.LastActivity.IsZero() {
		t.Error("last activity lost in round trip")
	}
}

func TestLatestSnapshotNone(t *testing.T) {
	db := testDB(t)

	got, err := db.LatestSnapshot("nobody")
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if got != nil {
		t.Errorf("got snapshot for unknown subject: %+v", got)
	}
}

func TestSnapshotHistoryOrder(t *testing.T) {
	db := testDB(t)
	now := time.Now()

	for i, overall := range []float64{3.0, 4.0, 5.0} {
		s := makeSnapshot("subj-1", overall, now.Add(time.Duration(i)*time.Hour))
		if err := db.InsertSnapshot(s); err != nil {
			t.Fatalf("InsertSnapshot %d: %v", i, err)
		}
	}

	history, err := db.SnapshotHistory("subj-1", 2)
	if err != nil {
		t.Fatalf("SnapshotHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(history))
	}
	// Newest first.
	if history[0].Overall != 5.0 || history[1].Overall != 4.0 {
		t.Errorf("history order = [%v %v], want [5 4]", history[0].Overall, history[1].Overall)
	}

	latest, err := db.LatestSnapshot("subj-1")
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if latest.Overall != 5.0 {
		t.Errorf("latest overall = %v, want 5.0", latest.Overall)
	}
}

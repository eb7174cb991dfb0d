package store

import (
	"testing"
	"time"
)

func testEngagement(id, subjectID, state string, detectedAt int64) *Engagement {
	return &Engagement{
		ID:            id,
		SubjectID:     subjectID,
		ResourceID:    "res-senior-center",
		Category:      "social",
		State:         state,
		Confidence:    0.8,
		TriggerPhrase: "I've been so lonely lately",
		DetectedAt:    detectedAt,
		UpdatedAt:     detectedAt,
	}
}

func TestEngagementRoundTrip(t *testing.T) {
	db := testDB(t)
	now := time.Now().UnixMilli()

	e := testEngagement("eng-1", "subj-1", "DETECTED", now)
	if err := db.InsertEngagement(e); err != nil {
		t.Fatalf("InsertEngagement: %v", err)
	}

	got, err := db.GetEngagement("eng-1")
	if err != nil {
		t.Fatalf("GetEngagement: %v", err)
	}
	if got == nil {
		t.Fatal("GetEngagement returned nil")
	}
	if got.State != "DETECTED" || got.ResourceID != "res-senior-center" {
		t.Errorf("state/resource = %q/%q", got.State, got.ResourceID)
	}
	if got.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8", got.Confidence)
	}
	if got.OfferedAt != nil || got.AcceptedAt != nil || got.ResolvedAt != nil {
		t.Error("fresh engagement has non-nil transition timestamps")
	}
}

func TestUpdateEngagement(t *testing.T) {
	db := testDB(t)
	now := time.Now().UnixMilli()

	e := testEngagement("eng-1", "subj-1", "DETECTED", now)
	if err := db.InsertEngagement(e); err != nil {
		t.Fatalf("InsertEngagement: %v", err)
	}

	offered := now + 1000
	e.State = "OFFERED"
	e.OfferedAt = &offered
	e.FollowUps = 1
	e.Escalated = true
	e.UpdatedAt = offered
	if err := db.UpdateEngagement(e); err != nil {
		t.Fatalf("UpdateEngagement: %v", err)
	}

	got, err := db.GetEngagement("eng-1")
	if err != nil {
		t.Fatalf("GetEngagement: %v", err)
	}
	if got.State != "OFFERED" {
		t.Errorf("state = %q, want OFFERED", got.State)
	}
	if got.OfferedAt == nil || *got.OfferedAt != offered {
		t.Errorf("offered_at = %v, want %d", got.OfferedAt, offered)
	}
	if got.FollowUps != 1 || !got.Escalated {
		t.Errorf("followups/escalated = %d/%v", got.FollowUps, got.Escalated)
	}
}

func TestUpdateEngagementNotFound(t *testing.T) {
	db := testDB(t)

	e := testEngagement("missing", "subj-1", "DETECTED", time.Now().UnixMilli())
	if err := db.UpdateEngagement(e); err == nil {
		t.Error("expected error updating missing engagement")
	}
}

func TestListEngagements(t *testing.T) {
	db := testDB(t)
	now := time.Now().UnixMilli()

	for i, subj := range []string{"subj-1", "subj-1", "subj-2"} {
		e := testEngagement("eng-"+subj+string(rune('a'+i)), subj, "DETECTED", now+int64(i))
		if err := db.InsertEngagement(e); err != nil {
			t.Fatalf("InsertEngagement: %v", err)
		}
	}

	got, err := db.ListEngagements("subj-1", 0)
	if err != nil {
		t.Fatalf("ListEngagements: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("subj-1 engagements = %d, want 2", len(got))
	}

	all, err := db.ListEngagements("", 0)
	if err != nil {
		t.Fatalf("ListEngagements all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all engagements = %d, want 3", len(all))
	}
}

func TestEngagementsInStates(t *testing.T) {
	db := testDB(t)
	now := time.Now().UnixMilli()

	states := []string{"DETECTED", "OFFERED", "COMPLETED", "ABANDONED"}
	for i, state := range states {
		e := testEngagement("eng-"+state, "subj-1", state, now+int64(i))
		if err := db.InsertEngagement(e); err != nil {
			t.Fatalf("InsertEngagement: %v", err)
		}
	}

	open, err := db.EngagementsInStates([]string{"DETECTED", "OFFERED", "ACCEPTED"})
	if err != nil {
		t.Fatalf("EngagementsInStates: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("open engagements = %d, want 2", len(open))
	}
	for _, e := range open {
		if e.State == "COMPLETED" || e.State == "ABANDONED" {
			t.Errorf("terminal state %s returned from open set", e.State)
		}
	}

	none, err := db.EngagementsInStates(nil)
	if err != nil {
		t.Fatalf("EngagementsInStates(nil): %v", err)
	}
	if len(none) != 0 {
		t.Errorf("empty state set returned %d rows", len(none))
	}
}

func TestDeadLetters(t *testing.T) {
	db := testDB(t)

	if err := db.InsertDeadLetter("subj-1", "score", "boom"); err != nil {
		t.Fatalf("InsertDeadLetter: %v", err)
	}

	letters, err := db.ListDeadLetters(0)
	if err != nil {
		t.Fatalf("ListDeadLetters: %v", err)
	}
	if len(letters) != 1 {
		t.Fatalf("got %d dead letters, want 1", len(letters))
	}
	if letters[0].Kind != "score" || letters[0].Error != "boom" {
		t.Errorf("dead letter = %+v", letters[0])
	}
}

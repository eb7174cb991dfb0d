package store

import (
	"testing"
	"time"

	"github.com/caretrace/caretrace/internal/event"
)

func TestInsertAndQueryEvents(t *testing.T) {
	db := testDB(t)
	now := time.Now()

	events := []event.Event{
		{
			SubjectID:  "subj-1",
			Type:       event.TypeConversation,
			Meta:       event.ConversationMeta{Transcript: "had a good day", Affect: "calm"},
			OccurredAt: now.AddDate(0, 0, -2),
			CreatedAt:  now,
		},
		{
			SubjectID:  "subj-1",
			Type:       event.TypeTask,
			Meta:       event.TaskMeta{TaskID: "task-1", Completed: true},
			OccurredAt: now.AddDate(0, 0, -1),
			CreatedAt:  now,
		},
		{
			SubjectID:  "subj-2",
			Type:       event.TypeTask,
			Meta:       event.TaskMeta{TaskID: "task-2"},
			OccurredAt: now,
			CreatedAt:  now,
		},
	}
	for i := range events {
		if err := db.InsertEvent(&events[i]); err != nil {
			t.Fatalf("InsertEvent: %v", err)
		}
		if events[i].ID == 0 {
			t.Errorf("event %d: ID not filled in", i)
		}
	}

	got, err := db.EventsSince("subj-1", now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("EventsSince: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}

	// Oldest first, meta decoded back to the typed shape.
	conv, ok := got[0].Meta.(event.ConversationMeta)
	if !ok {
		t.Fatalf("first meta = %T, want ConversationMeta", got[0].Meta)
	}
	if conv.Transcript != "had a good day" {
		t.Errorf("transcript = %q", conv.Transcript)
	}
	task, ok := got[1].Meta.(event.TaskMeta)
	if !ok {
		t.Fatalf("second meta = %T, want TaskMeta", got[1].Meta)
	}
	if !task.Completed {
		t.Error("task Completed lost in round trip")
	}
}

func TestEventsSinceWindowBound(t *testing.T) {
	db := testDB(t)
	now := time.Now()

	old := event.Event{
		SubjectID:  "subj-1",
		Type:       event.TypeOther,
		Meta:       event.OtherMeta{},
		OccurredAt: now.AddDate(0, 0, -60),
		CreatedAt:  now,
	}
	if err := db.InsertEvent(&old); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}

	got, err := db.EventsSince("subj-1", now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("EventsSince: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d events outside window, want 0", len(got))
	}
}

func TestLastActivity(t *testing.T) {
	db := testDB(t)
	now := time.Now()

	ts, err := db.LastActivity("nobody")
	if err != nil {
		t.Fatalf("LastActivity: %v", err)
	}
	if !ts.IsZero() {
		t.Errorf("last activity for unknown subject = %v, want zero", ts)
	}

	e := event.Event{
		SubjectID:  "subj-1",
		Type:       event.TypeOther,
		Meta:       event.OtherMeta{},
		OccurredAt: now.AddDate(0, 0, -60),
		CreatedAt:  now,
	}
	if err := db.InsertEvent(&e); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}

	// LastActivity sees events even when they predate any scoring window.
	ts, err = db.LastActivity("subj-1")
	if err != nil {
		t.Fatalf("LastActivity: %v", err)
	}
	if ts.IsZero() {
		t.Fatal("last activity is zero after insert")
	}
	if diff := ts.Sub(now.AddDate(0, 0, -60)); diff < -time.Second || diff > time.Second {
		t.Errorf("last activity off by %v", diff)
	}
}

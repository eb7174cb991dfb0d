package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/caretrace/caretrace/internal/affect"
	"github.com/caretrace/caretrace/internal/event"
)

var scorerNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := NewScorer(DefaultWeights(), affect.DefaultLexicon())
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}
	return s
}

func conversationAt(daysAgo int, transcript string) event.Event {
	return event.Event{
		Type:       event.TypeConversation,
		Meta:       event.ConversationMeta{Transcript: transcript},
		OccurredAt: scorerNow.AddDate(0, 0, -daysAgo),
	}
}

func taskAt(daysAgo int, goal string, completed bool) event.Event {
	return event.Event{
		Type:       event.TypeTask,
		Meta:       event.TaskMeta{TaskID: "t", Goal: goal, Completed: completed},
		OccurredAt: scorerNow.AddDate(0, 0, -daysAgo),
	}
}

func referralAt(daysAgo int, status string) event.Event {
	return event.Event{
		Type:       event.TypeReferral,
		Meta:       event.ReferralMeta{ReferralID: "r", Status: status},
		OccurredAt: scorerNow.AddDate(0, 0, -daysAgo),
	}
}

func TestNewScorerRejectsBadWeights(t *testing.T) {
	w := DefaultWeights()
	w.Adherence = 0.5 // sum now 1.25
	if _, err := NewScorer(w, affect.DefaultLexicon()); err == nil {
		t.Error("expected error for weights not summing to 1")
	}
}

func TestScoreEmptyWindowIsNeutral(t *testing.T) {
	s := testScorer(t)

	snap, err := s.Score(Window{SubjectID: "subj-1", Now: scorerNow})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	for _, cat := range Categories {
		if snap.Scores[cat] != 5.0 {
			t.Errorf("%s = %v, want neutral 5.0", cat, snap.Scores[cat])
		}
	}
	if snap.Overall != 5.0 {
		t.Errorf("overall = %v, want 5.0", snap.Overall)
	}
	if snap.EventCount != 0 {
		t.Errorf("event count = %d, want 0", snap.EventCount)
	}
}

func TestScoreAdherence(t *testing.T) {
	s := testScorer(t)

	// 1 of 4 tracked tasks completed: 10 * (1 - 0.25) = 7.5.
	w := Window{
		SubjectID: "subj-1",
		Events: []event.Event{
			taskAt(1, "", true),
			taskAt(2, "", false),
			taskAt(3, "", false),
			taskAt(4, "", false),
		},
		LastActivity: scorerNow.AddDate(0, 0, -1),
		Now:          scorerNow,
	}
	snap, err := s.Score(w)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got := snap.Scores[Adherence]; math.Abs(got-7.5) > 1e-9 {
		t.Errorf("adherence = %v, want 7.5", got)
	}

	// Full completion is zero risk.
	w.Events = []event.Event{taskAt(1, "", true), taskAt(2, "", true)}
	snap, err = s.Score(w)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if snap.Scores[Adherence] != 0 {
		t.Errorf("adherence = %v, want 0", snap.Scores[Adherence])
	}
}

func TestScoreMentalHealthRecencyWeighted(t *testing.T) {
	s := testScorer(t)

	// Two negative hits ("sad", "lonely") in a recent conversation:
	// 5 + 1.5*2 = 8.
	w := Window{
		SubjectID:    "subj-1",
		Events:       []event.Event{conversationAt(1, "I feel sad and lonely")},
		LastActivity: scorerNow.AddDate(0, 0, -1),
		Now:          scorerNow,
	}
	snap, err := s.Score(w)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got := snap.Scores[MentalHealth]; math.Abs(got-8.0) > 1e-9 {
		t.Errorf("mental health = %v, want 8.0", got)
	}

	// The same conversation three weeks back carries unit weight: 5 + 2 = 7.
	w.Events = []event.Event{conversationAt(21, "I feel sad and lonely")}
	snap, err = s.Score(w)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got := snap.Scores[MentalHealth]; math.Abs(got-7.0) > 1e-9 {
		t.Errorf("old mental health = %v, want 7.0", got)
	}
}

func TestScoreMentalHealthPositiveOffsets(t *testing.T) {
	s := testScorer(t)

	w := Window{
		SubjectID: "subj-1",
		Events: []event.Event{
			conversationAt(1, "so grateful for the wonderful visit, feeling happy"),
		},
		LastActivity: scorerNow.AddDate(0, 0, -1),
		Now:          scorerNow,
	}
	snap, err := s.Score(w)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got := snap.Scores[MentalHealth]; got >= 5.0 {
		t.Errorf("mental health = %v, want below neutral for positive content", got)
	}
	if got := snap.Scores[MentalHealth]; got < 0 {
		t.Errorf("mental health = %v below floor", got)
	}
}

func TestScoreIdleSubject(t *testing.T) {
	s := testScorer(t)

	// Quiet for 20 days: the window is empty but LastActivity still drives
	// isolation (20*0.5 capped at 10) and trust (20*0.4 = 8).
	w := Window{
		SubjectID:    "subj-1",
		LastActivity: scorerNow.AddDate(0, 0, -20),
		Now:          scorerNow,
	}
	snap, err := s.Score(w)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got := snap.Scores[SocialIsolation]; got != 10.0 {
		t.Errorf("isolation = %v, want 10.0", got)
	}
	if got := snap.Scores[SystemTrust]; math.Abs(got-8.0) > 1e-9 {
		t.Errorf("trust = %v, want 8.0", got)
	}
	// Categories with no evidence stay neutral.
	if snap.Scores[Adherence] != 5.0 || snap.Scores[MentalHealth] != 5.0 {
		t.Errorf("adherence/mental = %v/%v, want 5/5",
			snap.Scores[Adherence], snap.Scores[MentalHealth])
	}
}

func TestScoreSocialContentReducesIsolation(t *testing.T) {
	s := testScorer(t)

	// 8 days since the last conversation: base 4.0, minus 2 for social content.
	w := Window{
		SubjectID:    "subj-1",
		Events:       []event.Event{conversationAt(8, "my daughter came to visit")},
		LastActivity: scorerNow.AddDate(0, 0, -8),
		Now:          scorerNow,
	}
	snap, err := s.Score(w)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got := snap.Scores[SocialIsolation]; math.Abs(got-2.0) > 1e-9 {
		t.Errorf("isolation = %v, want 2.0", got)
	}
}

func TestScoreCareCoordination(t *testing.T) {
	s := testScorer(t)

	// 1 of 2 referrals failed, 0 of 1 goals completed:
	// 10 * (0.6*0.5 + 0.4*1.0) / 1.0 = 7.
	w := Window{
		SubjectID: "subj-1",
		Events: []event.Event{
			referralAt(5, "completed"),
			referralAt(3, "failed"),
			taskAt(2, "attend group weekly", false),
		},
		LastActivity: scorerNow.AddDate(0, 0, -2),
		Now:          scorerNow,
	}
	snap, err := s.Score(w)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got := snap.Scores[CareCoordination]; math.Abs(got-7.0) > 1e-9 {
		t.Errorf("coordination = %v, want 7.0", got)
	}
}

func TestScoreCareCoordinationReferralsOnly(t *testing.T) {
	s := testScorer(t)

	// Referral evidence alone renormalizes: 10 * (0.6*1.0) / 0.6 = 10.
	w := Window{
		SubjectID:    "subj-1",
		Events:       []event.Event{referralAt(3, "cancelled")},
		LastActivity: scorerNow.AddDate(0, 0, -3),
		Now:          scorerNow,
	}
	snap, err := s.Score(w)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got := snap.Scores[CareCoordination]; math.Abs(got-10.0) > 1e-9 {
		t.Errorf("coordination = %v, want 10.0", got)
	}
}

func TestScoreSystemTrustDistrust(t *testing.T) {
	s := testScorer(t)

	// Active yesterday (0.4 base) plus one distrust hit (1.5).
	w := Window{
		SubjectID:    "subj-1",
		Events:       []event.Event{conversationAt(1, "this thing is useless")},
		LastActivity: scorerNow.AddDate(0, 0, -1),
		Now:          scorerNow,
	}
	snap, err := s.Score(w)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got := snap.Scores[SystemTrust]; math.Abs(got-1.9) > 1e-9 {
		t.Errorf("trust = %v, want 1.9", got)
	}
}

func TestScoreOverallIsWeightedComposite(t *testing.T) {
	s := testScorer(t)

	w := Window{
		SubjectID: "subj-1",
		Events: []event.Event{
			taskAt(1, "", false),
			conversationAt(1, "I feel sad"),
		},
		LastActivity: scorerNow.AddDate(0, 0, -1),
		Now:          scorerNow,
	}
	snap, err := s.Score(w)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	weights := DefaultWeights()
	want := weights.Adherence*snap.Scores[Adherence] +
		weights.MentalHealth*snap.Scores[MentalHealth] +
		weights.SocialIsolation*snap.Scores[SocialIsolation] +
		weights.CareCoordination*snap.Scores[CareCoordination] +
		weights.SystemTrust*snap.Scores[SystemTrust]
	if math.Abs(snap.Overall-want) > 1e-9 {
		t.Errorf("overall = %v, want %v", snap.Overall, want)
	}
}

func TestScoreBoundsUnderExtremeInput(t *testing.T) {
	s := testScorer(t)

	// Pile on negative signal; every score must stay inside [0,10].
	var events []event.Event
	for i := 0; i < 20; i++ {
		events = append(events, conversationAt(1, "sad lonely scared hopeless depressed, this thing is useless and I don't trust it"))
		events = append(events, taskAt(1, "goal", false))
		events = append(events, referralAt(1, "failed"))
	}
	w := Window{
		SubjectID:    "subj-1",
		Events:       events,
		LastActivity: scorerNow.AddDate(0, 0, -1),
		Now:          scorerNow,
	}
	snap, err := s.Score(w)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	for _, cat := range Categories {
		if v := snap.Scores[cat]; v < 0 || v > 10 {
			t.Errorf("%s = %v outside [0,10]", cat, v)
		}
	}
	if snap.Overall < 0 || snap.Overall > 10 {
		t.Errorf("overall = %v outside [0,10]", snap.Overall)
	}
}

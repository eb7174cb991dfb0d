// Package scoring computes multi-category risk scores from a rolling window
// of a subject's behavioral events. Scoring is deterministic and rule-based;
// the category weights and lexicon are tuning values, not model outputs.
package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/caretrace/caretrace/internal/affect"
	"github.com/caretrace/caretrace/internal/event"
)

// Category names one of the five risk dimensions.
type Category string

const (
	Adherence        Category = "adherence"
	MentalHealth     Category = "mental_health"
	SocialIsolation  Category = "social_isolation"
	CareCoordination Category = "care_coordination"
	SystemTrust      Category = "system_trust"
)

// Categories lists the five dimensions in canonical order.
var Categories = []Category{Adherence, MentalHealth, SocialIsolation, CareCoordination, SystemTrust}

// neutralScore is the midpoint reported when a category has no evidence.
// Zero would read as "no risk", which an empty window cannot support.
const neutralScore = 5.0

// Weights define the fixed composite used for the overall score. They must
// sum to 1.
type Weights struct {
	Adherence        float64 `toml:"adherence"`
	MentalHealth     float64 `toml:"mental_health"`
	SocialIsolation  float64 `toml:"social_isolation"`
	CareCoordination float64 `toml:"care_coordination"`
	SystemTrust      float64 `toml:"system_trust"`
}

// DefaultWeights returns the default composite weights.
func DefaultWeights() Weights {
	return Weights{
		Adherence:        0.25,
		MentalHealth:     0.30,
		SocialIsolation:  0.20,
		CareCoordination: 0.15,
		SystemTrust:      0.10,
	}
}

func (w Weights) sum() float64 {
	return w.Adherence + w.MentalHealth + w.SocialIsolation + w.CareCoordination + w.SystemTrust
}

// Snapshot is one immutable scoring result for a subject. Trend fields are
// filled by the Analyzer before persistence and never mutated afterwards.
type Snapshot struct {
	SubjectID    string             `json:"subject_id"`
	Scores       map[Category]float64 `json:"scores"`
	Overall      float64            `json:"overall"`
	Trends       map[Category]Trend `json:"trends,omitempty"`
	OverallTrend Trend              `json:"overall_trend"`
	EventCount   int                `json:"event_count"`
	LastActivity time.Time          `json:"last_activity"`
	CreatedAt    time.Time          `json:"created_at"`
}

// Window is the bounded slice of a subject's recent history the scorer reads.
// LastActivity may predate Events when the subject has gone quiet; it is the
// only signal isolation and trust scoring have in that case.
type Window struct {
	SubjectID    string
	Events       []event.Event
	LastActivity time.Time
	Now          time.Time
}

// Scorer computes category scores from event windows. It is a pure function
// of its inputs; callers persist the result.
type Scorer struct {
	weights Weights
	lex     affect.Lexicon
}

// NewScorer validates the weights and returns a Scorer.
func NewScorer(weights Weights, lex affect.Lexicon) (*Scorer, error) {
	if math.Abs(weights.sum()-1.0) > 1e-6 {
		return nil, fmt.Errorf("category weights must sum to 1, got %.4f", weights.sum())
	}
	return &Scorer{weights: weights, lex: lex}, nil
}

// Score computes the five category scores and the weighted overall for the
// window. Every returned score is in [0,10]; a result outside that range is
// an invariant violation and returned as an error.
func (s *Scorer) Score(w Window) (*Snapshot, error) {
	scores := map[Category]float64{
		Adherence:        s.scoreAdherence(w),
		MentalHealth:     s.scoreMentalHealth(w),
		SocialIsolation:  s.scoreSocialIsolation(w),
		CareCoordination: s.scoreCareCoordination(w),
		SystemTrust:      s.scoreSystemTrust(w),
	}

	overall := s.weights.Adherence*scores[Adherence] +
		s.weights.MentalHealth*scores[MentalHealth] +
		s.weights.SocialIsolation*scores[SocialIsolation] +
		s.weights.CareCoordination*scores[CareCoordination] +
		s.weights.SystemTrust*scores[SystemTrust]

	for cat, v := range scores {
		if v < 0 || v > 10 || math.IsNaN(v) {
			return nil, fmt.Errorf("category %s score %.4f outside [0,10]", cat, v)
		}
	}
	if overall < 0 || overall > 10 {
		return nil, fmt.Errorf("overall score %.4f outside [0,10]", overall)
	}

	return &Snapshot{
		SubjectID:    w.SubjectID,
		Scores:       scores,
		Overall:      overall,
		EventCount:   len(w.Events),
		LastActivity: w.LastActivity,
		CreatedAt:    w.Now,
	}, nil
}

// scoreAdherence is 10 * (1 - completionRate) over tracked task events.
func (s *Scorer) scoreAdherence(w Window) float64 {
	total, completed := 0, 0
	for _, e := range w.Events {
		m, ok := e.Meta.(event.TaskMeta)
		if !ok {
			continue
		}
		total++
		if m.Completed {
			completed++
		}
	}
	if total == 0 {
		return neutralScore
	}
	rate := float64(completed) / float64(total)
	return 10 * (1 - rate)
}

// recentCutoff splits the window for recency weighting: utterances in the
// last 7 days count 1.5x.
const recentWeight = 1.5

// scoreMentalHealth counts negative minus positive affect indicators in
// conversation transcripts, weighted by recency, offset from the neutral
// midpoint and clamped to [0,10].
func (s *Scorer) scoreMentalHealth(w Window) float64 {
	cutoff := w.Now.AddDate(0, 0, -7)

	net := 0.0
	conversations := 0
	for _, e := range w.Events {
		m, ok := e.Meta.(event.ConversationMeta)
		if !ok {
			continue
		}
		conversations++
		weight := 1.0
		if e.OccurredAt.After(cutoff) {
			weight = recentWeight
		}
		net += weight * float64(s.lex.CountNegative(m.Transcript))
		net -= weight * float64(s.lex.CountPositive(m.Transcript))
	}
	if conversations == 0 {
		return neutralScore
	}
	return clampScore(neutralScore + net)
}

// scoreSocialIsolation grows with days since the last interaction and is
// reduced when the window contains social-contact content.
func (s *Scorer) scoreSocialIsolation(w Window) float64 {
	lastContact := time.Time{}
	social := false
	for _, e := range w.Events {
		m, ok := e.Meta.(event.ConversationMeta)
		if !ok {
			continue
		}
		if e.OccurredAt.After(lastContact) {
			lastContact = e.OccurredAt
		}
		if s.lex.HasSocial(m.Transcript) {
			social = true
		}
	}
	if lastContact.IsZero() {
		lastContact = w.LastActivity
	}
	if lastContact.IsZero() {
		return neutralScore
	}

	days := w.Now.Sub(lastContact).Hours() / 24
	score := math.Min(10, days*0.5)
	if social {
		score -= 2
	}
	return clampScore(score)
}

// scoreCareCoordination combines the failed/cancelled referral ratio with
// the goal completion ratio.
func (s *Scorer) scoreCareCoordination(w Window) float64 {
	referrals, failedReferrals := 0, 0
	goals, completedGoals := 0, 0
	for _, e := range w.Events {
		switch m := e.Meta.(type) {
		case event.ReferralMeta:
			referrals++
			if m.Status == "failed" || m.Status == "cancelled" {
				failedReferrals++
			}
		case event.TaskMeta:
			if m.Goal == "" {
				continue
			}
			goals++
			if m.Completed {
				completedGoals++
			}
		}
	}
	if referrals == 0 && goals == 0 {
		return neutralScore
	}

	var parts, total float64
	if referrals > 0 {
		parts += 0.6 * (float64(failedReferrals) / float64(referrals))
		total += 0.6
	}
	if goals > 0 {
		parts += 0.4 * (1 - float64(completedGoals)/float64(goals))
		total += 0.4
	}
	return clampScore(10 * parts / total)
}

// scoreSystemTrust grows with days since any activity and with negative
// sentiment about the system itself.
func (s *Scorer) scoreSystemTrust(w Window) float64 {
	if w.LastActivity.IsZero() {
		return neutralScore
	}

	days := w.Now.Sub(w.LastActivity).Hours() / 24
	score := math.Min(10, days*0.4)

	for _, e := range w.Events {
		if m, ok := e.Meta.(event.ConversationMeta); ok {
			score += 1.5 * float64(s.lex.CountDistrust(m.Transcript))
		}
	}
	return clampScore(score)
}

func clampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 10:
		return 10
	default:
		return v
	}
}

package engagement

import (
	"fmt"
	"log"
	"time"

	"github.com/caretrace/caretrace/internal/event"
	"github.com/caretrace/caretrace/internal/store"
)

// Service applies lifecycle operations against the store.
type Service struct {
	db  *store.DB
	cfg FollowUpConfig
}

// NewService returns an engagement Service.
func NewService(db *store.DB, cfg FollowUpConfig) *Service {
	if len(cfg.StageDays) == 0 {
		cfg = DefaultFollowUpConfig()
	}
	return &Service{db: db, cfg: cfg}
}

// CreateFromNeed opens a DETECTED engagement from a detected-need event.
func (s *Service) CreateFromNeed(subjectID string, need event.NeedMeta, now time.Time) (*store.Engagement, error) {
	e := New(subjectID, need.ResourceID, need.Category, need.Confidence, need.TriggerPhrase, now)
	if err := s.db.InsertEngagement(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Advance applies a user-driven transition and persists the result.
func (s *Service) Advance(id, to, note string, now time.Time) (*store.Engagement, error) {
	e, err := s.db.GetEngagement(id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("engagement %s not found", id)
	}
	if err := Transition(e, to, note, now); err != nil {
		return nil, err
	}
	if err := s.db.UpdateEngagement(e); err != nil {
		return nil, err
	}
	return e, nil
}

// MarkEscalated flags an engagement for human attention.
func (s *Service) MarkEscalated(id, note string, now time.Time) (*store.Engagement, error) {
	e, err := s.db.GetEngagement(id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("engagement %s not found", id)
	}
	if err := Escalate(e, note, now); err != nil {
		return nil, err
	}
	if err := s.db.UpdateEngagement(e); err != nil {
		return nil, err
	}
	return e, nil
}

// RunFollowUps executes one follow-up pass: generates staged nudges and
// abandons engagements past the inactivity threshold. Safe to re-run; the
// per-day guard suppresses duplicate nudges.
func (s *Service) RunFollowUps(now time.Time) (Plan, error) {
	open, err := s.db.EngagementsInStates(NonTerminalStates())
	if err != nil {
		return Plan{}, fmt.Errorf("select open engagements: %w", err)
	}

	plan := PlanFollowUps(open, s.cfg, now)

	for _, intent := range plan.Intents {
		e, err := s.db.GetEngagement(intent.EngagementID)
		if err != nil || e == nil {
			log.Printf("follow-up: load %s: %v", intent.EngagementID, err)
			continue
		}
		MarkFollowedUp(e, now)
		if err := s.db.UpdateEngagement(e); err != nil {
			log.Printf("follow-up: update %s: %v", e.ID, err)
		}
	}

	for _, id := range plan.Abandon {
		e, err := s.db.GetEngagement(id)
		if err != nil || e == nil {
			log.Printf("abandon: load %s: %v", id, err)
			continue
		}
		if err := Abandon(e, now); err != nil {
			log.Printf("abandon: %v", err)
			continue
		}
		if err := s.db.UpdateEngagement(e); err != nil {
			log.Printf("abandon: update %s: %v", e.ID, err)
		}
	}

	return plan, nil
}

// Package engagement models the lifecycle of an offered community resource,
// from detection through a terminal outcome, plus the staged follow-up plan.
package engagement

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/caretrace/caretrace/internal/store"
)

// Engagement states. Transitions are one-directional; terminal states never
// re-open.
const (
	StateDetected  = "DETECTED"
	StateOffered   = "OFFERED"
	StateAccepted  = "ACCEPTED"
	StateDeclined  = "DECLINED"
	StateCompleted = "COMPLETED"
	StateFailed    = "FAILED"
	StateAbandoned = "ABANDONED"
)

// transitions is the allowed next-state set per state. ABANDONED is reachable
// from every non-terminal state, but only through Abandon (scheduler path).
var transitions = map[string][]string{
	StateDetected: {StateOffered, StateAbandoned},
	StateOffered:  {StateAccepted, StateDeclined, StateAbandoned},
	StateAccepted: {StateCompleted, StateFailed, StateAbandoned},
}

// Terminal reports whether a state accepts no further transitions.
func Terminal(state string) bool {
	switch state {
	case StateDeclined, StateCompleted, StateFailed, StateAbandoned:
		return true
	}
	return false
}

// NonTerminalStates lists the states the scheduler inspects.
func NonTerminalStates() []string {
	return []string{StateDetected, StateOffered, StateAccepted}
}

// InvalidTransitionError is returned for a transition outside the allowed
// set. It is a programmer-visible failure, never silently ignored.
type InvalidTransitionError struct {
	ID   string
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("engagement %s: invalid transition %s -> %s", e.ID, e.From, e.To)
}

// New creates a DETECTED engagement from a need signal. Detection confidence
// and the trigger phrase are retained for audit regardless of final state.
func New(subjectID, resourceID, category string, confidence float64, triggerPhrase string, now time.Time) *store.Engagement {
	ms := now.UnixMilli()
	return &store.Engagement{
		ID:            ulid.Make().String(),
		SubjectID:     subjectID,
		ResourceID:    resourceID,
		Category:      category,
		State:         StateDetected,
		Confidence:    confidence,
		TriggerPhrase: triggerPhrase,
		DetectedAt:    ms,
		UpdatedAt:     ms,
	}
}

// Transition moves an engagement to the target state, stamping the matching
// timestamp. Abandonment is excluded here; it belongs to the scheduler and
// goes through Abandon.
func Transition(e *store.Engagement, to string, note string, now time.Time) error {
	if to == StateAbandoned {
		return &InvalidTransitionError{ID: e.ID, From: e.State, To: to}
	}
	if !allowed(e.State, to) {
		return &InvalidTransitionError{ID: e.ID, From: e.State, To: to}
	}

	ms := now.UnixMilli()
	switch to {
	case StateOffered:
		e.OfferedAt = &ms
	case StateAccepted:
		e.AcceptedAt = &ms
	case StateDeclined, StateCompleted, StateFailed:
		e.ResolvedAt = &ms
	}
	if note != "" {
		e.OutcomeNote = note
	}
	e.State = to
	e.UpdatedAt = ms
	return nil
}

// Abandon marks a non-terminal engagement ABANDONED. Only the scheduler's
// inactivity pass calls this; user actions cannot reach ABANDONED.
func Abandon(e *store.Engagement, now time.Time) error {
	if !allowed(e.State, StateAbandoned) {
		return &InvalidTransitionError{ID: e.ID, From: e.State, To: StateAbandoned}
	}
	ms := now.UnixMilli()
	e.State = StateAbandoned
	e.ResolvedAt = &ms
	e.UpdatedAt = ms
	return nil
}

// Escalate flags an engagement for human attention. Escalation is an
// annotation, not a state: the lifecycle continues unchanged.
func Escalate(e *store.Engagement, note string, now time.Time) error {
	if Terminal(e.State) {
		return fmt.Errorf("engagement %s: cannot escalate terminal state %s", e.ID, e.State)
	}
	e.Escalated = true
	if note != "" {
		e.OutcomeNote = note
	}
	e.UpdatedAt = now.UnixMilli()
	return nil
}

func allowed(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

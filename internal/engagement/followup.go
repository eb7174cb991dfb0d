package engagement

import (
	"fmt"
	"time"

	"github.com/caretrace/caretrace/internal/store"
)

// FollowUpConfig tunes the staged follow-up schedule.
type FollowUpConfig struct {
	StageDays        []int `toml:"stage_days"`         // days after last activity for each nudge
	MaxFollowUps     int   `toml:"max_followups"`      // hard cap on nudges per engagement
	AbandonAfterDays int   `toml:"abandon_after_days"` // inactivity threshold for auto-abandon
}

// DefaultFollowUpConfig returns the 3/7/14-day schedule with abandonment
// after 14 days of inactivity.
func DefaultFollowUpConfig() FollowUpConfig {
	return FollowUpConfig{
		StageDays:        []int{3, 7, 14},
		MaxFollowUps:     3,
		AbandonAfterDays: 14,
	}
}

// Intent is a generated follow-up message for one engagement. The transport
// layer decides how to deliver it.
type Intent struct {
	EngagementID string `json:"engagement_id"`
	SubjectID    string `json:"subject_id"`
	State        string `json:"state"`
	Stage        int    `json:"stage"` // 1-based stage number
	ElapsedDays  int    `json:"elapsed_days"`
	Message      string `json:"message"`
}

// Plan is the outcome of one follow-up pass: nudges to send and engagements
// to abandon.
type Plan struct {
	Intents []Intent
	Abandon []string // engagement IDs past the inactivity threshold
}

// lastActivity returns the most recent user-driven state change. Follow-up
// timestamps are deliberately excluded so nudges do not push abandonment out
// indefinitely.
func lastActivity(e store.Engagement) int64 {
	ts := e.DetectedAt
	if e.OfferedAt != nil && *e.OfferedAt > ts {
		ts = *e.OfferedAt
	}
	if e.AcceptedAt != nil && *e.AcceptedAt > ts {
		ts = *e.AcceptedAt
	}
	return ts
}

// PlanFollowUps inspects non-terminal engagements and decides, per
// engagement, whether to abandon it or emit the next staged nudge. The
// lastFollowUpAt guard makes each pass idempotent per engagement per day.
func PlanFollowUps(engagements []store.Engagement, cfg FollowUpConfig, now time.Time) Plan {
	var plan Plan
	nowMs := now.UnixMilli()

	for _, e := range engagements {
		if Terminal(e.State) {
			continue
		}

		elapsedDays := int((nowMs - lastActivity(e)) / dayMillis)

		if elapsedDays >= cfg.AbandonAfterDays {
			plan.Abandon = append(plan.Abandon, e.ID)
			continue
		}

		if e.FollowUps >= cfg.MaxFollowUps || e.FollowUps >= len(cfg.StageDays) {
			continue
		}
		if elapsedDays < cfg.StageDays[e.FollowUps] {
			continue
		}
		// At most one nudge per engagement per day.
		if e.FollowUpAt != nil && nowMs-*e.FollowUpAt < dayMillis {
			continue
		}

		stage := e.FollowUps + 1
		plan.Intents = append(plan.Intents, Intent{
			EngagementID: e.ID,
			SubjectID:    e.SubjectID,
			State:        e.State,
			Stage:        stage,
			ElapsedDays:  elapsedDays,
			Message:      followUpMessage(e, stage, elapsedDays),
		})
	}
	return plan
}

// MarkFollowedUp records a sent nudge on the engagement row.
func MarkFollowedUp(e *store.Engagement, now time.Time) {
	ms := now.UnixMilli()
	e.FollowUps++
	e.FollowUpAt = &ms
	e.UpdatedAt = ms
}

const dayMillis = 24 * 60 * 60 * 1000

// followUpMessage keys the nudge text by state and how long things have been
// quiet. Final-stage nudges are more direct.
func followUpMessage(e store.Engagement, stage, elapsedDays int) string {
	resource := e.ResourceID
	if e.Category != "" {
		resource = fmt.Sprintf("%s (%s)", e.ResourceID, e.Category)
	}

	switch e.State {
	case StateDetected:
		return fmt.Sprintf("It sounded like %s could help. Would you like to hear more about it?", resource)
	case StateOffered:
		if stage >= 3 {
			return fmt.Sprintf("Just checking in one more time about %s. Would you like help getting connected, or should I set it aside?", resource)
		}
		return fmt.Sprintf("A few days ago we talked about %s. Are you still interested?", resource)
	case StateAccepted:
		if stage >= 3 {
			return fmt.Sprintf("You signed up for %s %d days ago. Did you get a chance to go? I can help if something got in the way.", resource, elapsedDays)
		}
		return fmt.Sprintf("How did it go with %s? I'd love to hear about it.", resource)
	default:
		return fmt.Sprintf("Checking in about %s.", resource)
	}
}

// Package event defines the normalized behavioral event shape shared by the
// scoring and memory pipelines, and validates raw event records at the
// ingestion boundary.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/caretrace/caretrace/internal/affect"
)

// Type classifies a behavioral event.
type Type string

const (
	TypeConversation Type = "conversation"
	TypeTask         Type = "task"
	TypeReferral     Type = "referral"
	TypeNeed         Type = "need"
	TypeOther        Type = "other"
)

// Event is a validated, canonical event record. Meta holds one of the known
// metadata shapes keyed by the event type.
type Event struct {
	ID         int64
	SubjectID  string
	Type       Type
	Meta       Meta
	OccurredAt time.Time
	CreatedAt  time.Time
}

// Meta is the tagged union of known event metadata shapes.
type Meta interface {
	Kind() string
}

// ConversationMeta captures a conversational moment: what was said and how.
type ConversationMeta struct {
	Transcript string       `json:"transcript"`
	Affect     affect.Label `json:"affect,omitempty"`
	Pitch      float64      `json:"pitch,omitempty"`
	Energy     float64      `json:"energy,omitempty"`
	Variance   float64      `json:"variance,omitempty"`
}

func (ConversationMeta) Kind() string { return "conversation" }

// TaskMeta records a tracked action the subject was expected to take.
type TaskMeta struct {
	TaskID    string `json:"task_id"`
	Goal      string `json:"goal,omitempty"`
	Completed bool   `json:"completed"`
}

func (TaskMeta) Kind() string { return "task" }

// ReferralMeta records the outcome of a community-resource referral.
type ReferralMeta struct {
	ReferralID string `json:"referral_id"`
	Status     string `json:"status"` // scheduled, completed, cancelled, failed
}

func (ReferralMeta) Kind() string { return "referral" }

// NeedMeta records a detected social need that may open an engagement.
type NeedMeta struct {
	Category      string  `json:"category"`
	ResourceID    string  `json:"resource_id"`
	Confidence    float64 `json:"confidence"`
	TriggerPhrase string  `json:"trigger_phrase,omitempty"`
}

func (NeedMeta) Kind() string { return "need" }

// OtherMeta preserves unrecognized payloads for forward compatibility.
type OtherMeta struct {
	Raw json.RawMessage `json:"raw,omitempty"`
}

func (OtherMeta) Kind() string { return "other" }

// Raw is the wire shape delivered by the transport layer.
type Raw struct {
	SubjectID string          `json:"subject_id"`
	EventType string          `json:"event_type"`
	Timestamp string          `json:"timestamp,omitempty"` // RFC 3339; empty means now
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ValidationError describes a rejected raw event. The offending payload is
// retained for logging; it never enters scoring math.
type ValidationError struct {
	Reason  string
	Payload json.RawMessage
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %s", e.Reason)
}

// Normalize validates a raw record and canonicalizes it into an Event.
func Normalize(raw Raw, now time.Time) (*Event, error) {
	if raw.SubjectID == "" {
		return nil, &ValidationError{Reason: "subject_id required", Payload: raw.Payload}
	}

	occurred := now
	if raw.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, raw.Timestamp)
		if err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("bad timestamp %q", raw.Timestamp), Payload: raw.Payload}
		}
		if t.After(now.Add(time.Minute)) {
			return nil, &ValidationError{Reason: "timestamp in the future", Payload: raw.Payload}
		}
		occurred = t
	}

	meta, typ, err := decodeMeta(raw.EventType, raw.Payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		SubjectID:  raw.SubjectID,
		Type:       typ,
		Meta:       meta,
		OccurredAt: occurred,
		CreatedAt:  now,
	}, nil
}

func decodeMeta(eventType string, payload json.RawMessage) (Meta, Type, error) {
	switch Type(eventType) {
	case TypeConversation:
		var m ConversationMeta
		if err := unmarshalMeta(payload, &m); err != nil {
			return nil, "", err
		}
		if m.Transcript == "" {
			return nil, "", &ValidationError{Reason: "conversation requires transcript", Payload: payload}
		}
		if m.Affect != "" && !affect.Known(m.Affect) {
			return nil, "", &ValidationError{Reason: fmt.Sprintf("unknown affect label %q", m.Affect), Payload: payload}
		}
		return m, TypeConversation, nil
	case TypeTask:
		var m TaskMeta
		if err := unmarshalMeta(payload, &m); err != nil {
			return nil, "", err
		}
		if m.TaskID == "" {
			return nil, "", &ValidationError{Reason: "task requires task_id", Payload: payload}
		}
		return m, TypeTask, nil
	case TypeReferral:
		var m ReferralMeta
		if err := unmarshalMeta(payload, &m); err != nil {
			return nil, "", err
		}
		switch m.Status {
		case "scheduled", "completed", "cancelled", "failed":
		default:
			return nil, "", &ValidationError{Reason: fmt.Sprintf("unknown referral status %q", m.Status), Payload: payload}
		}
		return m, TypeReferral, nil
	case TypeNeed:
		var m NeedMeta
		if err := unmarshalMeta(payload, &m); err != nil {
			return nil, "", err
		}
		if m.Category == "" || m.ResourceID == "" {
			return nil, "", &ValidationError{Reason: "need requires category and resource_id", Payload: payload}
		}
		if m.Confidence < 0 || m.Confidence > 1 {
			return nil, "", &ValidationError{Reason: "need confidence outside [0,1]", Payload: payload}
		}
		return m, TypeNeed, nil
	case "", TypeOther:
		return OtherMeta{Raw: payload}, TypeOther, nil
	default:
		// Unrecognized types are preserved, not rejected; they simply carry
		// no structured metadata.
		return OtherMeta{Raw: payload}, TypeOther, nil
	}
}

func unmarshalMeta(payload json.RawMessage, target any) error {
	if len(payload) == 0 {
		return &ValidationError{Reason: "payload required"}
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return &ValidationError{Reason: fmt.Sprintf("bad payload: %v", err), Payload: payload}
	}
	return nil
}

// EncodeMeta serializes a Meta for storage.
func EncodeMeta(m Meta) (kind string, data []byte, err error) {
	if m == nil {
		return "other", nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", nil, fmt.Errorf("encode meta: %w", err)
	}
	return m.Kind(), raw, nil
}

// DecodeMeta deserializes a stored Meta by kind. Unknown kinds decode as
// OtherMeta so old rows keep loading after a schema change.
func DecodeMeta(kind string, data []byte) (Meta, error) {
	switch kind {
	case "conversation":
		var m ConversationMeta
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode conversation meta: %w", err)
		}
		return m, nil
	case "task":
		var m TaskMeta
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode task meta: %w", err)
		}
		return m, nil
	case "referral":
		var m ReferralMeta
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode referral meta: %w", err)
		}
		return m, nil
	case "need":
		var m NeedMeta
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode need meta: %w", err)
		}
		return m, nil
	default:
		return OtherMeta{Raw: data}, nil
	}
}

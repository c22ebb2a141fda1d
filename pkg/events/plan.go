// Package events defines the payloads exchanged with the tracker importer and
// plan consumers.
package events

import "time"

const (
	// TopicSessionEvents carries SessionImported messages from the tracker importer.
	TopicSessionEvents = "session_events"
	// TopicPlanEvents carries SlotStateChanged messages emitted through the outbox.
	TopicPlanEvents = "plan_events"

	EventSessionImported  = "session.imported"
	EventSlotStateChanged = "plan.slot_state_changed"
)

// SessionImported is emitted when a recorded session lands in the session store.
type SessionImported struct {
	SessionID string    `json:"session_id"`
	AthleteID string    `json:"athlete_id"`
	Kind      string    `json:"kind"`
	StartedAt time.Time `json:"started_at"`
	Source    string    `json:"source,omitempty"`
}

// SlotStateChanged describes the new state of one plan slot after a persist.
type SlotStateChanged struct {
	EventID         string    `json:"event_id"`
	PlanID          string    `json:"plan_id"`
	AthleteID       string    `json:"athlete_id"`
	WeekIndex       int       `json:"week_index"`
	DayIndex        int       `json:"day_index"`
	State           string    `json:"state"`
	MatchType       string    `json:"match_type,omitempty"`
	SessionID       string    `json:"session_id,omitempty"`
	MatchConfidence *float64  `json:"match_confidence,omitempty"`
	MissedReason    string    `json:"missed_reason,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

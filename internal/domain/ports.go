package domain

import (
	"context"
	"time"
)

// PlanStore reads and writes training plans. Lookups return (nil, nil) when
// nothing matches.
type PlanStore interface {
	// ActivePlan returns the athlete's plan whose date range contains today.
	ActivePlan(ctx context.Context, athleteID string, today time.Time) (*TrainingPlan, error)
	GetPlan(ctx context.Context, athleteID, planID string) (*TrainingPlan, error)
	// PersistPlan replaces the stored plan. Last writer wins.
	PersistPlan(ctx context.Context, plan TrainingPlan) error
}

// SessionQuery pages through an athlete's sessions, oldest first. Since is
// inclusive, Until exclusive, both compared with the local start time.
type SessionQuery struct {
	Since  *time.Time
	Until  *time.Time
	Limit  int
	Offset int
}

// SessionStore reads imported sessions.
type SessionStore interface {
	ListSessions(ctx context.Context, athleteID string, q SessionQuery) ([]RecordedSession, error)
	GetSession(ctx context.Context, athleteID, sessionID string) (*RecordedSession, error)
}

// BaselineProvider aggregates an athlete's history. A nil baseline without
// error means there is not enough history.
type BaselineProvider interface {
	Baseline(ctx context.Context, athleteID string) (*AthleteBaseline, error)
}

// Suggestion is a medium-confidence match waiting for the athlete's decision.
type Suggestion struct {
	PlanID      string      `json:"plan_id"`
	AthleteID   string      `json:"athlete_id"`
	WeekIndex   int         `json:"week_index"`
	DayIndex    int         `json:"day_index"`
	SlotDate    time.Time   `json:"slot_date"`
	SlotTitle   string      `json:"slot_title,omitempty"`
	SessionID   string      `json:"session_id"`
	SessionName string      `json:"session_name,omitempty"`
	WorkoutType WorkoutType `json:"workout_type,omitempty"`
	Score       float64     `json:"score"`
	Reasons     []string    `json:"reasons,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// SuggestionStore keeps at most one suggestion per (plan, week, day).
type SuggestionStore interface {
	// SaveSuggestions upserts by slot.
	SaveSuggestions(ctx context.Context, suggestions []Suggestion) error
	ListSuggestions(ctx context.Context, athleteID string) ([]Suggestion, error)
	GetSuggestion(ctx context.Context, athleteID, planID string, week, day int) (*Suggestion, error)
	// RemoveSuggestion is a no-op when nothing is queued for the slot.
	RemoveSuggestion(ctx context.Context, athleteID, planID string, week, day int) error
}

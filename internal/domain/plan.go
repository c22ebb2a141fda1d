package domain

import (
	"slices"
	"time"
)

// WorkoutType is the semantic kind of a run, for sessions and planned slots alike.
type WorkoutType string

const (
	WorkoutRace     WorkoutType = "RACE"
	WorkoutInterval WorkoutType = "INTERVAL"
	WorkoutTempo    WorkoutType = "TEMPO"
	WorkoutLongRun  WorkoutType = "LONG_RUN"
	WorkoutEasyRun  WorkoutType = "EASY_RUN"
	WorkoutRecovery WorkoutType = "RECOVERY"
)

// SegmentKind labels a block within a planned workout.
type SegmentKind string

const (
	SegmentWarmup   SegmentKind = "WARMUP"
	SegmentMain     SegmentKind = "MAIN"
	SegmentInterval SegmentKind = "INTERVAL"
	SegmentCooldown SegmentKind = "COOLDOWN"
)

// MatchType records how a session became associated with a slot.
type MatchType string

const (
	MatchNone              MatchType = ""
	MatchAuto              MatchType = "auto"
	MatchManual            MatchType = "manual"
	MatchSuggestedAccepted MatchType = "suggested_accepted"
)

// CompletionType records how a slot was completed.
type CompletionType string

const (
	CompletionNone           CompletionType = ""
	CompletionMatched        CompletionType = "matched"
	CompletionManualCheckbox CompletionType = "manual_checkbox"
)

// TrainingPlan is an ordered sequence of weeks. Slot dates are always derived
// from StartDate.
type TrainingPlan struct {
	ID        string    `json:"id"`
	AthleteID string    `json:"athlete_id"`
	Title     string    `json:"title"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Weeks     []Week    `json:"weeks"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Week groups the slots of one plan week.
type Week struct {
	Focus string `json:"focus,omitempty"`
	Days  []Slot `json:"days"`
}

// Slot is one planned day and the only unit the matching engine mutates.
type Slot struct {
	DayName         string    `json:"day_name,omitempty"`
	IsRestDay       bool      `json:"is_rest_day"`
	Category        string    `json:"category,omitempty"`
	Title           string    `json:"title,omitempty"`
	PlannedDuration int       `json:"planned_duration_min,omitempty"`
	Segments        []Segment `json:"segments,omitempty"`

	IsCompleted      bool           `json:"is_completed"`
	IsMissed         bool           `json:"is_missed"`
	MatchedSessionID string         `json:"matched_session_id,omitempty"`
	MatchType        MatchType      `json:"match_type,omitempty"`
	MatchConfidence  *float64       `json:"match_confidence,omitempty"`
	CompletionDate   *time.Time     `json:"completion_date,omitempty"`
	CompletionType   CompletionType `json:"completion_type,omitempty"`
	MissedReason     string         `json:"missed_reason,omitempty"`
	UserNotes        string         `json:"user_notes,omitempty"`
}

// Segment is one block of a planned workout. Zone is 1-5, zero when unset.
type Segment struct {
	Kind        SegmentKind `json:"kind"`
	Description string      `json:"description,omitempty"`
	Duration    float64     `json:"duration,omitempty"`
	Unit        string      `json:"unit,omitempty"`
	Zone        int         `json:"zone,omitempty"`
}

// SlotState is the lifecycle state derived from a slot's fields.
type SlotState string

const (
	StateUnresolved SlotState = "unresolved"
	StateMatched    SlotState = "matched"
	StateCompleted  SlotState = "completed"
	StateMissed     SlotState = "missed"
)

// State derives the lifecycle state.
func (s Slot) State() SlotState {
	switch {
	case s.MatchedSessionID != "":
		return StateMatched
	case s.IsCompleted:
		return StateCompleted
	case s.IsMissed:
		return StateMissed
	}
	return StateUnresolved
}

// Clone returns a slot sharing no memory with s.
func (s Slot) Clone() Slot {
	out := s
	out.Segments = slices.Clone(s.Segments)
	if s.MatchConfidence != nil {
		c := *s.MatchConfidence
		out.MatchConfidence = &c
	}
	if s.CompletionDate != nil {
		d := *s.CompletionDate
		out.CompletionDate = &d
	}
	return out
}

// Clone returns a deep copy of the plan.
func (p TrainingPlan) Clone() TrainingPlan {
	out := p
	if p.Weeks == nil {
		return out
	}
	out.Weeks = make([]Week, len(p.Weeks))
	for w, week := range p.Weeks {
		days := make([]Slot, len(week.Days))
		for d, slot := range week.Days {
			days[d] = slot.Clone()
		}
		out.Weeks[w] = Week{Focus: week.Focus, Days: days}
	}
	return out
}

// Slot returns the slot at (week, day) or an IndexOutOfRangeError.
func (p TrainingPlan) Slot(week, day int) (Slot, error) {
	if week < 0 || week >= len(p.Weeks) {
		return Slot{}, &IndexOutOfRangeError{WeekIndex: week, DayIndex: day, Weeks: len(p.Weeks)}
	}
	days := p.Weeks[week].Days
	if day < 0 || day >= len(days) {
		return Slot{}, &IndexOutOfRangeError{WeekIndex: week, DayIndex: day, Weeks: len(p.Weeks), Days: len(days)}
	}
	return days[day], nil
}

// Contains reports whether date lies within the plan's stored range, inclusive.
// An unset end date leaves the range open.
func (p TrainingPlan) Contains(date time.Time) bool {
	day := DateOf(date)
	if day.Before(DateOf(p.StartDate)) {
		return false
	}
	return p.EndDate.IsZero() || !day.After(DateOf(p.EndDate))
}

// SessionSlot finds the slot already holding sessionID.
func (p TrainingPlan) SessionSlot(sessionID string) (week, day int, ok bool) {
	if sessionID == "" {
		return 0, 0, false
	}
	for w, wk := range p.Weeks {
		for d, slot := range wk.Days {
			if slot.MatchedSessionID == sessionID {
				return w, d, true
			}
		}
	}
	return 0, 0, false
}

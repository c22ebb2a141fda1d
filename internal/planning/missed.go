package planning

import (
	"time"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
)

// DefaultGraceDays is how long an unresolved slot may stay open before it is
// reported as missed.
const DefaultGraceDays = 3

// MissedSlot is an overdue, unresolved slot. Marked is set when the slot
// already carries the missed flag.
type MissedSlot struct {
	WeekIndex   int       `json:"week_index"`
	DayIndex    int       `json:"day_index"`
	Date        time.Time `json:"date"`
	DaysPastDue int       `json:"days_past_due"`
	Title       string    `json:"title,omitempty"`
	Marked      bool      `json:"marked,omitempty"`
}

// DetectMissed reports every non-rest slot that is neither completed nor
// matched and whose date lies more than graceDays before today. A negative
// graceDays falls back to DefaultGraceDays.
func DetectMissed(plan domain.TrainingPlan, today time.Time, graceDays int) []MissedSlot {
	if graceDays < 0 {
		graceDays = DefaultGraceDays
	}
	var out []MissedSlot
	for _, ref := range Slots(plan) {
		s := ref.Slot
		if s.IsRestDay || s.IsCompleted || s.MatchedSessionID != "" {
			continue
		}
		pastDue := domain.DaysBetween(ref.Date, today)
		if pastDue > graceDays {
			out = append(out, MissedSlot{
				WeekIndex:   ref.WeekIndex,
				DayIndex:    ref.DayIndex,
				Date:        ref.Date,
				DaysPastDue: pastDue,
				Title:       s.Title,
				Marked:      s.IsMissed,
			})
		}
	}
	return out
}

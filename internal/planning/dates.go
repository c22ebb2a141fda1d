// Package planning holds the pure plan calculations: slot dates, slot state
// transitions and missed-workout detection.
package planning

import (
	"time"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
)

// SlotDate returns the calendar date of (week, day) for a plan starting on
// start. Week 0 runs from the start date itself; every later week is a full
// Monday-to-Sunday week following the first Sunday on or after start.
func SlotDate(start time.Time, week, day int) time.Time {
	start = domain.DateOf(start)
	if week == 0 {
		return start.AddDate(0, 0, day)
	}
	toSunday := (7 - int(start.Weekday())) % 7
	firstSunday := start.AddDate(0, 0, toSunday)
	return firstSunday.AddDate(0, 0, 1+(week-1)*7+day)
}

// PlanSlotDate is SlotDate for a slot of plan.
func PlanSlotDate(plan domain.TrainingPlan, week, day int) time.Time {
	return SlotDate(plan.StartDate, week, day)
}

// SlotRef addresses one slot together with its derived date.
type SlotRef struct {
	WeekIndex int
	DayIndex  int
	Date      time.Time
	Slot      domain.Slot
}

// Slots lists every slot of the plan in schedule order with its date.
func Slots(plan domain.TrainingPlan) []SlotRef {
	var out []SlotRef
	for w, week := range plan.Weeks {
		for d, slot := range week.Days {
			out = append(out, SlotRef{WeekIndex: w, DayIndex: d, Date: SlotDate(plan.StartDate, w, d), Slot: slot})
		}
	}
	return out
}

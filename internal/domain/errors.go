package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPlanNotFound is returned when a plan id does not resolve for the athlete.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrSessionNotFound is returned when a session id does not resolve.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSuggestionNotFound is returned when no suggestion is queued for a slot.
	ErrSuggestionNotFound = errors.New("suggestion not found")
	// ErrInvalidInput marks caller mistakes that must not be retried.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMalformedPlan is returned for plans without a usable schedule.
	ErrMalformedPlan = fmt.Errorf("%w: malformed plan", ErrInvalidInput)
	// ErrSlotConflict is returned when a slot or session is already taken.
	ErrSlotConflict = errors.New("slot conflict")
)

// IndexOutOfRangeError reports week/day indices outside the plan.
type IndexOutOfRangeError struct {
	WeekIndex int
	DayIndex  int
	Weeks     int
	Days      int
}

func (e *IndexOutOfRangeError) Error() string {
	if e.WeekIndex < 0 || e.WeekIndex >= e.Weeks {
		return fmt.Sprintf("week index %d out of range (plan has %d weeks)", e.WeekIndex, e.Weeks)
	}
	return fmt.Sprintf("day index %d out of range (week %d has %d days)", e.DayIndex, e.WeekIndex, e.Days)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *IndexOutOfRangeError) Unwrap() error { return ErrInvalidInput }

// Package domain defines the training plan and recorded session model shared
// by the matching engine and its stores.
package domain

import "time"

// ActivityKind is the tracker's activity category.
type ActivityKind string

const (
	KindRun        ActivityKind = "run"
	KindTrailRun   ActivityKind = "trail_run"
	KindVirtualRun ActivityKind = "virtual_run"
	KindRide       ActivityKind = "ride"
	KindWalk       ActivityKind = "walk"
	KindOther      ActivityKind = "other"
)

// RecordedSession is one activity imported from the tracker. It is read-only
// input to the matching engine.
type RecordedSession struct {
	ID             string       `json:"id"`
	AthleteID      string       `json:"athlete_id"`
	Kind           ActivityKind `json:"kind"`
	Name           string       `json:"name,omitempty"`
	StartLocal     time.Time    `json:"start_local"`
	Start          time.Time    `json:"start"`
	DistanceMeters float64      `json:"distance_m"`
	MovingTimeSec  int          `json:"moving_time_s"`
	AverageSpeed   float64      `json:"average_speed_mps"`
	HeartRate      *HeartRate   `json:"heart_rate,omitempty"`
	AverageCadence *float64     `json:"average_cadence,omitempty"`
	Splits         []Split      `json:"splits,omitempty"`
}

// HeartRate summarises heart rate samples in beats per minute.
type HeartRate struct {
	Average float64 `json:"average"`
	Max     float64 `json:"max,omitempty"`
}

// Split is one per-segment pace sample (usually one kilometre).
type Split struct {
	DistanceMeters float64 `json:"distance_m"`
	MovingTimeSec  int     `json:"moving_time_s"`
	AverageSpeed   float64 `json:"average_speed_mps"`
}

// IsRun reports whether the session is of the tracked activity kind.
func (s RecordedSession) IsRun() bool {
	switch s.Kind {
	case KindRun, KindTrailRun, KindVirtualRun:
		return true
	}
	return false
}

// Date is the local calendar day the session started on.
func (s RecordedSession) Date() time.Time {
	if !s.StartLocal.IsZero() {
		return DateOf(s.StartLocal)
	}
	return DateOf(s.Start)
}

// DurationMinutes is the moving time in minutes.
func (s RecordedSession) DurationMinutes() float64 {
	return float64(s.MovingTimeSec) / 60
}

// PaceSecPerKm derives pace from average speed, falling back to distance and
// moving time. Zero means unknown.
func (s RecordedSession) PaceSecPerKm() float64 {
	if s.AverageSpeed > 0 {
		return 1000 / s.AverageSpeed
	}
	if s.DistanceMeters > 0 && s.MovingTimeSec > 0 {
		return float64(s.MovingTimeSec) / (s.DistanceMeters / 1000)
	}
	return 0
}

// AthleteBaseline aggregates an athlete's recent history. Zero fields mean the
// aggregate is unknown.
type AthleteBaseline struct {
	AthleteID             string  `json:"athlete_id"`
	AveragePaceSecPerKm   float64 `json:"average_pace_s_per_km"`
	LongestDistanceMeters float64 `json:"longest_distance_m"`
	AverageDistanceMeters float64 `json:"average_distance_m"`
	SessionsPerWeek       float64 `json:"sessions_per_week"`
}

// DateOf truncates t to its calendar day at UTC midnight, keeping the wall
// clock date of t's own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}

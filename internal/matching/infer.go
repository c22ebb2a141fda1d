package matching

import (
	"strings"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
)

// InferPlannedType derives the workout type a slot expects from its segments
// and planned duration.
func InferPlannedType(slot domain.Slot) domain.WorkoutType {
	var mainZones []int
	for _, seg := range slot.Segments {
		if seg.Kind == domain.SegmentInterval {
			return domain.WorkoutInterval
		}
		if seg.Kind == domain.SegmentMain && seg.Zone > 0 {
			mainZones = append(mainZones, seg.Zone)
		}
	}
	if len(mainZones) > 0 {
		mean := meanInt(mainZones)
		if mean >= 4 {
			return domain.WorkoutTempo
		}
		if mean <= 1.5 {
			return domain.WorkoutRecovery
		}
	}
	if PlannedMinutes(slot) > 90 {
		return domain.WorkoutLongRun
	}
	return domain.WorkoutEasyRun
}

// PlannedMinutes is the slot's planned duration, falling back to the sum of
// its time-based segments. Zero means no duration is planned.
func PlannedMinutes(slot domain.Slot) float64 {
	if slot.PlannedDuration > 0 {
		return float64(slot.PlannedDuration)
	}
	var total float64
	for _, seg := range slot.Segments {
		switch strings.ToLower(strings.TrimSpace(seg.Unit)) {
		case "min", "mins", "minute", "minutes":
			total += seg.Duration
		case "h", "hr", "hour", "hours":
			total += seg.Duration * 60
		case "s", "sec", "seconds":
			total += seg.Duration / 60
		}
	}
	return total
}

// meanZone averages every segment zone that is set.
func meanZone(segments []domain.Segment) (float64, bool) {
	var zones []int
	for _, seg := range segments {
		if seg.Zone > 0 {
			zones = append(zones, seg.Zone)
		}
	}
	if len(zones) == 0 {
		return 0, false
	}
	return meanInt(zones), true
}

func meanInt(values []int) float64 {
	var sum int
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

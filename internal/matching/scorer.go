package matching

import (
	"fmt"
	"math"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
	"github.com/deweiiss/sportMe-sub000/internal/planning"
)

const (
	weightDate      = 0.40
	weightType      = 0.30
	weightDuration  = 0.20
	weightIntensity = 0.10

	neutralScore = 0.5
)

// MatchScore is the weighted fit of one session to one candidate slot.
type MatchScore struct {
	Score          float64            `json:"score"`
	Band           Band               `json:"band"`
	DateScore      float64            `json:"date_score"`
	TypeScore      float64            `json:"type_score"`
	DurationScore  float64            `json:"duration_score"`
	IntensityScore float64            `json:"intensity_score"`
	PlannedType    domain.WorkoutType `json:"planned_type"`
	Reasons        []string           `json:"reasons,omitempty"`
}

type typePair struct{ a, b domain.WorkoutType }

// compatibility holds partial credit between differing workout types. Lookups
// are order-insensitive.
var compatibility = map[typePair]float64{
	{domain.WorkoutInterval, domain.WorkoutTempo}:   0.6,
	{domain.WorkoutEasyRun, domain.WorkoutRecovery}: 0.8,
	{domain.WorkoutLongRun, domain.WorkoutEasyRun}:  0.5,
	{domain.WorkoutRace, domain.WorkoutTempo}:       0.7,
	{domain.WorkoutRace, domain.WorkoutInterval}:    0.7,
	{domain.WorkoutTempo, domain.WorkoutEasyRun}:    0.4,
	{domain.WorkoutLongRun, domain.WorkoutTempo}:    0.4,
	{domain.WorkoutLongRun, domain.WorkoutRecovery}: 0.3,
}

const defaultCompatibility = 0.2

// Score rates how well session fits the candidate slot. class may be nil, in
// which case the type signal only earns the default compatibility.
func Score(session domain.RecordedSession, candidate planning.SlotRef, class *Classification) MatchScore {
	var reasons []string
	slot := candidate.Slot

	days := absDays(candidate.Date, session.Date())
	dateScore := DateScore(days)
	switch {
	case days == 0:
		reasons = append(reasons, "same day as planned")
	case dateScore > 0:
		reasons = append(reasons, fmt.Sprintf("%d day(s) from planned date", days))
	}

	planned := InferPlannedType(slot)
	typeScore := defaultCompatibility
	if class != nil {
		typeScore = TypeCompatibility(class.Type, planned)
		if typeScore == 1 {
			reasons = append(reasons, fmt.Sprintf("workout type %s matches plan", class.Type))
		} else if typeScore > defaultCompatibility {
			reasons = append(reasons, fmt.Sprintf("workout type %s is compatible with planned %s", class.Type, planned))
		}
	}

	durationScore := neutralScore
	if plannedMin := PlannedMinutes(slot); plannedMin > 0 {
		actual := session.DurationMinutes()
		variance := math.Abs(actual-plannedMin) / plannedMin
		durationScore = durationFromVariance(variance)
		if durationScore >= 0.8 {
			reasons = append(reasons, fmt.Sprintf("duration %.0f min close to planned %.0f min", actual, plannedMin))
		}
	}

	intensityScore := neutralScore
	plannedZone, hasZones := meanZone(slot.Segments)
	if session.HeartRate != nil && session.HeartRate.Average > 0 && hasZones {
		zone := HeartRateZone(session.HeartRate.Average)
		intensityScore = intensityFromZoneDiff(math.Round(math.Abs(float64(zone) - plannedZone)))
		if intensityScore >= 0.7 {
			reasons = append(reasons, fmt.Sprintf("heart rate zone %d near planned zone %.1f", zone, plannedZone))
		}
	}

	total := weightDate*dateScore + weightType*typeScore + weightDuration*durationScore + weightIntensity*intensityScore
	total = clamp01(math.Round(total*1000) / 1000)

	return MatchScore{
		Score:          total,
		Band:           BandFor(total),
		DateScore:      dateScore,
		TypeScore:      typeScore,
		DurationScore:  durationScore,
		IntensityScore: intensityScore,
		PlannedType:    planned,
		Reasons:        reasons,
	}
}

// DateScore maps the absolute day distance between session and slot to [0,1].
func DateScore(days int) float64 {
	if days < 0 {
		days = -days
	}
	switch {
	case days == 0:
		return 1.0
	case days == 1:
		return 0.8
	case days == 2:
		return 0.6
	case days <= CandidateWindowDays:
		return 0.4 - float64(days-2)*0.05
	}
	return 0
}

// TypeCompatibility scores a classified type against a planned type.
func TypeCompatibility(actual, planned domain.WorkoutType) float64 {
	if actual == planned {
		return 1.0
	}
	if v, ok := compatibility[typePair{actual, planned}]; ok {
		return v
	}
	if v, ok := compatibility[typePair{planned, actual}]; ok {
		return v
	}
	return defaultCompatibility
}

// HeartRateZone estimates a training zone from average heart rate.
func HeartRateZone(avg float64) int {
	switch {
	case avg < 140:
		return 1
	case avg < 155:
		return 2
	case avg < 165:
		return 3
	case avg < 175:
		return 4
	}
	return 5
}

func durationFromVariance(variance float64) float64 {
	switch {
	case variance < 0.10:
		return 1.0
	case variance < 0.25:
		return 0.8
	case variance < 0.50:
		return 0.5
	}
	return 0.2
}

func intensityFromZoneDiff(diff float64) float64 {
	switch diff {
	case 0:
		return 1.0
	case 1:
		return 0.7
	case 2:
		return 0.4
	}
	return 0.2
}

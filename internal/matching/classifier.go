// Package matching classifies recorded sessions and scores them against
// training plan slots.
package matching

import (
	"math"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
)

// Signals are the inputs behind a classification. Nil pointers mean the
// signal could not be computed from the available data.
type Signals struct {
	PaceVariation           *float64          `json:"pace_variation,omitempty"`
	RelativePace            *float64          `json:"relative_pace,omitempty"`
	RelativeDistanceLongest *float64          `json:"relative_distance_longest,omitempty"`
	RelativeDistanceAverage *float64          `json:"relative_distance_average,omitempty"`
	DurationMin             float64           `json:"duration_min"`
	Keywords                []KeywordCategory `json:"keywords,omitempty"`
	HasHeartRate            bool              `json:"has_heart_rate"`
	HasCadence              bool              `json:"has_cadence"`
}

// Classification is the workout type inferred for a session.
type Classification struct {
	Type       domain.WorkoutType `json:"type"`
	Confidence float64            `json:"confidence"`
	Signals    Signals            `json:"signals"`
}

// Classify infers the workout type of a run. It returns nil for sessions of
// any other activity kind. baseline may be nil.
func Classify(session domain.RecordedSession, baseline *domain.AthleteBaseline) *Classification {
	if !session.IsRun() {
		return nil
	}
	sig := computeSignals(session, baseline)
	return &Classification{
		Type:       decideType(sig),
		Confidence: confidence(sig),
		Signals:    sig,
	}
}

func computeSignals(session domain.RecordedSession, baseline *domain.AthleteBaseline) Signals {
	sig := Signals{
		PaceVariation: paceVariation(session.Splits),
		DurationMin:   session.DurationMinutes(),
		Keywords:      matchKeywords(session.Name),
		HasHeartRate:  session.HeartRate != nil && session.HeartRate.Average > 0,
		HasCadence:    session.AverageCadence != nil && *session.AverageCadence > 0,
	}
	if baseline == nil {
		return sig
	}
	if pace := session.PaceSecPerKm(); pace > 0 && baseline.AveragePaceSecPerKm > 0 {
		sig.RelativePace = ptr(pace / baseline.AveragePaceSecPerKm)
	}
	if session.DistanceMeters > 0 {
		if baseline.LongestDistanceMeters > 0 {
			sig.RelativeDistanceLongest = ptr(session.DistanceMeters / baseline.LongestDistanceMeters)
		}
		if baseline.AverageDistanceMeters > 0 {
			sig.RelativeDistanceAverage = ptr(session.DistanceMeters / baseline.AverageDistanceMeters)
		}
	}
	return sig
}

// paceVariation is the coefficient of variation of split pace.
func paceVariation(splits []domain.Split) *float64 {
	paces := make([]float64, 0, len(splits))
	for _, s := range splits {
		switch {
		case s.AverageSpeed > 0:
			paces = append(paces, 1000/s.AverageSpeed)
		case s.DistanceMeters > 0 && s.MovingTimeSec > 0:
			paces = append(paces, float64(s.MovingTimeSec)/(s.DistanceMeters/1000))
		}
	}
	if len(paces) < 2 {
		return nil
	}
	var sum float64
	for _, p := range paces {
		sum += p
	}
	mean := sum / float64(len(paces))
	var sq float64
	for _, p := range paces {
		sq += (p - mean) * (p - mean)
	}
	stdev := math.Sqrt(sq / float64(len(paces)))
	return ptr(stdev / mean)
}

func decideType(sig Signals) domain.WorkoutType {
	if len(sig.Keywords) > 0 {
		switch sig.Keywords[0] {
		case KeywordRace:
			return domain.WorkoutRace
		case KeywordInterval:
			return domain.WorkoutInterval
		case KeywordTempo:
			return domain.WorkoutTempo
		case KeywordLongRun:
			return domain.WorkoutLongRun
		}
	}
	switch {
	case sig.DurationMin > 90:
		return domain.WorkoutLongRun
	case above(sig.PaceVariation, 0.15):
		return domain.WorkoutInterval
	case below(sig.RelativePace, 0.90):
		return domain.WorkoutTempo
	case above(sig.RelativePace, 1.05):
		if sig.DurationMin < 25 {
			return domain.WorkoutRecovery
		}
		return domain.WorkoutEasyRun
	case above(sig.RelativeDistanceLongest, 0.75):
		return domain.WorkoutLongRun
	case below(sig.RelativeDistanceAverage, 0.4):
		return domain.WorkoutRecovery
	}
	// An easy keyword and no keyword both land on EASY_RUN.
	return domain.WorkoutEasyRun
}

func confidence(sig Signals) float64 {
	c := 0.5
	if sig.RelativePace != nil {
		c += 0.15
	}
	if sig.HasHeartRate {
		c += 0.15
	}
	if sig.PaceVariation != nil {
		c += 0.10
	}
	if sig.HasCadence {
		c += 0.05
	}
	if len(sig.Keywords) > 0 {
		c += keywordBonus(sig.Keywords[0])
	}
	if below(sig.RelativePace, 0.90) && above(sig.RelativeDistanceLongest, 0.8) {
		c -= 0.10
	}
	return clamp01(c)
}

func above(v *float64, limit float64) bool { return v != nil && *v > limit }
func below(v *float64, limit float64) bool { return v != nil && *v < limit }

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func ptr(v float64) *float64 { return &v }

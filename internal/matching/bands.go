package matching

import "github.com/deweiiss/sportMe-sub000/internal/planning"

// Band buckets a match score.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

const (
	HighThreshold   = 0.75
	MediumThreshold = 0.50
)

// BandFor returns the confidence band of score.
func BandFor(score float64) Band {
	switch {
	case score >= HighThreshold:
		return BandHigh
	case score >= MediumThreshold:
		return BandMedium
	}
	return BandLow
}

// ScoredCandidate pairs a slot with its score for one session.
type ScoredCandidate struct {
	Slot  planning.SlotRef
	Score MatchScore
}

// BestMatch returns the highest scoring candidate that is at least medium
// confidence. Ties go to the earliest plan date, then schedule order.
func BestMatch(scored []ScoredCandidate) (ScoredCandidate, bool) {
	var best ScoredCandidate
	found := false
	for _, c := range scored {
		if c.Score.Band == BandLow {
			continue
		}
		if !found || better(c, best) {
			best, found = c, true
		}
	}
	return best, found
}

func better(a, b ScoredCandidate) bool {
	if a.Score.Score != b.Score.Score {
		return a.Score.Score > b.Score.Score
	}
	if !a.Slot.Date.Equal(b.Slot.Date) {
		return a.Slot.Date.Before(b.Slot.Date)
	}
	if a.Slot.WeekIndex != b.Slot.WeekIndex {
		return a.Slot.WeekIndex < b.Slot.WeekIndex
	}
	return a.Slot.DayIndex < b.Slot.DayIndex
}

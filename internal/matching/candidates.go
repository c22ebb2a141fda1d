package matching

import (
	"time"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
	"github.com/deweiiss/sportMe-sub000/internal/planning"
)

// CandidateWindowDays bounds the distance between a session and a candidate slot.
const CandidateWindowDays = 7

// FindCandidates returns the slots a session on sessionDate could fill: not
// a rest day, not yet holding a session, and dated within seven calendar days.
func FindCandidates(plan domain.TrainingPlan, sessionDate time.Time) []planning.SlotRef {
	var out []planning.SlotRef
	for _, ref := range planning.Slots(plan) {
		if ref.Slot.IsRestDay || ref.Slot.MatchedSessionID != "" {
			continue
		}
		if absDays(ref.Date, sessionDate) <= CandidateWindowDays {
			out = append(out, ref)
		}
	}
	return out
}

func absDays(a, b time.Time) int {
	d := domain.DaysBetween(a, b)
	if d < 0 {
		return -d
	}
	return d
}

package matching

import (
	"cmp"
	"slices"
)

// Pairing is a scored candidate for the session at index Session of a pass.
type Pairing struct {
	Session int
	ScoredCandidate
}

// Assign places sessions on slots across a whole pass. Pairs are taken in
// descending score order (ties as in BestMatch, then the earlier session) and
// each slot and each session is used at most once. Low band pairs never
// assign. The result is ordered by session index.
func Assign(pairs []Pairing) []Pairing {
	ordered := slices.Clone(pairs)
	slices.SortStableFunc(ordered, func(a, b Pairing) int {
		switch {
		case better(a.ScoredCandidate, b.ScoredCandidate):
			return -1
		case better(b.ScoredCandidate, a.ScoredCandidate):
			return 1
		}
		return cmp.Compare(a.Session, b.Session)
	})

	var (
		out      []Pairing
		slotUsed = make(map[[2]int]bool)
		sessionUsed = make(map[int]bool)
	)
	for _, p := range ordered {
		if p.Score.Band == BandLow {
			continue
		}
		key := [2]int{p.Slot.WeekIndex, p.Slot.DayIndex}
		if slotUsed[key] || sessionUsed[p.Session] {
			continue
		}
		slotUsed[key] = true
		sessionUsed[p.Session] = true
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Pairing) int { return cmp.Compare(a.Session, b.Session) })
	return out
}

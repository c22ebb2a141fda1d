package planning

import (
	"fmt"
	"strings"
	"time"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
)

// TransitionKind names a slot state change.
type TransitionKind string

const (
	CompleteWithMatch    TransitionKind = "complete_with_match"
	ManualMatch          TransitionKind = "manual_match"
	CompleteWithoutMatch TransitionKind = "complete_without_match"
	MarkMissed           TransitionKind = "mark_missed"
	Unmatch              TransitionKind = "unmatch"
	AddNote              TransitionKind = "add_note"
	ClearMissed          TransitionKind = "clear_missed"
)

// Transition carries the data for one slot state change. Fields unused by the
// kind are ignored.
type Transition struct {
	Kind       TransitionKind
	SessionID  string
	MatchType  domain.MatchType
	Confidence float64
	Date       time.Time
	Reason     string
	Note       string
}

// SlotUpdate targets a transition at one slot.
type SlotUpdate struct {
	WeekIndex  int
	DayIndex   int
	Transition Transition
}

// Apply returns a copy of plan with t applied to (week, day). plan is never
// modified.
func Apply(plan domain.TrainingPlan, week, day int, t Transition) (domain.TrainingPlan, error) {
	return ApplyAll(plan, []SlotUpdate{{WeekIndex: week, DayIndex: day, Transition: t}})
}

// ApplyAll applies every update to a single copy of plan. Either all updates
// succeed or the error of the first failing one is returned and no plan.
func ApplyAll(plan domain.TrainingPlan, updates []SlotUpdate) (domain.TrainingPlan, error) {
	if len(plan.Weeks) == 0 {
		return domain.TrainingPlan{}, domain.ErrMalformedPlan
	}
	next := plan.Clone()
	for _, u := range updates {
		if _, err := next.Slot(u.WeekIndex, u.DayIndex); err != nil {
			return domain.TrainingPlan{}, err
		}
		slot := &next.Weeks[u.WeekIndex].Days[u.DayIndex]
		if err := transition(slot, u.Transition); err != nil {
			return domain.TrainingPlan{}, fmt.Errorf("week %d day %d: %w", u.WeekIndex, u.DayIndex, err)
		}
	}
	return next, nil
}

// CompleteMatched is the complete-with-match transition.
func CompleteMatched(plan domain.TrainingPlan, week, day int, sessionID string, matchType domain.MatchType, confidence float64, date time.Time) (domain.TrainingPlan, error) {
	return Apply(plan, week, day, Transition{Kind: CompleteWithMatch, SessionID: sessionID, MatchType: matchType, Confidence: confidence, Date: date})
}

// MatchManually associates a session chosen by the athlete, at confidence 1.0.
func MatchManually(plan domain.TrainingPlan, week, day int, sessionID string, date time.Time) (domain.TrainingPlan, error) {
	return Apply(plan, week, day, Transition{Kind: ManualMatch, SessionID: sessionID, Date: date})
}

// CompleteManually ticks a slot off without a session.
func CompleteManually(plan domain.TrainingPlan, week, day int, date time.Time, note string) (domain.TrainingPlan, error) {
	return Apply(plan, week, day, Transition{Kind: CompleteWithoutMatch, Date: date, Note: note})
}

// Miss marks a slot missed with reason.
func Miss(plan domain.TrainingPlan, week, day int, reason string) (domain.TrainingPlan, error) {
	return Apply(plan, week, day, Transition{Kind: MarkMissed, Reason: reason})
}

// Reset reverts a slot to unresolved.
func Reset(plan domain.TrainingPlan, week, day int) (domain.TrainingPlan, error) {
	return Apply(plan, week, day, Transition{Kind: Unmatch})
}

func transition(slot *domain.Slot, t Transition) error {
	switch t.Kind {
	case CompleteWithMatch:
		return completeWithMatch(slot, t.SessionID, t.MatchType, t.Confidence, t.Date)
	case ManualMatch:
		return completeWithMatch(slot, t.SessionID, domain.MatchManual, 1.0, t.Date)
	case CompleteWithoutMatch:
		clearMatch(slot)
		clearMissed(slot)
		slot.IsCompleted = true
		slot.CompletionType = domain.CompletionManualCheckbox
		slot.CompletionDate = dateRef(t.Date)
		if note := strings.TrimSpace(t.Note); note != "" {
			slot.UserNotes = note
		}
	case MarkMissed:
		clearMatch(slot)
		slot.IsCompleted = false
		slot.IsMissed = true
		slot.MissedReason = strings.TrimSpace(t.Reason)
	case Unmatch:
		clearMatch(slot)
		clearMissed(slot)
	case AddNote:
		slot.UserNotes = strings.TrimSpace(t.Note)
	case ClearMissed:
		clearMissed(slot)
	default:
		return fmt.Errorf("%w: unknown transition %q", domain.ErrInvalidInput, t.Kind)
	}
	return nil
}

func completeWithMatch(slot *domain.Slot, sessionID string, matchType domain.MatchType, confidence float64, date time.Time) error {
	switch {
	case slot.IsRestDay:
		return fmt.Errorf("%w: rest day cannot hold a session", domain.ErrInvalidInput)
	case sessionID == "":
		return fmt.Errorf("%w: session id required", domain.ErrInvalidInput)
	case matchType == domain.MatchNone:
		return fmt.Errorf("%w: match type required", domain.ErrInvalidInput)
	case confidence < 0 || confidence > 1:
		return fmt.Errorf("%w: confidence %.3f outside [0,1]", domain.ErrInvalidInput, confidence)
	}
	clearMissed(slot)
	conf := confidence
	slot.IsCompleted = true
	slot.MatchedSessionID = sessionID
	slot.MatchType = matchType
	slot.MatchConfidence = &conf
	slot.CompletionType = domain.CompletionMatched
	slot.CompletionDate = dateRef(date)
	return nil
}

// clearMatch resets the match and completion fields; IsMissed is left alone.
func clearMatch(slot *domain.Slot) {
	slot.IsCompleted = false
	slot.MatchedSessionID = ""
	slot.MatchType = domain.MatchNone
	slot.MatchConfidence = nil
	slot.CompletionDate = nil
	slot.CompletionType = domain.CompletionNone
}

func clearMissed(slot *domain.Slot) {
	slot.IsMissed = false
	slot.MissedReason = ""
}

func dateRef(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	d := domain.DateOf(t)
	return &d
}

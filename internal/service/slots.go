package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
	"github.com/deweiiss/sportMe-sub000/internal/observability"
	"github.com/deweiiss/sportMe-sub000/internal/planning"
)

// Outcome classifies a slot mutation result.
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeNoop     Outcome = "noop"
	OutcomeNotFound Outcome = "not_found"
	OutcomeConflict Outcome = "conflict"
	OutcomeFailed   Outcome = "failed"
)

// SlotResult reports a single-slot mutation. NotFound, conflicts and store
// failures are reported here; invalid indices are returned as errors.
type SlotResult struct {
	Success bool                 `json:"success"`
	Outcome Outcome              `json:"outcome"`
	Message string               `json:"message"`
	PlanID  string               `json:"plan_id,omitempty"`
	Slot    *domain.Slot         `json:"slot,omitempty"`
	Plan    *domain.TrainingPlan `json:"-"`
	Error   string               `json:"error,omitempty"`
}

func failed(planID, message string, err error) SlotResult {
	return SlotResult{Outcome: OutcomeFailed, PlanID: planID, Message: message, Error: err.Error()}
}

// AcceptSuggestion confirms a suggested association. The match is stored as
// suggested_accepted at a fixed confidence, whatever the original score was.
// Accepting the session a slot already holds is a no-op.
func (s *Service) AcceptSuggestion(ctx context.Context, athleteID, planID string, week, day int, sessionID string) (SlotResult, error) {
	if sessionID == "" {
		return SlotResult{}, fmt.Errorf("%w: session id required", domain.ErrInvalidInput)
	}
	result, err := s.mutateSlot(ctx, athleteID, planID, week, day, planning.Transition{
		Kind:       planning.CompleteWithMatch,
		SessionID:  sessionID,
		MatchType:  domain.MatchSuggestedAccepted,
		Confidence: AcceptedConfidence,
	})
	if err != nil {
		return result, err
	}
	if result.Outcome == OutcomeApplied || result.Outcome == OutcomeNoop {
		observability.RecordSuggestionDecision("accepted")
	}
	return result, nil
}

// RejectSuggestion drops the queued suggestion for a slot. The plan is never
// touched; rejecting twice is a no-op.
func (s *Service) RejectSuggestion(ctx context.Context, athleteID, planID string, week, day int) (SlotResult, error) {
	if week < 0 || day < 0 {
		return SlotResult{}, &domain.IndexOutOfRangeError{WeekIndex: week, DayIndex: day}
	}
	if s.suggestions == nil {
		return SlotResult{Success: true, Outcome: OutcomeNoop, PlanID: planID, Message: "no suggestion queued"}, nil
	}
	existing, err := s.suggestions.GetSuggestion(ctx, athleteID, planID, week, day)
	if err != nil {
		return failed(planID, "could not load suggestion", err), nil
	}
	if existing == nil {
		return SlotResult{Success: true, Outcome: OutcomeNoop, PlanID: planID, Message: "no suggestion queued"}, nil
	}
	if err := s.suggestions.RemoveSuggestion(ctx, athleteID, planID, week, day); err != nil {
		return failed(planID, "could not remove suggestion", err), nil
	}
	observability.RecordSuggestionDecision("rejected")
	return SlotResult{Success: true, Outcome: OutcomeApplied, PlanID: planID, Message: "suggestion rejected"}, nil
}

// ApplyTransition runs a manual slot change for the athlete, such as a manual
// match, ticking a slot off, or marking it missed.
func (s *Service) ApplyTransition(ctx context.Context, athleteID, planID string, week, day int, t planning.Transition) (SlotResult, error) {
	if t.Kind == planning.ManualMatch && t.SessionID == "" {
		return SlotResult{}, fmt.Errorf("%w: session id required", domain.ErrInvalidInput)
	}
	return s.mutateSlot(ctx, athleteID, planID, week, day, t)
}

// mutateSlot is the read, rewrite, persist unit shared by every single-slot
// change. It waits for a running matching pass of the athlete to finish.
func (s *Service) mutateSlot(ctx context.Context, athleteID, planID string, week, day int, t planning.Transition) (SlotResult, error) {
	release, err := s.guard.Acquire(ctx, athleteID)
	if err != nil {
		return failed(planID, "cancelled waiting for running pass", err), nil
	}
	defer release()

	logger := s.logger.With(slog.String("athlete_id", athleteID), slog.String("plan_id", planID))
	plan, err := s.plans.GetPlan(ctx, athleteID, planID)
	if err != nil {
		logger.ErrorContext(ctx, "plan lookup failed", slog.Any("error", err))
		return failed(planID, "could not load plan", err), nil
	}
	if plan == nil {
		return SlotResult{Outcome: OutcomeNotFound, PlanID: planID, Message: domain.ErrPlanNotFound.Error()}, nil
	}
	slot, err := plan.Slot(week, day)
	if err != nil {
		return SlotResult{}, err
	}

	if t.SessionID != "" && (t.Kind == planning.CompleteWithMatch || t.Kind == planning.ManualMatch) {
		if slot.MatchedSessionID == t.SessionID {
			s.dropSuggestion(ctx, logger, athleteID, planID, week, day)
			return SlotResult{Success: true, Outcome: OutcomeNoop, PlanID: planID, Slot: &slot, Plan: plan, Message: "slot already holds this session"}, nil
		}
		if slot.MatchedSessionID != "" {
			return SlotResult{Outcome: OutcomeConflict, PlanID: planID, Slot: &slot, Message: "slot already holds another session"}, nil
		}
		if w, d, taken := plan.SessionSlot(t.SessionID); taken {
			return SlotResult{Outcome: OutcomeConflict, PlanID: planID, Message: fmt.Sprintf("session already matched to week %d day %d", w, d)}, nil
		}
		session, err := s.sessions.GetSession(ctx, athleteID, t.SessionID)
		if err != nil {
			return failed(planID, "could not load session", err), nil
		}
		if session == nil {
			return SlotResult{Outcome: OutcomeNotFound, PlanID: planID, Message: domain.ErrSessionNotFound.Error()}, nil
		}
		if t.Date.IsZero() {
			t.Date = session.Date()
		}
	}
	if t.Kind == planning.CompleteWithoutMatch && t.Date.IsZero() {
		t.Date = s.now()
	}

	next, err := planning.Apply(*plan, week, day, t)
	if err != nil {
		return SlotResult{}, err
	}
	next.UpdatedAt = s.now()
	if err := s.plans.PersistPlan(ctx, next); err != nil {
		logger.ErrorContext(ctx, "plan persist failed", slog.String("transition", string(t.Kind)), slog.Any("error", err))
		return failed(planID, "slot change not persisted", err), nil
	}
	observability.RecordPlanPersisted(next.UpdatedAt)
	s.invalidate(ctx, logger, athleteID, planID)

	switch t.Kind {
	case planning.CompleteWithMatch, planning.ManualMatch, planning.CompleteWithoutMatch, planning.MarkMissed:
		s.dropSuggestion(ctx, logger, athleteID, planID, week, day)
	}

	updated := next.Weeks[week].Days[day]
	logger.InfoContext(ctx, "slot updated",
		slog.Int("week", week),
		slog.Int("day", day),
		slog.String("transition", string(t.Kind)),
		slog.String("state", string(updated.State())),
	)
	return SlotResult{Success: true, Outcome: OutcomeApplied, PlanID: planID, Slot: &updated, Plan: &next, Message: "slot updated"}, nil
}

func (s *Service) dropSuggestion(ctx context.Context, logger *slog.Logger, athleteID, planID string, week, day int) {
	if s.suggestions == nil {
		return
	}
	if err := s.suggestions.RemoveSuggestion(ctx, athleteID, planID, week, day); err != nil {
		logger.WarnContext(ctx, "removing suggestion failed", slog.Any("error", err))
	}
}

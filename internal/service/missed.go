package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
	"github.com/deweiiss/sportMe-sub000/internal/observability"
	"github.com/deweiiss/sportMe-sub000/internal/planning"
)

// MissedResult lists overdue slots of the active plan.
type MissedResult struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	PlanID  string                `json:"plan_id,omitempty"`
	Missed  []planning.MissedSlot `json:"missed"`
	Marked  int                   `json:"marked,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// MissedWorkouts reports the active plan's overdue slots without changing
// them. A negative graceDays uses the configured default.
func (s *Service) MissedWorkouts(ctx context.Context, athleteID string, graceDays int) (MissedResult, error) {
	plan, result := s.activeForMissed(ctx, athleteID)
	if plan == nil {
		return result, nil
	}
	if len(plan.Weeks) == 0 {
		return result, fmt.Errorf("plan %s: %w", plan.ID, domain.ErrMalformedPlan)
	}
	result.Missed = planning.DetectMissed(*plan, s.now(), s.grace(graceDays))
	result.Success = true
	result.Message = fmt.Sprintf("%d overdue slot(s)", len(result.Missed))
	observability.RecordMissed(len(result.Missed))
	return result, nil
}

// MarkOverdueMissed marks every overdue slot of the active plan as missed in
// one rewrite. Slots that already carry the flag are left alone.
func (s *Service) MarkOverdueMissed(ctx context.Context, athleteID string, graceDays int, reason string) (MissedResult, error) {
	release, err := s.guard.Acquire(ctx, athleteID)
	if err != nil {
		return MissedResult{Message: "cancelled waiting for running pass", Error: err.Error()}, nil
	}
	defer release()

	plan, result := s.activeForMissed(ctx, athleteID)
	if plan == nil {
		return result, nil
	}
	if len(plan.Weeks) == 0 {
		return result, fmt.Errorf("plan %s: %w", plan.ID, domain.ErrMalformedPlan)
	}
	grace := s.grace(graceDays)
	result.Missed = planning.DetectMissed(*plan, s.now(), grace)
	var missed []planning.MissedSlot
	for _, m := range result.Missed {
		if !m.Marked {
			missed = append(missed, m)
		}
	}
	if len(missed) == 0 {
		result.Success = true
		result.Message = "nothing overdue"
		return result, nil
	}
	if reason == "" {
		reason = fmt.Sprintf("not completed within %d days", grace)
	}

	updates := make([]planning.SlotUpdate, 0, len(missed))
	for _, m := range missed {
		updates = append(updates, planning.SlotUpdate{WeekIndex: m.WeekIndex, DayIndex: m.DayIndex, Transition: planning.Transition{Kind: planning.MarkMissed, Reason: reason}})
	}
	next, err := planning.ApplyAll(*plan, updates)
	if err != nil {
		return result, err
	}
	next.UpdatedAt = s.now()
	logger := s.logger.With(slog.String("athlete_id", athleteID), slog.String("plan_id", plan.ID))
	if err := s.plans.PersistPlan(ctx, next); err != nil {
		logger.ErrorContext(ctx, "plan persist failed", slog.Any("error", err))
		result.Message = "missed slots not persisted"
		result.Error = err.Error()
		return result, nil
	}
	observability.RecordPlanPersisted(next.UpdatedAt)
	s.invalidate(ctx, logger, athleteID, plan.ID)

	result.Success = true
	result.Marked = len(missed)
	result.Message = fmt.Sprintf("marked %d slot(s) missed", len(missed))
	return result, nil
}

func (s *Service) activeForMissed(ctx context.Context, athleteID string) (*domain.TrainingPlan, MissedResult) {
	plan, err := s.plans.ActivePlan(ctx, athleteID, s.now())
	if err != nil {
		return nil, MissedResult{Message: "could not load active plan", Error: err.Error()}
	}
	if plan == nil {
		return nil, MissedResult{Success: true, Message: "no active training plan"}
	}
	return plan, MissedResult{PlanID: plan.ID, Missed: []planning.MissedSlot{}}
}

func (s *Service) grace(days int) int {
	if days < 0 {
		return s.graceDays
	}
	return days
}

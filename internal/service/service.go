// Package service runs matching passes against an athlete's active training
// plan and applies the resulting slot changes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/deweiiss/sportMe-sub000/internal/cache"
	"github.com/deweiiss/sportMe-sub000/internal/domain"
	"github.com/deweiiss/sportMe-sub000/internal/matching"
	"github.com/deweiiss/sportMe-sub000/internal/observability"
	"github.com/deweiiss/sportMe-sub000/internal/planning"
)

const (
	defaultPageSize    = 50
	defaultMaxSessions = 500

	// AcceptedConfidence is stored for every suggestion the athlete confirms.
	AcceptedConfidence = 0.65
)

// Service is the matching orchestrator. It is the only component that talks
// to the stores.
type Service struct {
	plans       domain.PlanStore
	sessions    domain.SessionStore
	baselines   domain.BaselineProvider
	suggestions domain.SuggestionStore

	guard       *Guard
	invalidator cache.Invalidator
	logger      *slog.Logger
	now         func() time.Time
	pageSize    int
	maxSessions int
	graceDays   int
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the wall clock used for "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithInvalidator sets the plan cache invalidator.
func WithInvalidator(inv cache.Invalidator) Option {
	return func(s *Service) {
		if inv != nil {
			s.invalidator = inv
		}
	}
}

// WithGuard shares a guard between services in one process.
func WithGuard(g *Guard) Option {
	return func(s *Service) {
		if g != nil {
			s.guard = g
		}
	}
}

// WithSessionPaging sets the page size and the cap on sessions per pass.
func WithSessionPaging(pageSize, maxSessions int) Option {
	return func(s *Service) {
		if pageSize > 0 {
			s.pageSize = pageSize
		}
		if maxSessions > 0 {
			s.maxSessions = maxSessions
		}
	}
}

// WithGraceDays sets the default missed-workout grace period.
func WithGraceDays(days int) Option {
	return func(s *Service) {
		if days >= 0 {
			s.graceDays = days
		}
	}
}

// New constructs a Service. baselines may be nil.
func New(plans domain.PlanStore, sessions domain.SessionStore, baselines domain.BaselineProvider, suggestions domain.SuggestionStore, opts ...Option) *Service {
	s := &Service{
		plans:       plans,
		sessions:    sessions,
		baselines:   baselines,
		suggestions: suggestions,
		guard:       NewGuard(),
		invalidator: cache.NoopInvalidator{},
		logger:      slog.Default(),
		now:         func() time.Time { return time.Now().UTC() },
		pageSize:    defaultPageSize,
		maxSessions: defaultMaxSessions,
		graceDays:   planning.DefaultGraceDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MatchOptions narrows a matching pass.
type MatchOptions struct {
	// Since skips sessions that started before this date.
	Since *time.Time
}

// AppliedMatch describes one auto-applied association.
type AppliedMatch struct {
	WeekIndex   int                `json:"week_index"`
	DayIndex    int                `json:"day_index"`
	SlotDate    time.Time          `json:"slot_date"`
	SessionID   string             `json:"session_id"`
	WorkoutType domain.WorkoutType `json:"workout_type"`
	Score       float64            `json:"score"`
	Reasons     []string           `json:"reasons,omitempty"`
}

// MatchResult reports a matching pass. Store failures are reported here with
// Success false rather than returned as errors.
type MatchResult struct {
	Success     bool                `json:"success"`
	Skipped     bool                `json:"skipped,omitempty"`
	Message     string              `json:"message"`
	PlanID      string              `json:"plan_id,omitempty"`
	Considered  int                 `json:"sessions_considered"`
	Matched     int                 `json:"matched"`
	Suggested   int                 `json:"suggested"`
	AutoMatches []AppliedMatch      `json:"auto_matches,omitempty"`
	Suggestions []domain.Suggestion `json:"suggestions,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// RunMatchPass matches the athlete's unmatched sessions against the active
// plan. Only one pass per athlete runs at a time; a concurrent call returns a
// skipped result immediately. The returned error is non-nil only for invalid
// input such as a plan without a schedule.
func (s *Service) RunMatchPass(ctx context.Context, athleteID string, opts MatchOptions) (MatchResult, error) {
	release, ok := s.guard.TryAcquire(athleteID)
	if !ok {
		observability.RecordPass(observability.OutcomeSkipped, 0)
		s.logger.InfoContext(ctx, "matching pass already running", slog.String("athlete_id", athleteID))
		return MatchResult{Success: true, Skipped: true, Message: "matching pass already running"}, nil
	}
	defer release()

	started := time.Now()
	result, err := s.runPass(ctx, athleteID, opts)
	outcome := observability.OutcomeNoop
	switch {
	case err != nil || !result.Success:
		outcome = observability.OutcomeFailed
	case result.Matched > 0 || result.Suggested > 0:
		outcome = observability.OutcomeMatched
	}
	observability.RecordPass(outcome, time.Since(started))
	return result, err
}

func (s *Service) runPass(ctx context.Context, athleteID string, opts MatchOptions) (MatchResult, error) {
	today := s.now()
	logger := s.logger.With(slog.String("athlete_id", athleteID))

	plan, err := s.plans.ActivePlan(ctx, athleteID, today)
	if err != nil {
		logger.ErrorContext(ctx, "active plan lookup failed", slog.Any("error", err))
		if errors.Is(err, domain.ErrInvalidInput) {
			return MatchResult{Message: "plan has no usable schedule", Error: err.Error()}, err
		}
		return MatchResult{Message: "could not load active plan", Error: err.Error()}, nil
	}
	if plan == nil {
		return MatchResult{Success: true, Message: "no active training plan"}, nil
	}
	if len(plan.Weeks) == 0 {
		return MatchResult{PlanID: plan.ID, Message: "plan has no schedule"}, fmt.Errorf("plan %s: %w", plan.ID, domain.ErrMalformedPlan)
	}
	result := MatchResult{PlanID: plan.ID}
	logger = logger.With(slog.String("plan_id", plan.ID))

	sessions, err := s.fetchSessions(ctx, athleteID, *plan, opts.Since)
	if err != nil {
		logger.ErrorContext(ctx, "session fetch failed", slog.Any("error", err))
		result.Message = "could not load sessions"
		result.Error = err.Error()
		return result, nil
	}
	result.Considered = len(sessions)
	if len(sessions) == 0 {
		result.Success = true
		result.Message = "no unmatched sessions in plan range"
		return result, nil
	}

	baseline := s.baseline(ctx, logger, athleteID)

	var (
		classes = make([]*matching.Classification, len(sessions))
		pairs   []matching.Pairing
	)
	for i, session := range sessions {
		class := matching.Classify(session, baseline)
		if class == nil {
			continue
		}
		classes[i] = class
		observability.RecordClassified(string(class.Type))
		for _, ref := range matching.FindCandidates(*plan, session.Date()) {
			pairs = append(pairs, matching.Pairing{
				Session:         i,
				ScoredCandidate: matching.ScoredCandidate{Slot: ref, Score: matching.Score(session, ref, class)},
			})
		}
	}

	var (
		updates     []planning.SlotUpdate
		suggestions []domain.Suggestion
	)
	for _, best := range matching.Assign(pairs) {
		session, class := sessions[best.Session], classes[best.Session]
		switch best.Score.Band {
		case matching.BandHigh:
			updates = append(updates, planning.SlotUpdate{
				WeekIndex: best.Slot.WeekIndex,
				DayIndex:  best.Slot.DayIndex,
				Transition: planning.Transition{
					Kind:       planning.CompleteWithMatch,
					SessionID:  session.ID,
					MatchType:  domain.MatchAuto,
					Confidence: best.Score.Score,
					Date:       session.Date(),
				},
			})
			result.AutoMatches = append(result.AutoMatches, AppliedMatch{
				WeekIndex:   best.Slot.WeekIndex,
				DayIndex:    best.Slot.DayIndex,
				SlotDate:    best.Slot.Date,
				SessionID:   session.ID,
				WorkoutType: class.Type,
				Score:       best.Score.Score,
				Reasons:     best.Score.Reasons,
			})
		case matching.BandMedium:
			suggestions = append(suggestions, domain.Suggestion{
				PlanID:      plan.ID,
				AthleteID:   athleteID,
				WeekIndex:   best.Slot.WeekIndex,
				DayIndex:    best.Slot.DayIndex,
				SlotDate:    best.Slot.Date,
				SlotTitle:   best.Slot.Slot.Title,
				SessionID:   session.ID,
				SessionName: session.Name,
				WorkoutType: class.Type,
				Score:       best.Score.Score,
				Reasons:     best.Score.Reasons,
				CreatedAt:   today,
			})
		}
	}

	if len(updates) > 0 {
		next, err := planning.ApplyAll(*plan, updates)
		if err != nil {
			return result, err
		}
		next.UpdatedAt = today
		if err := s.plans.PersistPlan(ctx, next); err != nil {
			logger.ErrorContext(ctx, "plan persist failed", slog.Int("auto_matches", len(updates)), slog.Any("error", err))
			result.AutoMatches = nil
			result.Message = "matches computed but not persisted; rerun the pass"
			result.Error = err.Error()
			return result, nil
		}
		observability.RecordPlanPersisted(today)
		s.invalidate(ctx, logger, athleteID, plan.ID)
	}
	for range updates {
		observability.RecordMatch(string(matching.BandHigh), "auto")
	}

	if len(suggestions) > 0 && s.suggestions != nil {
		if err := s.suggestions.SaveSuggestions(ctx, suggestions); err != nil {
			logger.WarnContext(ctx, "saving suggestions failed", slog.Any("error", err))
		}
		for range suggestions {
			observability.RecordMatch(string(matching.BandMedium), "suggested")
		}
	}

	result.Success = true
	result.Matched = len(updates)
	result.Suggested = len(suggestions)
	result.Suggestions = suggestions
	result.Message = fmt.Sprintf("matched %d session(s), %d suggestion(s) awaiting review", result.Matched, result.Suggested)
	logger.InfoContext(ctx, "matching pass finished",
		slog.Int("sessions", result.Considered),
		slog.Int("matched", result.Matched),
		slog.Int("suggested", result.Suggested),
	)
	return result, nil
}

// fetchSessions pages through the store and keeps runs inside the plan range
// that no slot of the plan already holds, oldest first.
func (s *Service) fetchSessions(ctx context.Context, athleteID string, plan domain.TrainingPlan, since *time.Time) ([]domain.RecordedSession, error) {
	from := domain.DateOf(plan.StartDate)
	if since != nil && domain.DateOf(*since).After(from) {
		from = domain.DateOf(*since)
	}
	query := domain.SessionQuery{Since: &from, Limit: s.pageSize}
	if !plan.EndDate.IsZero() {
		until := domain.DateOf(plan.EndDate).AddDate(0, 0, 1)
		query.Until = &until
	}

	var out []domain.RecordedSession
	for fetched := 0; fetched < s.maxSessions; {
		page, err := s.sessions.ListSessions(ctx, athleteID, query)
		if err != nil {
			return nil, err
		}
		for _, session := range page {
			date := session.Date()
			if date.Before(from) || !plan.Contains(date) {
				continue
			}
			if _, _, taken := plan.SessionSlot(session.ID); taken {
				continue
			}
			out = append(out, session)
		}
		fetched += len(page)
		if len(page) < query.Limit {
			break
		}
		query.Offset += len(page)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *Service) baseline(ctx context.Context, logger *slog.Logger, athleteID string) *domain.AthleteBaseline {
	if s.baselines == nil {
		return nil
	}
	baseline, err := s.baselines.Baseline(ctx, athleteID)
	if err != nil {
		logger.WarnContext(ctx, "baseline unavailable, classifying without it", slog.Any("error", err))
		return nil
	}
	return baseline
}

func (s *Service) invalidate(ctx context.Context, logger *slog.Logger, athleteID, planID string) {
	if err := s.invalidator.InvalidatePlan(ctx, athleteID, planID); err != nil {
		var invErr *cache.InvalidationError
		if errors.As(err, &invErr) {
			logger.WarnContext(ctx, "plan cache invalidation rejected", slog.Int("status", invErr.Status))
			return
		}
		logger.WarnContext(ctx, "plan cache invalidation failed", slog.Any("error", err))
	}
}

// ActivePlan returns the athlete's active plan, or nil when there is none.
func (s *Service) ActivePlan(ctx context.Context, athleteID string) (*domain.TrainingPlan, error) {
	return s.plans.ActivePlan(ctx, athleteID, s.now())
}

// Suggestions lists the athlete's queued suggestions.
func (s *Service) Suggestions(ctx context.Context, athleteID string) ([]domain.Suggestion, error) {
	if s.suggestions == nil {
		return nil, nil
	}
	return s.suggestions.ListSuggestions(ctx, athleteID)
}

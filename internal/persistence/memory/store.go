// Package memory is an in-process store for local development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
	"github.com/deweiiss/sportMe-sub000/internal/matching"
)

type slotKey struct {
	planID string
	week   int
	day    int
}

// Store implements the plan, session, baseline and suggestion ports.
type Store struct {
	mu          sync.RWMutex
	plans       map[string]domain.TrainingPlan
	sessions    map[string][]domain.RecordedSession
	suggestions map[string]map[slotKey]domain.Suggestion
	now         func() time.Time
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		plans:       make(map[string]domain.TrainingPlan),
		sessions:    make(map[string][]domain.RecordedSession),
		suggestions: make(map[string]map[slotKey]domain.Suggestion),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the clock used for baselines and plan timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SavePlan stores a plan, assigning an id when it has none.
func (s *Store) SavePlan(plan domain.TrainingPlan) domain.TrainingPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(plan.ID) == "" {
		plan.ID = uuid.NewString()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = s.now()
	}
	s.plans[plan.ID] = plan.Clone()
	return plan
}

// AddSessions records imported sessions. A session with a known id replaces
// the stored copy.
func (s *Store) AddSessions(sessions ...domain.RecordedSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range sessions {
		if session.ID == "" {
			session.ID = uuid.NewString()
		}
		list := s.sessions[session.AthleteID]
		replaced := false
		for i := range list {
			if list[i].ID == session.ID {
				list[i] = session
				replaced = true
			}
		}
		if !replaced {
			list = append(list, session)
		}
		sort.SliceStable(list, func(i, j int) bool { return list[i].Start.Before(list[j].Start) })
		s.sessions[session.AthleteID] = list
	}
}

// ActivePlan implements domain.PlanStore. The most recently started plan
// wins when ranges overlap.
func (s *Store) ActivePlan(_ context.Context, athleteID string, today time.Time) (*domain.TrainingPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active *domain.TrainingPlan
	for _, plan := range s.plans {
		if plan.AthleteID != athleteID || !plan.Contains(today) {
			continue
		}
		if active == nil || plan.StartDate.After(active.StartDate) {
			p := plan.Clone()
			active = &p
		}
	}
	return active, nil
}

// GetPlan implements domain.PlanStore.
func (s *Store) GetPlan(_ context.Context, athleteID, planID string) (*domain.TrainingPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.plans[planID]
	if !ok || plan.AthleteID != athleteID {
		return nil, nil
	}
	p := plan.Clone()
	return &p, nil
}

// PersistPlan implements domain.PlanStore.
func (s *Store) PersistPlan(_ context.Context, plan domain.TrainingPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.plans[plan.ID]; ok {
		plan.Version = prev.Version + 1
	}
	s.plans[plan.ID] = plan.Clone()
	return nil
}

// ListSessions implements domain.SessionStore.
func (s *Store) ListSessions(_ context.Context, athleteID string, q domain.SessionQuery) ([]domain.RecordedSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var filtered []domain.RecordedSession
	for _, session := range s.sessions[athleteID] {
		local := localStart(session)
		if q.Since != nil && local.Before(*q.Since) {
			continue
		}
		if q.Until != nil && !local.Before(*q.Until) {
			continue
		}
		filtered = append(filtered, session)
	}
	if q.Offset >= len(filtered) {
		return nil, nil
	}
	filtered = filtered[q.Offset:]
	if q.Limit > 0 && len(filtered) > q.Limit {
		filtered = filtered[:q.Limit]
	}
	return append([]domain.RecordedSession(nil), filtered...), nil
}

// GetSession implements domain.SessionStore.
func (s *Store) GetSession(_ context.Context, athleteID, sessionID string) (*domain.RecordedSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions[athleteID] {
		if session.ID == sessionID {
			out := session
			return &out, nil
		}
	}
	return nil, nil
}

// Baseline implements domain.BaselineProvider over the stored sessions.
func (s *Store) Baseline(_ context.Context, athleteID string) (*domain.AthleteBaseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return matching.BuildBaseline(athleteID, s.sessions[athleteID], s.now()), nil
}

// SaveSuggestions implements domain.SuggestionStore.
func (s *Store) SaveSuggestions(_ context.Context, suggestions []domain.Suggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sg := range suggestions {
		byAthlete, ok := s.suggestions[sg.AthleteID]
		if !ok {
			byAthlete = make(map[slotKey]domain.Suggestion)
			s.suggestions[sg.AthleteID] = byAthlete
		}
		byAthlete[slotKey{sg.PlanID, sg.WeekIndex, sg.DayIndex}] = sg
	}
	return nil
}

// ListSuggestions implements domain.SuggestionStore, ordered by slot date.
func (s *Store) ListSuggestions(_ context.Context, athleteID string) ([]domain.Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Suggestion, 0, len(s.suggestions[athleteID]))
	for _, sg := range s.suggestions[athleteID] {
		out = append(out, sg)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SlotDate.Equal(out[j].SlotDate) {
			return out[i].SlotDate.Before(out[j].SlotDate)
		}
		return out[i].PlanID < out[j].PlanID
	})
	return out, nil
}

// GetSuggestion implements domain.SuggestionStore.
func (s *Store) GetSuggestion(_ context.Context, athleteID, planID string, week, day int) (*domain.Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sg, ok := s.suggestions[athleteID][slotKey{planID, week, day}]
	if !ok {
		return nil, nil
	}
	return &sg, nil
}

// RemoveSuggestion implements domain.SuggestionStore.
func (s *Store) RemoveSuggestion(_ context.Context, athleteID, planID string, week, day int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.suggestions[athleteID], slotKey{planID, week, day})
	return nil
}

func localStart(session domain.RecordedSession) time.Time {
	if !session.StartLocal.IsZero() {
		return session.StartLocal
	}
	return session.Start
}

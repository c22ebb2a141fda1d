// Package bolt is a single-file store for the operator CLI, backed by BBolt.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
	"github.com/deweiiss/sportMe-sub000/internal/matching"
	"github.com/deweiiss/sportMe-sub000/internal/persistence"
)

// Bucket names. Sessions and suggestions hold one nested bucket per athlete.
var (
	bucketPlans        = []byte("plans")
	bucketSessions     = []byte("sessions")
	bucketSessionIndex = []byte("session_index")
	bucketSuggestions  = []byte("suggestions")
)

// Store implements the plan, session, baseline and suggestion ports.
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open creates or opens the database file at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketPlans, bucketSessions, bucketSessionIndex, bucketSuggestions} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// SetClock overrides the clock used for baselines and plan timestamps.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Close releases the database file.
func (s *Store) Close() error { return s.db.Close() }

// SavePlan stores a plan, assigning an id when it has none.
func (s *Store) SavePlan(_ context.Context, plan domain.TrainingPlan) (domain.TrainingPlan, error) {
	if strings.TrimSpace(plan.ID) == "" {
		plan.ID = uuid.NewString()
	}
	now := s.now()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now
	if plan.Version == 0 {
		plan.Version = 1
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return putPlan(tx, plan)
	})
	return plan, err
}

func putPlan(tx *bbolt.Tx, plan domain.TrainingPlan) error {
	doc, err := persistence.NewPlanDocument(plan)
	if err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	return tx.Bucket(bucketPlans).Put([]byte(plan.ID), data)
}

func decodePlan(data []byte) (domain.TrainingPlan, error) {
	var doc persistence.PlanDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.TrainingPlan{}, fmt.Errorf("%w: %v", domain.ErrMalformedPlan, err)
	}
	return doc.Plan()
}

// ActivePlan implements domain.PlanStore. The most recently started plan
// wins when ranges overlap.
func (s *Store) ActivePlan(_ context.Context, athleteID string, today time.Time) (*domain.TrainingPlan, error) {
	var active *domain.TrainingPlan
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPlans).ForEach(func(_, v []byte) error {
			plan, err := decodePlan(v)
			if err != nil {
				return err
			}
			if plan.AthleteID != athleteID || !plan.Contains(today) {
				return nil
			}
			if active == nil || plan.StartDate.After(active.StartDate) {
				active = &plan
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return active, nil
}

// GetPlan implements domain.PlanStore.
func (s *Store) GetPlan(_ context.Context, athleteID, planID string) (*domain.TrainingPlan, error) {
	var plan *domain.TrainingPlan
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketPlans).Get([]byte(planID))
		if data == nil {
			return nil
		}
		p, err := decodePlan(data)
		if err != nil {
			return err
		}
		if p.AthleteID == athleteID {
			plan = &p
		}
		return nil
	})
	return plan, err
}

// PersistPlan implements domain.PlanStore.
func (s *Store) PersistPlan(_ context.Context, plan domain.TrainingPlan) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketPlans).Get([]byte(plan.ID))
		if data == nil {
			return fmt.Errorf("%w: %s", domain.ErrPlanNotFound, plan.ID)
		}
		prev, err := decodePlan(data)
		if err == nil {
			plan.Version = prev.Version + 1
		}
		plan.UpdatedAt = s.now()
		return putPlan(tx, plan)
	})
}

// sessionKey sorts sessions by local start within an athlete bucket.
func sessionKey(session domain.RecordedSession) []byte {
	start := session.StartLocal
	if start.IsZero() {
		start = session.Start
	}
	return []byte(start.Format("2006-01-02T15:04:05.000000000") + "|" + session.ID)
}

// AddSessions records imported sessions. A session with a known id replaces
// the stored copy.
func (s *Store) AddSessions(_ context.Context, sessions ...domain.RecordedSession) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, session := range sessions {
			if session.AthleteID == "" {
				return fmt.Errorf("%w: session %s has no athlete", domain.ErrInvalidInput, session.ID)
			}
			if session.ID == "" {
				session.ID = uuid.NewString()
			}
			byAthlete, err := tx.Bucket(bucketSessions).CreateBucketIfNotExists([]byte(session.AthleteID))
			if err != nil {
				return err
			}
			index, err := tx.Bucket(bucketSessionIndex).CreateBucketIfNotExists([]byte(session.AthleteID))
			if err != nil {
				return err
			}
			if old := index.Get([]byte(session.ID)); old != nil {
				if err := byAthlete.Delete(old); err != nil {
					return err
				}
			}

			data, err := json.Marshal(session)
			if err != nil {
				return fmt.Errorf("marshal session: %w", err)
			}
			key := sessionKey(session)
			if err := byAthlete.Put(key, data); err != nil {
				return err
			}
			if err := index.Put([]byte(session.ID), key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) allSessions(tx *bbolt.Tx, athleteID string) ([]domain.RecordedSession, error) {
	byAthlete := tx.Bucket(bucketSessions).Bucket([]byte(athleteID))
	if byAthlete == nil {
		return nil, nil
	}
	var out []domain.RecordedSession
	err := byAthlete.ForEach(func(_, v []byte) error {
		var session domain.RecordedSession
		if err := json.Unmarshal(v, &session); err != nil {
			return err
		}
		out = append(out, session)
		return nil
	})
	return out, err
}

// ListSessions implements domain.SessionStore.
func (s *Store) ListSessions(_ context.Context, athleteID string, q domain.SessionQuery) ([]domain.RecordedSession, error) {
	var out []domain.RecordedSession
	err := s.db.View(func(tx *bbolt.Tx) error {
		all, err := s.allSessions(tx, athleteID)
		if err != nil {
			return err
		}
		skipped := 0
		for _, session := range all {
			local := session.StartLocal
			if local.IsZero() {
				local = session.Start
			}
			if q.Since != nil && local.Before(*q.Since) {
				continue
			}
			if q.Until != nil && !local.Before(*q.Until) {
				continue
			}
			if skipped < q.Offset {
				skipped++
				continue
			}
			out = append(out, session)
			if q.Limit > 0 && len(out) == q.Limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// GetSession implements domain.SessionStore.
func (s *Store) GetSession(_ context.Context, athleteID, sessionID string) (*domain.RecordedSession, error) {
	var session *domain.RecordedSession
	err := s.db.View(func(tx *bbolt.Tx) error {
		index := tx.Bucket(bucketSessionIndex).Bucket([]byte(athleteID))
		if index == nil {
			return nil
		}
		key := index.Get([]byte(sessionID))
		if key == nil {
			return nil
		}
		data := tx.Bucket(bucketSessions).Bucket([]byte(athleteID)).Get(key)
		if data == nil {
			return nil
		}
		var out domain.RecordedSession
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
		session = &out
		return nil
	})
	return session, err
}

// Baseline implements domain.BaselineProvider over the stored sessions.
func (s *Store) Baseline(_ context.Context, athleteID string) (*domain.AthleteBaseline, error) {
	var baseline *domain.AthleteBaseline
	err := s.db.View(func(tx *bbolt.Tx) error {
		all, err := s.allSessions(tx, athleteID)
		if err != nil {
			return err
		}
		baseline = matching.BuildBaseline(athleteID, all, s.now())
		return nil
	})
	return baseline, err
}

func suggestionKey(planID string, week, day int) []byte {
	return []byte(fmt.Sprintf("%s|%04d|%04d", planID, week, day))
}

// SaveSuggestions implements domain.SuggestionStore.
func (s *Store) SaveSuggestions(_ context.Context, suggestions []domain.Suggestion) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, sg := range suggestions {
			byAthlete, err := tx.Bucket(bucketSuggestions).CreateBucketIfNotExists([]byte(sg.AthleteID))
			if err != nil {
				return err
			}
			data, err := json.Marshal(sg)
			if err != nil {
				return fmt.Errorf("marshal suggestion: %w", err)
			}
			if err := byAthlete.Put(suggestionKey(sg.PlanID, sg.WeekIndex, sg.DayIndex), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListSuggestions implements domain.SuggestionStore, ordered by slot date.
func (s *Store) ListSuggestions(_ context.Context, athleteID string) ([]domain.Suggestion, error) {
	var out []domain.Suggestion
	err := s.db.View(func(tx *bbolt.Tx) error {
		byAthlete := tx.Bucket(bucketSuggestions).Bucket([]byte(athleteID))
		if byAthlete == nil {
			return nil
		}
		return byAthlete.ForEach(func(_, v []byte) error {
			var sg domain.Suggestion
			if err := json.Unmarshal(v, &sg); err != nil {
				return err
			}
			out = append(out, sg)
			return nil
		})
	})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].SlotDate.Equal(out[j].SlotDate) {
			return out[i].SlotDate.Before(out[j].SlotDate)
		}
		return out[i].PlanID < out[j].PlanID
	})
	return out, err
}

// GetSuggestion implements domain.SuggestionStore.
func (s *Store) GetSuggestion(_ context.Context, athleteID, planID string, week, day int) (*domain.Suggestion, error) {
	var sg *domain.Suggestion
	err := s.db.View(func(tx *bbolt.Tx) error {
		byAthlete := tx.Bucket(bucketSuggestions).Bucket([]byte(athleteID))
		if byAthlete == nil {
			return nil
		}
		data := byAthlete.Get(suggestionKey(planID, week, day))
		if data == nil {
			return nil
		}
		var out domain.Suggestion
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
		sg = &out
		return nil
	})
	return sg, err
}

// RemoveSuggestion implements domain.SuggestionStore.
func (s *Store) RemoveSuggestion(_ context.Context, athleteID, planID string, week, day int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		byAthlete := tx.Bucket(bucketSuggestions).Bucket([]byte(athleteID))
		if byAthlete == nil {
			return nil
		}
		return byAthlete.Delete(suggestionKey(planID, week, day))
	})
}

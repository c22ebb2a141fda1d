// Package postgres is the production store for plans, sessions, baselines and
// suggestions. Plan rewrites stage slot events in the outbox in the same
// transaction.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
	"github.com/deweiiss/sportMe-sub000/internal/matching"
	"github.com/deweiiss/sportMe-sub000/internal/outbox"
	"github.com/deweiiss/sportMe-sub000/internal/persistence"
	"github.com/deweiiss/sportMe-sub000/pkg/events"
)

const aggregateTrainingPlan = "training_plan"

// Repository provides Postgres-backed persistence for the matching engine.
type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the clock used for baselines and timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool, opts ...Option) *Repository {
	r := &Repository{pool: pool, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// inAthleteTx runs fn in a transaction scoped to athleteID for row level security.
func (r *Repository) inAthleteTx(ctx context.Context, athleteID string, fn func(pgx.Tx) error) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.athlete_id', $1, true)", athleteID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const planColumns = `plan_id, athlete_id, title, start_date, end_date, schedule, version, created_at, updated_at`

func scanPlan(row pgx.Row) (*domain.TrainingPlan, error) {
	var (
		plan     domain.TrainingPlan
		endDate  *time.Time
		schedule []byte
	)
	if err := row.Scan(&plan.ID, &plan.AthleteID, &plan.Title, &plan.StartDate, &endDate, &schedule, &plan.Version, &plan.CreatedAt, &plan.UpdatedAt); err != nil {
		return nil, err
	}
	if endDate != nil {
		plan.EndDate = *endDate
	}
	weeks, err := persistence.DecodeSchedule(schedule)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", plan.ID, err)
	}
	plan.Weeks = weeks
	return &plan, nil
}

// ActivePlan implements domain.PlanStore. The most recently started plan
// wins when ranges overlap.
func (r *Repository) ActivePlan(ctx context.Context, athleteID string, today time.Time) (*domain.TrainingPlan, error) {
	query := `SELECT ` + planColumns + `
        FROM training_plans
        WHERE athlete_id=$1 AND start_date <= $2::date AND (end_date IS NULL OR end_date >= $2::date)
        ORDER BY start_date DESC, created_at DESC
        LIMIT 1`

	var plan *domain.TrainingPlan
	err := r.inAthleteTx(ctx, athleteID, func(tx pgx.Tx) error {
		p, err := scanPlan(tx.QueryRow(ctx, query, athleteID, domain.DateOf(today)))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		plan = p
		return err
	})
	return plan, err
}

// GetPlan implements domain.PlanStore.
func (r *Repository) GetPlan(ctx context.Context, athleteID, planID string) (*domain.TrainingPlan, error) {
	query := `SELECT ` + planColumns + ` FROM training_plans WHERE athlete_id=$1 AND plan_id=$2`

	var plan *domain.TrainingPlan
	err := r.inAthleteTx(ctx, athleteID, func(tx pgx.Tx) error {
		p, err := scanPlan(tx.QueryRow(ctx, query, athleteID, planID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		plan = p
		return err
	})
	return plan, err
}

// CreatePlan inserts a new plan, assigning an id when it has none.
func (r *Repository) CreatePlan(ctx context.Context, plan domain.TrainingPlan) (domain.TrainingPlan, error) {
	if strings.TrimSpace(plan.ID) == "" {
		plan.ID = uuid.NewString()
	}
	now := r.now()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now
	if plan.Version == 0 {
		plan.Version = 1
	}

	schedule, err := persistence.EncodeSchedule(plan.Weeks)
	if err != nil {
		return domain.TrainingPlan{}, err
	}

	const stmt = `INSERT INTO training_plans (` + planColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	err = r.inAthleteTx(ctx, plan.AthleteID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, stmt,
			plan.ID,
			plan.AthleteID,
			plan.Title,
			domain.DateOf(plan.StartDate),
			nullDate(plan.EndDate),
			schedule,
			plan.Version,
			plan.CreatedAt,
			plan.UpdatedAt,
		)
		return err
	})
	return plan, err
}

// PersistPlan implements domain.PlanStore. It locks the stored row, replaces
// the schedule, bumps the version and stages one slot event per slot whose
// state changed.
func (r *Repository) PersistPlan(ctx context.Context, plan domain.TrainingPlan) error {
	schedule, err := persistence.EncodeSchedule(plan.Weeks)
	if err != nil {
		return err
	}
	now := r.now()

	return r.inAthleteTx(ctx, plan.AthleteID, func(tx pgx.Tx) error {
		var stored []byte
		err := tx.QueryRow(ctx,
			`SELECT schedule FROM training_plans WHERE plan_id=$1 AND athlete_id=$2 FOR UPDATE`,
			plan.ID, plan.AthleteID,
		).Scan(&stored)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrPlanNotFound, plan.ID)
		}
		if err != nil {
			return err
		}
		// An unreadable stored schedule means every slot reports its state.
		previous, _ := persistence.DecodeSchedule(stored)

		if _, err := tx.Exec(ctx,
			`UPDATE training_plans
			    SET title=$3, start_date=$4, end_date=$5, schedule=$6, version=version+1, updated_at=$7
			  WHERE plan_id=$1 AND athlete_id=$2`,
			plan.ID, plan.AthleteID, plan.Title, domain.DateOf(plan.StartDate), nullDate(plan.EndDate), schedule, now,
		); err != nil {
			return err
		}

		for _, change := range changedSlots(previous, plan, now) {
			if err := outbox.Append(ctx, tx, outbox.Event{
				AthleteID:     plan.AthleteID,
				AggregateType: aggregateTrainingPlan,
				AggregateID:   plan.ID,
				EventType:     events.EventSlotStateChanged,
				PartitionKey:  fmt.Sprintf("%s:%s", plan.AthleteID, plan.ID),
				DedupeKey:     change.EventID,
				Payload:       change,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

type slotFingerprint struct {
	state      domain.SlotState
	matchType  domain.MatchType
	sessionID  string
	confidence float64
	missed     string
}

func fingerprint(slot domain.Slot) slotFingerprint {
	f := slotFingerprint{
		state:     slot.State(),
		matchType: slot.MatchType,
		sessionID: slot.MatchedSessionID,
		missed:    slot.MissedReason,
	}
	if slot.MatchConfidence != nil {
		f.confidence = *slot.MatchConfidence
	}
	return f
}

// changedSlots diffs the new plan against the stored weeks. Slots that did
// not exist before are reported unless they are still unresolved.
func changedSlots(previous []domain.Week, plan domain.TrainingPlan, now time.Time) []events.SlotStateChanged {
	var out []events.SlotStateChanged
	for w, week := range plan.Weeks {
		for d, slot := range week.Days {
			next := fingerprint(slot)
			if w < len(previous) && d < len(previous[w].Days) {
				if fingerprint(previous[w].Days[d]) == next {
					continue
				}
			} else if next.state == domain.StateUnresolved {
				continue
			}
			out = append(out, events.SlotStateChanged{
				EventID:         uuid.NewString(),
				PlanID:          plan.ID,
				AthleteID:       plan.AthleteID,
				WeekIndex:       w,
				DayIndex:        d,
				State:           string(next.state),
				MatchType:       string(slot.MatchType),
				SessionID:       slot.MatchedSessionID,
				MatchConfidence: slot.MatchConfidence,
				MissedReason:    slot.MissedReason,
				OccurredAt:      now,
			})
		}
	}
	return out
}

const sessionColumns = `session_id, athlete_id, kind, name, start_local, started_at, distance_m, moving_time_sec, average_speed, average_hr, max_hr, average_cadence, splits`

func scanSession(row pgx.Row) (domain.RecordedSession, error) {
	var (
		s      domain.RecordedSession
		avgHR  *float64
		maxHR  *float64
		splits []byte
		kind   string
	)
	if err := row.Scan(&s.ID, &s.AthleteID, &kind, &s.Name, &s.StartLocal, &s.Start, &s.DistanceMeters, &s.MovingTimeSec, &s.AverageSpeed, &avgHR, &maxHR, &s.AverageCadence, &splits); err != nil {
		return domain.RecordedSession{}, err
	}
	s.Kind = domain.ActivityKind(kind)
	if avgHR != nil {
		s.HeartRate = &domain.HeartRate{Average: *avgHR}
		if maxHR != nil {
			s.HeartRate.Max = *maxHR
		}
	}
	if len(splits) > 0 {
		if err := json.Unmarshal(splits, &s.Splits); err != nil {
			return domain.RecordedSession{}, fmt.Errorf("session %s splits: %w", s.ID, err)
		}
		if len(s.Splits) == 0 {
			s.Splits = nil
		}
	}
	return s, nil
}

// UpsertSessions records imported sessions. A session with a known id
// replaces the stored row.
func (r *Repository) UpsertSessions(ctx context.Context, athleteID string, sessions ...domain.RecordedSession) error {
	const stmt = `INSERT INTO recorded_sessions (` + sessionColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        ON CONFLICT (athlete_id, session_id) DO UPDATE SET
            kind=EXCLUDED.kind, name=EXCLUDED.name, start_local=EXCLUDED.start_local, started_at=EXCLUDED.started_at,
            distance_m=EXCLUDED.distance_m, moving_time_sec=EXCLUDED.moving_time_sec, average_speed=EXCLUDED.average_speed,
            average_hr=EXCLUDED.average_hr, max_hr=EXCLUDED.max_hr, average_cadence=EXCLUDED.average_cadence, splits=EXCLUDED.splits`

	return r.inAthleteTx(ctx, athleteID, func(tx pgx.Tx) error {
		for _, s := range sessions {
			if s.AthleteID != athleteID {
				return fmt.Errorf("%w: session %s belongs to athlete %q", domain.ErrInvalidInput, s.ID, s.AthleteID)
			}
			if s.ID == "" {
				s.ID = uuid.NewString()
			}
			splits, err := json.Marshal(nonNilSplits(s.Splits))
			if err != nil {
				return err
			}
			var avgHR, maxHR *float64
			if s.HeartRate != nil {
				avgHR = &s.HeartRate.Average
				if s.HeartRate.Max > 0 {
					maxHR = &s.HeartRate.Max
				}
			}
			startLocal := s.StartLocal
			if startLocal.IsZero() {
				startLocal = s.Start
			}
			if _, err := tx.Exec(ctx, stmt,
				s.ID, s.AthleteID, string(s.Kind), s.Name, startLocal, s.Start,
				s.DistanceMeters, s.MovingTimeSec, s.AverageSpeed, avgHR, maxHR, s.AverageCadence, splits,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListSessions implements domain.SessionStore.
func (r *Repository) ListSessions(ctx context.Context, athleteID string, q domain.SessionQuery) ([]domain.RecordedSession, error) {
	query := `SELECT ` + sessionColumns + `
        FROM recorded_sessions
        WHERE athlete_id=$1
          AND ($2::timestamp IS NULL OR start_local >= $2::timestamp)
          AND ($3::timestamp IS NULL OR start_local < $3::timestamp)
        ORDER BY start_local, session_id
        LIMIT NULLIF($4::int, 0) OFFSET $5`

	var results []domain.RecordedSession
	err := r.inAthleteTx(ctx, athleteID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, athleteID, wallClock(q.Since), wallClock(q.Until), q.Limit, q.Offset)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			s, err := scanSession(rows)
			if err != nil {
				return err
			}
			results = append(results, s)
		}
		return rows.Err()
	})
	return results, err
}

// GetSession implements domain.SessionStore.
func (r *Repository) GetSession(ctx context.Context, athleteID, sessionID string) (*domain.RecordedSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM recorded_sessions WHERE athlete_id=$1 AND session_id=$2`

	var session *domain.RecordedSession
	err := r.inAthleteTx(ctx, athleteID, func(tx pgx.Tx) error {
		s, err := scanSession(tx.QueryRow(ctx, query, athleteID, sessionID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		session = &s
		return nil
	})
	return session, err
}

// Baseline implements domain.BaselineProvider, aggregating run sessions over
// the trailing baseline window in SQL.
func (r *Repository) Baseline(ctx context.Context, athleteID string) (*domain.AthleteBaseline, error) {
	const query = `SELECT COUNT(*), COALESCE(SUM(distance_m), 0), COALESCE(SUM(moving_time_sec), 0),
            COALESCE(MAX(distance_m), 0), MIN(started_at), MAX(started_at)
        FROM recorded_sessions
        WHERE athlete_id=$1 AND kind = ANY($2) AND distance_m > 0 AND moving_time_sec > 0
          AND started_at >= $3 AND started_at <= $4`

	now := r.now()
	runKinds := []string{string(domain.KindRun), string(domain.KindTrailRun), string(domain.KindVirtualRun)}

	var baseline *domain.AthleteBaseline
	err := r.inAthleteTx(ctx, athleteID, func(tx pgx.Tx) error {
		var (
			count              int
			totalDist, longest float64
			totalTime          int64
			first, last        *time.Time
		)
		if err := tx.QueryRow(ctx, query, athleteID, runKinds, now.Add(-matching.BaselineWindow), now).
			Scan(&count, &totalDist, &totalTime, &longest, &first, &last); err != nil {
			return err
		}
		if count == 0 || first == nil || last == nil {
			return nil
		}
		weeks := last.Sub(*first).Hours() / (24 * 7)
		if weeks < 1 {
			weeks = 1
		}
		baseline = &domain.AthleteBaseline{
			AthleteID:             athleteID,
			AveragePaceSecPerKm:   float64(totalTime) / (totalDist / 1000),
			LongestDistanceMeters: longest,
			AverageDistanceMeters: totalDist / float64(count),
			SessionsPerWeek:       float64(count) / weeks,
		}
		return nil
	})
	return baseline, err
}

const suggestionColumns = `athlete_id, plan_id, week_index, day_index, slot_date, slot_title, session_id, session_name, workout_type, score, reasons, created_at`

func scanSuggestion(row pgx.Row) (domain.Suggestion, error) {
	var (
		sg      domain.Suggestion
		wt      string
		reasons []byte
	)
	if err := row.Scan(&sg.AthleteID, &sg.PlanID, &sg.WeekIndex, &sg.DayIndex, &sg.SlotDate, &sg.SlotTitle, &sg.SessionID, &sg.SessionName, &wt, &sg.Score, &reasons, &sg.CreatedAt); err != nil {
		return domain.Suggestion{}, err
	}
	sg.WorkoutType = domain.WorkoutType(wt)
	if len(reasons) > 0 {
		if err := json.Unmarshal(reasons, &sg.Reasons); err != nil {
			return domain.Suggestion{}, err
		}
		if len(sg.Reasons) == 0 {
			sg.Reasons = nil
		}
	}
	return sg, nil
}

// SaveSuggestions implements domain.SuggestionStore.
func (r *Repository) SaveSuggestions(ctx context.Context, suggestions []domain.Suggestion) error {
	byAthlete := make(map[string][]domain.Suggestion)
	for _, sg := range suggestions {
		byAthlete[sg.AthleteID] = append(byAthlete[sg.AthleteID], sg)
	}

	const stmt = `INSERT INTO match_suggestions (` + suggestionColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        ON CONFLICT (plan_id, week_index, day_index) DO UPDATE SET
            slot_date=EXCLUDED.slot_date, slot_title=EXCLUDED.slot_title, session_id=EXCLUDED.session_id,
            session_name=EXCLUDED.session_name, workout_type=EXCLUDED.workout_type, score=EXCLUDED.score,
            reasons=EXCLUDED.reasons, created_at=EXCLUDED.created_at`

	for athleteID, group := range byAthlete {
		err := r.inAthleteTx(ctx, athleteID, func(tx pgx.Tx) error {
			batch := &pgx.Batch{}
			for _, sg := range group {
				reasons, err := json.Marshal(nonNilStrings(sg.Reasons))
				if err != nil {
					return err
				}
				createdAt := sg.CreatedAt
				if createdAt.IsZero() {
					createdAt = r.now()
				}
				batch.Queue(stmt,
					sg.AthleteID, sg.PlanID, sg.WeekIndex, sg.DayIndex, domain.DateOf(sg.SlotDate), sg.SlotTitle,
					sg.SessionID, sg.SessionName, string(sg.WorkoutType), sg.Score, reasons, createdAt,
				)
			}
			return tx.SendBatch(ctx, batch).Close()
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ListSuggestions implements domain.SuggestionStore, ordered by slot date.
func (r *Repository) ListSuggestions(ctx context.Context, athleteID string) ([]domain.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM match_suggestions WHERE athlete_id=$1 ORDER BY slot_date, plan_id`

	var results []domain.Suggestion
	err := r.inAthleteTx(ctx, athleteID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, athleteID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			sg, err := scanSuggestion(rows)
			if err != nil {
				return err
			}
			results = append(results, sg)
		}
		return rows.Err()
	})
	return results, err
}

// GetSuggestion implements domain.SuggestionStore.
func (r *Repository) GetSuggestion(ctx context.Context, athleteID, planID string, week, day int) (*domain.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM match_suggestions
        WHERE athlete_id=$1 AND plan_id=$2 AND week_index=$3 AND day_index=$4`

	var suggestion *domain.Suggestion
	err := r.inAthleteTx(ctx, athleteID, func(tx pgx.Tx) error {
		sg, err := scanSuggestion(tx.QueryRow(ctx, query, athleteID, planID, week, day))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		suggestion = &sg
		return nil
	})
	return suggestion, err
}

// RemoveSuggestion implements domain.SuggestionStore.
func (r *Repository) RemoveSuggestion(ctx context.Context, athleteID, planID string, week, day int) error {
	return r.inAthleteTx(ctx, athleteID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`DELETE FROM match_suggestions WHERE athlete_id=$1 AND plan_id=$2 AND week_index=$3 AND day_index=$4`,
			athleteID, planID, week, day,
		)
		return err
	})
}

func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return domain.DateOf(t)
}

// wallClock drops the zone so timestamp parameters compare by local wall time.
func wallClock(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	w := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	return &w
}

func nonNilSplits(splits []domain.Split) []domain.Split {
	if splits == nil {
		return []domain.Split{}
	}
	return splits
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
	"github.com/deweiiss/sportMe-sub000/internal/testsupport/pgtest"
	"github.com/deweiiss/sportMe-sub000/pkg/events"
)

var fixedNow = time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)

func TestRepositoryPlanLifecycleWritesSlotEvents(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.Start(t, ctx)
	repo := NewRepository(pool, WithClock(func() time.Time { return fixedNow }))

	athleteID := uuid.NewString()
	plan, err := repo.CreatePlan(ctx, domain.TrainingPlan{
		AthleteID: athleteID,
		Title:     "10k block",
		StartDate: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Weeks: []domain.Week{{Days: []domain.Slot{
			{Title: "Easy Run", PlannedDuration: 40},
			{Title: "Intervals", PlannedDuration: 50},
			{IsRestDay: true},
		}}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, plan.ID)

	active, err := repo.ActivePlan(ctx, athleteID, fixedNow)
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, plan.ID, active.ID)
	require.Equal(t, 1, active.Version)

	none, err := repo.ActivePlan(ctx, athleteID, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Nil(t, none)

	conf := 0.82
	completed := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	active.Weeks[0].Days[1].IsCompleted = true
	active.Weeks[0].Days[1].MatchedSessionID = "session-1"
	active.Weeks[0].Days[1].MatchType = domain.MatchAuto
	active.Weeks[0].Days[1].MatchConfidence = &conf
	active.Weeks[0].Days[1].CompletionDate = &completed
	active.Weeks[0].Days[1].CompletionType = domain.CompletionMatched
	require.NoError(t, repo.PersistPlan(ctx, *active))

	stored, err := repo.GetPlan(ctx, athleteID, plan.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.Version)
	require.Equal(t, "session-1", stored.Weeks[0].Days[1].MatchedSessionID)

	rows, err := pool.Query(ctx, `SELECT topic, partition_key, payload FROM outbox WHERE athlete_id=$1 ORDER BY event_id`, athleteID)
	require.NoError(t, err)
	defer rows.Close()
	var payloads []events.SlotStateChanged
	for rows.Next() {
		var topic, key string
		var body []byte
		require.NoError(t, rows.Scan(&topic, &key, &body))
		require.Equal(t, events.TopicPlanEvents, topic)
		require.Equal(t, athleteID+":"+plan.ID, key)
		var ev events.SlotStateChanged
		require.NoError(t, json.Unmarshal(body, &ev))
		payloads = append(payloads, ev)
	}
	require.NoError(t, rows.Err())
	require.Len(t, payloads, 1, "only the changed slot emits an event")
	require.Equal(t, 1, payloads[0].DayIndex)
	require.Equal(t, "matched", payloads[0].State)

	// Persisting the same schedule again changes nothing observable.
	require.NoError(t, repo.PersistPlan(ctx, *stored))
	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE athlete_id=$1`, athleteID).Scan(&count))
	require.Equal(t, 1, count)
}

func TestRepositoryPersistUnknownPlan(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(pgtest.Start(t, ctx))

	err := repo.PersistPlan(ctx, domain.TrainingPlan{ID: "missing", AthleteID: "ath-1", StartDate: fixedNow, Weeks: []domain.Week{{Days: []domain.Slot{{}}}}})
	require.ErrorIs(t, err, domain.ErrPlanNotFound)
}

func TestRepositoryReadsLegacyScheduleRows(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.Start(t, ctx)
	repo := NewRepository(pool)

	_, err := pool.Exec(ctx,
		`INSERT INTO training_plans (plan_id, athlete_id, title, start_date, end_date, schedule)
         VALUES ('legacy-1', 'ath-1', 'old', '2024-03-04', '2024-03-31', $1)`,
		[]byte(`[{"days": ["Tempo|run|50|0|MAIN~4~30~min", "Rest|||1"]}]`),
	)
	require.NoError(t, err)

	plan, err := repo.GetPlan(ctx, "ath-1", "legacy-1")
	require.NoError(t, err)
	require.Equal(t, "Tempo", plan.Weeks[0].Days[0].Title)
	require.Equal(t, 4, plan.Weeks[0].Days[0].Segments[0].Zone)
	require.True(t, plan.Weeks[0].Days[1].IsRestDay)

	_, err = pool.Exec(ctx,
		`INSERT INTO training_plans (plan_id, athlete_id, title, start_date, schedule)
         VALUES ('broken-1', 'ath-1', 'broken', '2024-03-04', $1)`,
		[]byte(`[{"days": ["nonsense"]}]`),
	)
	require.NoError(t, err)
	_, err = repo.GetPlan(ctx, "ath-1", "broken-1")
	require.ErrorIs(t, err, domain.ErrMalformedPlan)
}

func TestRepositorySessionsAndBaseline(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(pgtest.Start(t, ctx), WithClock(func() time.Time { return fixedNow }))

	cadence := 172.0
	sessions := []domain.RecordedSession{
		{ID: "s1", AthleteID: "ath-1", Kind: domain.KindRun, Name: "Morning Run",
			StartLocal: time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC), Start: time.Date(2024, 3, 4, 6, 0, 0, 0, time.UTC),
			DistanceMeters: 10000, MovingTimeSec: 3000, AverageSpeed: 3.33,
			HeartRate: &domain.HeartRate{Average: 150, Max: 171}, AverageCadence: &cadence,
			Splits: []domain.Split{{DistanceMeters: 1000, MovingTimeSec: 300, AverageSpeed: 3.33}}},
		{ID: "s2", AthleteID: "ath-1", Kind: domain.KindRun,
			StartLocal: time.Date(2024, 3, 11, 7, 0, 0, 0, time.UTC), Start: time.Date(2024, 3, 11, 6, 0, 0, 0, time.UTC),
			DistanceMeters: 20000, MovingTimeSec: 7000},
		{ID: "s3", AthleteID: "ath-1", Kind: domain.KindRide,
			StartLocal: time.Date(2024, 3, 12, 7, 0, 0, 0, time.UTC), Start: time.Date(2024, 3, 12, 6, 0, 0, 0, time.UTC),
			DistanceMeters: 40000, MovingTimeSec: 5000},
	}
	require.NoError(t, repo.UpsertSessions(ctx, "ath-1", sessions...))
	require.ErrorIs(t, repo.UpsertSessions(ctx, "ath-2", sessions[0]), domain.ErrInvalidInput)

	since := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	listed, err := repo.ListSessions(ctx, "ath-1", domain.SessionQuery{Since: &since})
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, "s2", listed[0].ID)

	page, err := repo.ListSessions(ctx, "ath-1", domain.SessionQuery{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "s2", page[0].ID)

	got, err := repo.GetSession(ctx, "ath-1", "s1")
	require.NoError(t, err)
	require.Equal(t, 171.0, got.HeartRate.Max)
	require.Equal(t, cadence, *got.AverageCadence)
	require.Len(t, got.Splits, 1)

	missing, err := repo.GetSession(ctx, "ath-1", "nope")
	require.NoError(t, err)
	require.Nil(t, missing)

	baseline, err := repo.Baseline(ctx, "ath-1")
	require.NoError(t, err)
	require.NotNil(t, baseline)
	require.InDelta(t, 10000.0/30.0, baseline.AveragePaceSecPerKm, 0.001)
	require.Equal(t, 20000.0, baseline.LongestDistanceMeters)
	require.Equal(t, 15000.0, baseline.AverageDistanceMeters)
	require.InDelta(t, 2.0, baseline.SessionsPerWeek, 0.001)

	empty, err := repo.Baseline(ctx, "ath-unknown")
	require.NoError(t, err)
	require.Nil(t, empty)
}

func TestRepositorySuggestions(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(pgtest.Start(t, ctx))

	plan, err := repo.CreatePlan(ctx, domain.TrainingPlan{
		AthleteID: "ath-1", StartDate: fixedNow,
		Weeks: []domain.Week{{Days: []domain.Slot{{Title: "Tempo"}, {Title: "Easy"}}}},
	})
	require.NoError(t, err)

	first := domain.Suggestion{PlanID: plan.ID, AthleteID: "ath-1", WeekIndex: 0, DayIndex: 1, SlotDate: fixedNow.AddDate(0, 0, 1), SessionID: "s1", Score: 0.6, Reasons: []string{"date: 1 day off"}}
	require.NoError(t, repo.SaveSuggestions(ctx, []domain.Suggestion{first}))

	replacement := first
	replacement.SessionID = "s2"
	replacement.Score = 0.7
	replacement.Reasons = nil
	other := domain.Suggestion{PlanID: plan.ID, AthleteID: "ath-1", WeekIndex: 0, DayIndex: 0, SlotDate: fixedNow, SessionID: "s3", Score: 0.55}
	require.NoError(t, repo.SaveSuggestions(ctx, []domain.Suggestion{replacement, other}))

	list, err := repo.ListSuggestions(ctx, "ath-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "s3", list[0].SessionID)
	require.Equal(t, "s2", list[1].SessionID)
	require.Nil(t, list[1].Reasons)

	got, err := repo.GetSuggestion(ctx, "ath-1", plan.ID, 0, 1)
	require.NoError(t, err)
	require.InDelta(t, 0.7, got.Score, 1e-9)

	require.NoError(t, repo.RemoveSuggestion(ctx, "ath-1", plan.ID, 0, 1))
	require.NoError(t, repo.RemoveSuggestion(ctx, "ath-1", plan.ID, 0, 1))
	gone, err := repo.GetSuggestion(ctx, "ath-1", plan.ID, 0, 1)
	require.NoError(t, err)
	require.Nil(t, gone)
}

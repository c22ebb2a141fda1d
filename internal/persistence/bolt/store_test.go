package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
)

var now = time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "matchctl.db"))
	require.NoError(t, err)
	store.SetClock(func() time.Time { return now })
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testPlan() domain.TrainingPlan {
	return domain.TrainingPlan{
		AthleteID: "ath-1",
		Title:     "Spring 10k",
		StartDate: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Weeks: []domain.Week{{Days: []domain.Slot{
			{Title: "Easy Run", PlannedDuration: 40, Segments: []domain.Segment{{Kind: domain.SegmentMain, Zone: 2}}},
			{IsRestDay: true},
		}}},
	}
}

func TestPlanRoundTripAndVersioning(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	saved, err := store.SavePlan(ctx, testPlan())
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	require.Equal(t, 1, saved.Version)

	active, err := store.ActivePlan(ctx, "ath-1", now)
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, saved.ID, active.ID)
	require.Equal(t, saved.Weeks, active.Weeks)

	outside, err := store.ActivePlan(ctx, "ath-1", now.AddDate(0, 2, 0))
	require.NoError(t, err)
	require.Nil(t, outside)

	other, err := store.GetPlan(ctx, "ath-2", saved.ID)
	require.NoError(t, err)
	require.Nil(t, other, "plans are scoped to their athlete")

	active.Weeks[0].Days[0].UserNotes = "windy"
	require.NoError(t, store.PersistPlan(ctx, *active))
	got, err := store.GetPlan(ctx, "ath-1", saved.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.Version)
	require.Equal(t, "windy", got.Weeks[0].Days[0].UserNotes)

	missing := testPlan()
	missing.ID = "nope"
	require.ErrorIs(t, store.PersistPlan(ctx, missing), domain.ErrPlanNotFound)
}

func TestNewerPlanWinsWhenRangesOverlap(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	_, err := store.SavePlan(ctx, testPlan())
	require.NoError(t, err)
	newer := testPlan()
	newer.StartDate = time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	newer, err = store.SavePlan(ctx, newer)
	require.NoError(t, err)

	active, err := store.ActivePlan(ctx, "ath-1", now)
	require.NoError(t, err)
	require.Equal(t, newer.ID, active.ID)
}

func TestSessionsListInLocalStartOrder(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	mk := func(id string, day int) domain.RecordedSession {
		start := time.Date(2024, 3, day, 7, 0, 0, 0, time.UTC)
		return domain.RecordedSession{ID: id, AthleteID: "ath-1", Kind: domain.KindRun, StartLocal: start, Start: start, DistanceMeters: 8000, MovingTimeSec: 2800}
	}
	require.NoError(t, store.AddSessions(ctx, mk("c", 12), mk("a", 5), mk("b", 8)))

	// Re-import with a corrected start moves the session.
	moved := mk("a", 10)
	moved.Name = "Corrected"
	require.NoError(t, store.AddSessions(ctx, moved))

	all, err := store.ListSessions(ctx, "ath-1", domain.SessionQuery{})
	require.NoError(t, err)
	require.Equal(t, []string{"b", "a", "c"}, ids(all))

	since := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
	window, err := store.ListSessions(ctx, "ath-1", domain.SessionQuery{Since: &since, Until: &until})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, ids(window))

	page, err := store.ListSessions(ctx, "ath-1", domain.SessionQuery{Limit: 1, Offset: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"c"}, ids(page))

	got, err := store.GetSession(ctx, "ath-1", "a")
	require.NoError(t, err)
	require.Equal(t, "Corrected", got.Name)

	none, err := store.GetSession(ctx, "ath-2", "a")
	require.NoError(t, err)
	require.Nil(t, none)

	require.ErrorIs(t, store.AddSessions(ctx, domain.RecordedSession{ID: "x"}), domain.ErrInvalidInput)

	baseline, err := store.Baseline(ctx, "ath-1")
	require.NoError(t, err)
	require.NotNil(t, baseline)
	require.InDelta(t, 350.0, baseline.AveragePaceSecPerKm, 0.001)
}

func TestSuggestionsUpsertBySlot(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	day := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveSuggestions(ctx, []domain.Suggestion{
		{PlanID: "p1", AthleteID: "ath-1", WeekIndex: 0, DayIndex: 2, SlotDate: day, SessionID: "s1", Score: 0.6},
		{PlanID: "p1", AthleteID: "ath-1", WeekIndex: 0, DayIndex: 0, SlotDate: day.AddDate(0, 0, -2), SessionID: "s2", Score: 0.55},
	}))
	require.NoError(t, store.SaveSuggestions(ctx, []domain.Suggestion{
		{PlanID: "p1", AthleteID: "ath-1", WeekIndex: 0, DayIndex: 2, SlotDate: day, SessionID: "s3", Score: 0.7},
	}))

	list, err := store.ListSuggestions(ctx, "ath-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "s2", list[0].SessionID)
	require.Equal(t, "s3", list[1].SessionID)

	require.NoError(t, store.RemoveSuggestion(ctx, "ath-1", "p1", 0, 2))
	require.NoError(t, store.RemoveSuggestion(ctx, "ath-9", "p1", 0, 2))
	gone, err := store.GetSuggestion(ctx, "ath-1", "p1", 0, 2)
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "matchctl.db")

	store, err := Open(path)
	require.NoError(t, err)
	saved, err := store.SavePlan(ctx, testPlan())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.GetPlan(ctx, "ath-1", saved.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Spring 10k", got.Title)
}

func ids(sessions []domain.RecordedSession) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
)

func at(day, hour int) time.Time {
	return time.Date(2024, time.March, day, hour, 0, 0, 0, time.UTC)
}

func TestActivePlanPicksLatestContainingToday(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	store.SavePlan(domain.TrainingPlan{ID: "old", AthleteID: "a", StartDate: at(1, 0), EndDate: at(31, 0), Weeks: []domain.Week{{}}})
	store.SavePlan(domain.TrainingPlan{ID: "new", AthleteID: "a", StartDate: at(10, 0), EndDate: at(20, 0), Weeks: []domain.Week{{}}})
	store.SavePlan(domain.TrainingPlan{ID: "other", AthleteID: "b", StartDate: at(1, 0), EndDate: at(31, 0)})

	plan, err := store.ActivePlan(ctx, "a", at(12, 9))
	require.NoError(t, err)
	require.Equal(t, "new", plan.ID)

	plan, err = store.ActivePlan(ctx, "a", at(25, 9))
	require.NoError(t, err)
	require.Equal(t, "old", plan.ID)

	plan, err = store.ActivePlan(ctx, "c", at(25, 9))
	require.NoError(t, err)
	require.Nil(t, plan)
}

func TestPlanCopiesAreIsolated(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	saved := store.SavePlan(domain.TrainingPlan{AthleteID: "a", Weeks: []domain.Week{{Days: []domain.Slot{{Title: "Tempo"}}}}})
	require.NotEmpty(t, saved.ID)

	got, err := store.GetPlan(ctx, "a", saved.ID)
	require.NoError(t, err)
	got.Weeks[0].Days[0].Title = "mutated"

	again, err := store.GetPlan(ctx, "a", saved.ID)
	require.NoError(t, err)
	require.Equal(t, "Tempo", again.Weeks[0].Days[0].Title)

	require.NoError(t, store.PersistPlan(ctx, *got))
	again, err = store.GetPlan(ctx, "a", saved.ID)
	require.NoError(t, err)
	require.Equal(t, "mutated", again.Weeks[0].Days[0].Title)
	require.Equal(t, 1, again.Version)

	missing, err := store.GetPlan(ctx, "b", saved.ID)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestListSessionsFiltersAndPages(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	for d := 1; d <= 5; d++ {
		store.AddSessions(domain.RecordedSession{ID: string(rune('a' + d)), AthleteID: "a", Kind: domain.KindRun, Start: at(d, 7), StartLocal: at(d, 8)})
	}
	store.AddSessions(domain.RecordedSession{ID: "c", AthleteID: "a", Kind: domain.KindRun, Start: at(2, 7), StartLocal: at(2, 8), Name: "updated"})

	since, until := at(2, 0), at(5, 0)
	page, err := store.ListSessions(ctx, "a", domain.SessionQuery{Since: &since, Until: &until, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, "c", page[0].ID)
	require.Equal(t, "updated", page[0].Name)

	page, err = store.ListSessions(ctx, "a", domain.SessionQuery{Since: &since, Until: &until, Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "e", page[0].ID)

	got, err := store.GetSession(ctx, "a", "e")
	require.NoError(t, err)
	require.Equal(t, at(4, 7), got.Start)
	got, err = store.GetSession(ctx, "a", "zzz")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSuggestionsUpsertBySlot(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.SaveSuggestions(ctx, []domain.Suggestion{
		{AthleteID: "a", PlanID: "p", WeekIndex: 0, DayIndex: 2, SessionID: "s1", SlotDate: at(6, 0)},
		{AthleteID: "a", PlanID: "p", WeekIndex: 0, DayIndex: 1, SessionID: "s2", SlotDate: at(5, 0)},
	}))
	require.NoError(t, store.SaveSuggestions(ctx, []domain.Suggestion{
		{AthleteID: "a", PlanID: "p", WeekIndex: 0, DayIndex: 2, SessionID: "s3", SlotDate: at(6, 0)},
	}))

	list, err := store.ListSuggestions(ctx, "a")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "s2", list[0].SessionID)
	require.Equal(t, "s3", list[1].SessionID)

	require.NoError(t, store.RemoveSuggestion(ctx, "a", "p", 0, 2))
	require.NoError(t, store.RemoveSuggestion(ctx, "nobody", "p", 0, 2))
	got, err := store.GetSuggestion(ctx, "a", "p", 0, 2)
	require.NoError(t, err)
	require.Nil(t, got)
}

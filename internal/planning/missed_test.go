package planning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
)

func TestDetectMissedStartedTenDaysAgo(t *testing.T) {
	today := day(2024, time.March, 14)
	plan := domain.TrainingPlan{
		StartDate: today.AddDate(0, 0, -10),
		Weeks: []domain.Week{{Days: []domain.Slot{
			{Title: "Easy Run", PlannedDuration: 40},
			{IsRestDay: true},
			{Title: "Intervals", IsCompleted: true, MatchedSessionID: "s-1", MatchType: domain.MatchAuto},
			{Title: "Tempo", IsCompleted: true, CompletionType: domain.CompletionManualCheckbox},
			{Title: "Long", IsMissed: true, MissedReason: "sick"},
		}}},
	}

	missed := DetectMissed(plan, today, 3)
	require.Len(t, missed, 2)
	require.Equal(t, 0, missed[0].WeekIndex)
	require.Equal(t, 0, missed[0].DayIndex)
	require.Equal(t, 10, missed[0].DaysPastDue)
	require.Greater(t, missed[0].DaysPastDue, 3)
	require.Equal(t, "Easy Run", missed[0].Title)
	require.False(t, missed[0].Marked)

	require.Equal(t, 4, missed[1].DayIndex)
	require.Equal(t, 6, missed[1].DaysPastDue)
	require.True(t, missed[1].Marked)
}

func TestDetectMissedRespectsGracePeriod(t *testing.T) {
	start := day(2024, time.March, 4)
	plan := domain.TrainingPlan{StartDate: start, Weeks: []domain.Week{{Days: make([]domain.Slot, 7)}}}

	require.Empty(t, DetectMissed(plan, start.AddDate(0, 0, 3), 3))

	missed := DetectMissed(plan, start.AddDate(0, 0, 4), 3)
	require.Len(t, missed, 1)
	require.Equal(t, 4, missed[0].DaysPastDue)

	missed = DetectMissed(plan, start.AddDate(0, 0, 6), -1)
	require.Len(t, missed, 3)
}

func TestDetectMissedDoesNotMutate(t *testing.T) {
	start := day(2024, time.March, 4)
	plan := domain.TrainingPlan{StartDate: start, Weeks: []domain.Week{{Days: make([]domain.Slot, 2)}}}
	before := plan.Clone()
	_ = DetectMissed(plan, start.AddDate(0, 0, 30), 3)
	require.Equal(t, before, plan)
}

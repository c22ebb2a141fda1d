package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
	"github.com/deweiiss/sportMe-sub000/internal/planning"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func tempoSlot() domain.Slot {
	return domain.Slot{
		Title:           "Tempo Run",
		Category:        "run",
		PlannedDuration: 50,
		Segments: []domain.Segment{
			{Kind: domain.SegmentWarmup, Duration: 10, Unit: "min", Zone: 2},
			{Kind: domain.SegmentMain, Duration: 30, Unit: "min", Zone: 4},
			{Kind: domain.SegmentCooldown, Duration: 10, Unit: "min", Zone: 2},
		},
	}
}

func TestDateScoreBoundaries(t *testing.T) {
	require.Equal(t, 1.0, DateScore(0))
	require.Equal(t, 0.8, DateScore(1))
	require.Equal(t, 0.8, DateScore(-1))
	require.Equal(t, 0.6, DateScore(2))
	require.InDelta(t, 0.35, DateScore(3), 1e-9)
	require.InDelta(t, 0.15, DateScore(7), 1e-9)
	require.Equal(t, 0.0, DateScore(8))

	prev := DateScore(0)
	for d := 1; d <= 10; d++ {
		require.LessOrEqual(t, DateScore(d), prev)
		prev = DateScore(d)
	}
}

func TestTypeCompatibility(t *testing.T) {
	require.Equal(t, 1.0, TypeCompatibility(domain.WorkoutTempo, domain.WorkoutTempo))
	require.Equal(t, 0.6, TypeCompatibility(domain.WorkoutTempo, domain.WorkoutInterval))
	require.Equal(t, 0.6, TypeCompatibility(domain.WorkoutInterval, domain.WorkoutTempo))
	require.Equal(t, 0.8, TypeCompatibility(domain.WorkoutRecovery, domain.WorkoutEasyRun))
	require.Equal(t, 0.5, TypeCompatibility(domain.WorkoutEasyRun, domain.WorkoutLongRun))
	require.Equal(t, 0.7, TypeCompatibility(domain.WorkoutInterval, domain.WorkoutRace))
	require.Equal(t, 0.2, TypeCompatibility(domain.WorkoutRace, domain.WorkoutRecovery))
}

func TestHeartRateZone(t *testing.T) {
	cases := map[float64]int{120: 1, 139.9: 1, 140: 2, 154: 2, 155: 3, 164: 3, 165: 4, 174: 4, 175: 5, 190: 5}
	for hr, zone := range cases {
		require.Equal(t, zone, HeartRateZone(hr), "hr %v", hr)
	}
}

func TestInferPlannedType(t *testing.T) {
	cases := []struct {
		name string
		slot domain.Slot
		want domain.WorkoutType
	}{
		{"interval segment", domain.Slot{Segments: []domain.Segment{{Kind: domain.SegmentMain, Zone: 2}, {Kind: domain.SegmentInterval, Zone: 5}}}, domain.WorkoutInterval},
		{"hard main block", tempoSlot(), domain.WorkoutTempo},
		{"very easy main", domain.Slot{PlannedDuration: 120, Segments: []domain.Segment{{Kind: domain.SegmentMain, Zone: 1}, {Kind: domain.SegmentMain, Zone: 2}}}, domain.WorkoutRecovery},
		{"long", domain.Slot{PlannedDuration: 100, Segments: []domain.Segment{{Kind: domain.SegmentMain, Zone: 2}}}, domain.WorkoutLongRun},
		{"long from segments", domain.Slot{Segments: []domain.Segment{{Kind: domain.SegmentMain, Duration: 1.75, Unit: "h", Zone: 2}}}, domain.WorkoutLongRun},
		{"default", domain.Slot{PlannedDuration: 45}, domain.WorkoutEasyRun},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, InferPlannedType(tc.slot))
		})
	}
}

func TestScoreSameDayTempo(t *testing.T) {
	session := runSession("Lunch Run", 10, 50)
	session.HeartRate = &domain.HeartRate{Average: 165}
	base := &domain.AthleteBaseline{AveragePaceSecPerKm: 345, LongestDistanceMeters: 21000, AverageDistanceMeters: 9000}

	class := Classify(session, base)
	require.Equal(t, domain.WorkoutTempo, class.Type)

	ref := planning.SlotRef{WeekIndex: 0, DayIndex: 0, Date: date(2024, time.March, 6), Slot: tempoSlot()}
	score := Score(session, ref, class)
	require.Equal(t, 1.0, score.DateScore)
	require.Equal(t, 1.0, score.TypeScore)
	require.Equal(t, 1.0, score.DurationScore)
	require.Equal(t, domain.WorkoutTempo, score.PlannedType)
	require.Equal(t, BandHigh, score.Band)
	require.GreaterOrEqual(t, score.Score, HighThreshold)
	require.NotEmpty(t, score.Reasons)
}

func TestScoreNeutralComponents(t *testing.T) {
	session := runSession("Morning Run", 8, 48)
	ref := planning.SlotRef{Date: date(2024, time.March, 7), Slot: domain.Slot{Title: "Run"}}

	score := Score(session, ref, Classify(session, nil))
	require.Equal(t, 0.8, score.DateScore)
	require.Equal(t, 0.5, score.DurationScore)
	require.Equal(t, 0.5, score.IntensityScore)
	require.InDelta(t, 0.4*0.8+0.3*1.0+0.2*0.5+0.1*0.5, score.Score, 1e-9)
	require.Equal(t, BandHigh, score.Band)

	score = Score(session, ref, nil)
	require.Equal(t, defaultCompatibility, score.TypeScore)
}

func TestScoreDurationAndIntensityGrades(t *testing.T) {
	session := runSession("Morning Run", 8, 60)
	session.HeartRate = &domain.HeartRate{Average: 150}

	grade := func(planned int, zone int) MatchScore {
		slot := domain.Slot{PlannedDuration: planned, Segments: []domain.Segment{{Kind: domain.SegmentMain, Zone: zone}}}
		return Score(session, planning.SlotRef{Date: date(2024, time.March, 6), Slot: slot}, nil)
	}

	require.Equal(t, 1.0, grade(58, 2).DurationScore)
	require.Equal(t, 0.8, grade(50, 2).DurationScore)
	require.Equal(t, 0.5, grade(42, 2).DurationScore)
	require.Equal(t, 0.2, grade(30, 2).DurationScore)

	require.Equal(t, 1.0, grade(60, 2).IntensityScore)
	require.Equal(t, 0.7, grade(60, 3).IntensityScore)
	require.Equal(t, 0.4, grade(60, 4).IntensityScore)
	require.Equal(t, 0.2, grade(60, 5).IntensityScore)
}

func TestScoreStaysInRangeAndBandsAgree(t *testing.T) {
	slots := []domain.Slot{tempoSlot(), {PlannedDuration: 30}, {PlannedDuration: 150, Segments: []domain.Segment{{Kind: domain.SegmentInterval, Zone: 5}}}, {}}
	sessions := []domain.RecordedSession{runSession("Tempo", 10, 50), runSession("easy", 4, 25), runSession("Long run", 25, 150)}
	sessions[1].HeartRate = &domain.HeartRate{Average: 130}

	for _, s := range sessions {
		class := Classify(s, baseline())
		for _, slot := range slots {
			for offset := -9; offset <= 9; offset++ {
				ref := planning.SlotRef{Date: s.Date().AddDate(0, 0, offset), Slot: slot}
				score := Score(s, ref, class)
				require.GreaterOrEqual(t, score.Score, 0.0)
				require.LessOrEqual(t, score.Score, 1.0)
				require.Equal(t, score.Score >= 0.75, score.Band == BandHigh)
				require.Equal(t, score.Score >= 0.5 && score.Score < 0.75, score.Band == BandMedium)
			}
		}
	}
}

func TestBandFor(t *testing.T) {
	require.Equal(t, BandHigh, BandFor(0.75))
	require.Equal(t, BandMedium, BandFor(0.749))
	require.Equal(t, BandMedium, BandFor(0.5))
	require.Equal(t, BandLow, BandFor(0.499))
}

func TestBestMatch(t *testing.T) {
	ref := func(w, d int, when time.Time) planning.SlotRef {
		return planning.SlotRef{WeekIndex: w, DayIndex: d, Date: when}
	}
	scored := func(r planning.SlotRef, s float64) ScoredCandidate {
		return ScoredCandidate{Slot: r, Score: MatchScore{Score: s, Band: BandFor(s)}}
	}

	_, ok := BestMatch([]ScoredCandidate{scored(ref(0, 0, date(2024, 3, 4)), 0.3)})
	require.False(t, ok)

	best, ok := BestMatch([]ScoredCandidate{
		scored(ref(0, 2, date(2024, 3, 6)), 0.62),
		scored(ref(0, 4, date(2024, 3, 8)), 0.81),
		scored(ref(1, 0, date(2024, 3, 11)), 0.4),
	})
	require.True(t, ok)
	require.Equal(t, 4, best.Slot.DayIndex)

	best, ok = BestMatch([]ScoredCandidate{
		scored(ref(0, 5, date(2024, 3, 9)), 0.7),
		scored(ref(0, 3, date(2024, 3, 7)), 0.7),
	})
	require.True(t, ok)
	require.Equal(t, 3, best.Slot.DayIndex)
}

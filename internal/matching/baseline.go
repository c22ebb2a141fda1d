package matching

import (
	"time"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
)

// BaselineWindow is the history the baseline is aggregated over.
const BaselineWindow = 12 * 7 * 24 * time.Hour

// BuildBaseline aggregates the runs among sessions that started within
// BaselineWindow before now. It returns nil when there is no usable run.
func BuildBaseline(athleteID string, sessions []domain.RecordedSession, now time.Time) *domain.AthleteBaseline {
	cutoff := now.Add(-BaselineWindow)
	var (
		count       int
		totalDist   float64
		totalTime   float64
		longest     float64
		first, last time.Time
	)
	for _, s := range sessions {
		if !s.IsRun() || s.DistanceMeters <= 0 || s.MovingTimeSec <= 0 {
			continue
		}
		if s.Start.Before(cutoff) || s.Start.After(now) {
			continue
		}
		count++
		totalDist += s.DistanceMeters
		totalTime += float64(s.MovingTimeSec)
		if s.DistanceMeters > longest {
			longest = s.DistanceMeters
		}
		if first.IsZero() || s.Start.Before(first) {
			first = s.Start
		}
		if s.Start.After(last) {
			last = s.Start
		}
	}
	if count == 0 {
		return nil
	}

	weeks := last.Sub(first).Hours() / (24 * 7)
	if weeks < 1 {
		weeks = 1
	}
	return &domain.AthleteBaseline{
		AthleteID:             athleteID,
		AveragePaceSecPerKm:   totalTime / (totalDist / 1000),
		LongestDistanceMeters: longest,
		AverageDistanceMeters: totalDist / float64(count),
		SessionsPerWeek:       float64(count) / weeks,
	}
}

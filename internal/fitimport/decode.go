// Package fitimport converts FIT activity files into recorded sessions.
package fitimport

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/muktihari/fit/decoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/muktihari/fit/proto"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
)

// ErrNoSession is returned for FIT files without a session message.
var ErrNoSession = errors.New("fit file has no session message")

// maxZoneOffset bounds the local time offset taken from the activity message.
const maxZoneOffset = 14 * time.Hour

// Decode reads one FIT activity. The first session message provides the
// summary and lap messages become splits. ID, AthleteID and Name are left for
// the caller.
func Decode(r io.Reader) (domain.RecordedSession, error) {
	fit, err := decoder.New(r).Decode()
	if err != nil {
		return domain.RecordedSession{}, fmt.Errorf("decode fit: %w", err)
	}
	return fromMessages(fit.Messages)
}

func fromMessages(messages []proto.Message) (domain.RecordedSession, error) {
	var (
		session  *mesgdef.Session
		activity *mesgdef.Activity
		laps     []*mesgdef.Lap
	)
	for i := range messages {
		msg := &messages[i]
		switch msg.Num {
		case typedef.MesgNumSession:
			if session == nil {
				session = mesgdef.NewSession(msg)
			}
		case typedef.MesgNumActivity:
			if activity == nil {
				activity = mesgdef.NewActivity(msg)
			}
		case typedef.MesgNumLap:
			laps = append(laps, mesgdef.NewLap(msg))
		}
	}
	if session == nil {
		return domain.RecordedSession{}, ErrNoSession
	}

	out := domain.RecordedSession{
		Kind:           kindOf(session.Sport, session.SubSport),
		Start:          session.StartTime.UTC(),
		DistanceMeters: centimetres(session.TotalDistance),
		MovingTimeSec:  int(math.Round(millis(session.TotalTimerTime))),
		AverageSpeed:   speed(session.EnhancedAvgSpeed, session.AvgSpeed),
	}
	out.StartLocal = localStart(out.Start, activity)

	if hr := session.AvgHeartRate; validUint8(hr) {
		out.HeartRate = &domain.HeartRate{Average: float64(hr)}
		if peak := session.MaxHeartRate; validUint8(peak) {
			out.HeartRate.Max = float64(peak)
		}
	}
	if cad := session.AvgCadence; validUint8(cad) {
		spm := float64(cad)
		if out.IsRun() {
			// Running cadence is recorded per stride.
			spm *= 2
		}
		out.AverageCadence = &spm
	}
	if out.AverageSpeed == 0 && out.MovingTimeSec > 0 {
		out.AverageSpeed = out.DistanceMeters / float64(out.MovingTimeSec)
	}

	for _, lap := range laps {
		split := domain.Split{
			DistanceMeters: centimetres(lap.TotalDistance),
			MovingTimeSec:  int(math.Round(millis(lap.TotalTimerTime))),
			AverageSpeed:   speed(lap.EnhancedAvgSpeed, lap.AvgSpeed),
		}
		if split.DistanceMeters <= 0 || split.MovingTimeSec <= 0 {
			continue
		}
		if split.AverageSpeed == 0 {
			split.AverageSpeed = split.DistanceMeters / float64(split.MovingTimeSec)
		}
		out.Splits = append(out.Splits, split)
	}
	return out, nil
}

func kindOf(sport typedef.Sport, sub typedef.SubSport) domain.ActivityKind {
	switch sport {
	case typedef.SportRunning:
		switch sub {
		case typedef.SubSportTrail:
			return domain.KindTrailRun
		case typedef.SubSportTreadmill, typedef.SubSportVirtualActivity:
			return domain.KindVirtualRun
		}
		return domain.KindRun
	case typedef.SportCycling:
		return domain.KindRide
	case typedef.SportWalking, typedef.SportHiking:
		return domain.KindWalk
	}
	return domain.KindOther
}

// localStart shifts start by the device's local offset and keeps the wall
// clock in UTC; without a usable offset the UTC start is used.
func localStart(start time.Time, activity *mesgdef.Activity) time.Time {
	if activity == nil || activity.LocalTimestamp.IsZero() || activity.Timestamp.IsZero() {
		return start
	}
	offset := activity.LocalTimestamp.Sub(activity.Timestamp).Round(15 * time.Minute)
	if offset > maxZoneOffset || offset < -maxZoneOffset {
		return start
	}
	return start.Add(offset)
}

func validUint8(v uint8) bool { return v != 0 && v != math.MaxUint8 }

func centimetres(v uint32) float64 {
	if v == math.MaxUint32 {
		return 0
	}
	return float64(v) / 100
}

func millis(v uint32) float64 {
	if v == math.MaxUint32 {
		return 0
	}
	return float64(v) / 1000
}

func speed(enhanced uint32, avg uint16) float64 {
	if enhanced != 0 && enhanced != math.MaxUint32 {
		return float64(enhanced) / 1000
	}
	if avg != 0 && avg != math.MaxUint16 {
		return float64(avg) / 1000
	}
	return 0
}

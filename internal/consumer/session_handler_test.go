package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
	"github.com/deweiiss/sportMe-sub000/internal/service"
	"github.com/deweiiss/sportMe-sub000/pkg/events"
)

type stubMatcher struct {
	result  service.MatchResult
	err     error
	calls   int
	athlete string
	opts    service.MatchOptions
}

func (m *stubMatcher) RunMatchPass(_ context.Context, athleteID string, opts service.MatchOptions) (service.MatchResult, error) {
	m.calls++
	m.athlete = athleteID
	m.opts = opts
	return m.result, m.err
}

func importedMessage(t *testing.T, ev events.SessionImported) Message {
	t.Helper()
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	return Message{Topic: events.TopicSessionEvents, EventType: events.EventSessionImported, Payload: payload}
}

func TestSessionImportedTriggersPassWithLookback(t *testing.T) {
	matcher := &stubMatcher{result: service.MatchResult{Success: true, PlanID: "p1", Matched: 1}}
	h := NewSessionImportedHandler(matcher, 48*time.Hour, quietLogger())

	started := time.Date(2024, 3, 13, 6, 30, 0, 0, time.UTC)
	require.NoError(t, h.Handle(context.Background(), importedMessage(t, events.SessionImported{SessionID: "s1", AthleteID: "ath-1", StartedAt: started})))

	require.Equal(t, 1, matcher.calls)
	require.Equal(t, "ath-1", matcher.athlete)
	require.NotNil(t, matcher.opts.Since)
	require.Equal(t, started.Add(-48*time.Hour), *matcher.opts.Since)
}

func TestSessionImportedWithoutLookbackCoversWholePlan(t *testing.T) {
	matcher := &stubMatcher{result: service.MatchResult{Success: true}}
	h := NewSessionImportedHandler(matcher, 0, quietLogger())

	require.NoError(t, h.Handle(context.Background(), importedMessage(t, events.SessionImported{AthleteID: "ath-1", StartedAt: time.Now()})))
	require.Nil(t, matcher.opts.Since)
}

func TestSessionImportedOutcomes(t *testing.T) {
	ev := events.SessionImported{SessionID: "s1", AthleteID: "ath-1"}

	skipped := &stubMatcher{result: service.MatchResult{Success: true, Skipped: true}}
	require.NoError(t, NewSessionImportedHandler(skipped, time.Hour, quietLogger()).Handle(context.Background(), importedMessage(t, ev)))

	failing := &stubMatcher{result: service.MatchResult{Error: "connection refused"}}
	err := NewSessionImportedHandler(failing, time.Hour, quietLogger()).Handle(context.Background(), importedMessage(t, ev))
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrPermanent), "store failures are retried")

	invalid := &stubMatcher{err: domain.ErrMalformedPlan}
	err = NewSessionImportedHandler(invalid, time.Hour, quietLogger()).Handle(context.Background(), importedMessage(t, ev))
	require.ErrorIs(t, err, ErrPermanent)
}

func TestSessionImportedRejectsBadPayloadsAndIgnoresOtherEvents(t *testing.T) {
	matcher := &stubMatcher{}
	h := NewSessionImportedHandler(matcher, time.Hour, quietLogger())

	err := h.Handle(context.Background(), Message{EventType: events.EventSessionImported, Payload: json.RawMessage(`[]`)})
	require.ErrorIs(t, err, ErrPermanent)

	err = h.Handle(context.Background(), importedMessage(t, events.SessionImported{SessionID: "s1"}))
	require.ErrorIs(t, err, ErrPermanent)

	require.NoError(t, h.Handle(context.Background(), Message{EventType: "session.deleted", Payload: json.RawMessage(`{}`)}))
	require.Zero(t, matcher.calls)
}

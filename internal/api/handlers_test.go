package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deweiiss/sportMe-sub000/internal/auth"
	"github.com/deweiiss/sportMe-sub000/internal/domain"
	"github.com/deweiiss/sportMe-sub000/internal/persistence/memory"
	"github.com/deweiiss/sportMe-sub000/internal/service"
)

var today = time.Date(2024, time.March, 20, 9, 0, 0, 0, time.UTC)

func week() domain.Week {
	days := make([]domain.Slot, 7)
	for i := range days {
		days[i] = domain.Slot{Title: "Easy run", Category: "easy", PlannedDuration: 40}
	}
	days[6] = domain.Slot{IsRestDay: true, Title: "Rest"}
	return domain.Week{Days: days}
}

func newTestServer(t *testing.T) (*memory.Store, http.Handler) {
	t.Helper()
	store := memory.NewStore()
	store.SavePlan(domain.TrainingPlan{
		ID:        "plan-1",
		AthleteID: "ath-1",
		Title:     "10k block",
		StartDate: time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC),
		Weeks:     []domain.Week{week(), week()},
	})
	store.AddSessions(
		domain.RecordedSession{ID: "s1", AthleteID: "ath-1", Kind: domain.KindRun, Name: "Morning Run",
			StartLocal: time.Date(2024, time.March, 11, 7, 0, 0, 0, time.UTC), Start: time.Date(2024, time.March, 11, 6, 0, 0, 0, time.UTC),
			DistanceMeters: 8000, MovingTimeSec: 2400, AverageSpeed: 3.33},
		domain.RecordedSession{ID: "s2", AthleteID: "ath-1", Kind: domain.KindRun, Name: "Lunch Run",
			StartLocal: time.Date(2024, time.March, 11, 12, 0, 0, 0, time.UTC), Start: time.Date(2024, time.March, 11, 11, 0, 0, 0, time.UTC),
			DistanceMeters: 5000, MovingTimeSec: 1500, AverageSpeed: 3.33},
	)
	svc := service.New(store, store, store, store, service.WithClock(func() time.Time { return today }))

	mux := http.NewServeMux()
	NewHandler(svc).RegisterRoutes(mux)
	return store, mux
}

func do(t *testing.T, handler http.Handler, method, path string, body any, scopes ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if scopes != nil {
		set := make(map[string]struct{}, len(scopes))
		for _, s := range scopes {
			set[s] = struct{}{}
		}
		claims := &auth.Claims{AthleteID: "ath-1", Scopes: set, ExpiresAt: time.Now().Add(time.Hour)}
		req = req.WithContext(auth.WithClaims(req.Context(), claims))
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func errorType(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body["type"]
}

func TestActivePlanIncludesSlotDates(t *testing.T) {
	_, handler := newTestServer(t)

	rr := do(t, handler, http.MethodGet, "/v1/plans/active", nil, auth.ScopePlansRead)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var view PlanView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	require.Equal(t, "plan-1", view.ID)
	require.Equal(t, "2024-03-11", view.StartDate)
	require.Len(t, view.Weeks, 2)
	require.Equal(t, "2024-03-11", view.Weeks[0].Days[0].Date)
	require.Equal(t, "2024-03-18", view.Weeks[1].Days[0].Date)
	require.Equal(t, domain.StateUnresolved, view.Weeks[0].Days[0].State)
	require.Equal(t, "Easy run", view.Weeks[0].Days[0].Title)
}

func TestScopesAreEnforced(t *testing.T) {
	_, handler := newTestServer(t)

	rr := do(t, handler, http.MethodGet, "/v1/plans/active", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, handler, http.MethodPost, "/v1/match-passes", nil, auth.ScopePlansRead)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "forbidden", errorType(t, rr))

	rr = do(t, handler, http.MethodGet, "/v1/suggestions", nil, auth.ScopePlansWrite)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestMatchPassReturnsResult(t *testing.T) {
	_, handler := newTestServer(t)

	rr := do(t, handler, http.MethodPost, "/v1/match-passes", map[string]any{}, auth.ScopePlansWrite)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var result service.MatchResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	require.True(t, result.Success)
	require.Equal(t, "plan-1", result.PlanID)
	require.Equal(t, 2, result.Considered)
}

func TestAcceptSuggestionOutcomes(t *testing.T) {
	store, handler := newTestServer(t)

	rr := do(t, handler, http.MethodPost, "/v1/plans/plan-1/slots/0/0/accept", AcceptRequest{SessionID: "s1"}, auth.ScopePlansWrite)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var result service.SlotResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	require.Equal(t, service.OutcomeApplied, result.Outcome)
	require.Equal(t, domain.MatchSuggestedAccepted, result.Slot.MatchType)
	require.InDelta(t, service.AcceptedConfidence, *result.Slot.MatchConfidence, 1e-9)

	rr = do(t, handler, http.MethodPost, "/v1/plans/plan-1/slots/0/0/accept", AcceptRequest{SessionID: "s1"}, auth.ScopePlansWrite)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, handler, http.MethodPost, "/v1/plans/plan-1/slots/0/0/accept", AcceptRequest{SessionID: "s2"}, auth.ScopePlansWrite)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "conflict", errorType(t, rr))

	rr = do(t, handler, http.MethodPost, "/v1/plans/plan-1/slots/0/1/accept", AcceptRequest{SessionID: "missing"}, auth.ScopePlansWrite)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, handler, http.MethodPost, "/v1/plans/nope/slots/0/0/accept", AcceptRequest{SessionID: "s2"}, auth.ScopePlansWrite)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, handler, http.MethodPost, "/v1/plans/plan-1/slots/9/0/accept", AcceptRequest{SessionID: "s2"}, auth.ScopePlansWrite)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, handler, http.MethodPost, "/v1/plans/plan-1/slots/0/x/accept", AcceptRequest{SessionID: "s2"}, auth.ScopePlansWrite)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	plan, err := store.GetPlan(t.Context(), "ath-1", "plan-1")
	require.NoError(t, err)
	require.Equal(t, "s1", plan.Weeks[0].Days[0].MatchedSessionID)
}

func TestRejectWithoutSuggestionIsNoop(t *testing.T) {
	_, handler := newTestServer(t)

	rr := do(t, handler, http.MethodPost, "/v1/plans/plan-1/slots/0/2/reject", nil, auth.ScopePlansWrite)
	require.Equal(t, http.StatusOK, rr.Code)
	var result service.SlotResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	require.Equal(t, service.OutcomeNoop, result.Outcome)
}

func TestTransitions(t *testing.T) {
	_, handler := newTestServer(t)

	rr := do(t, handler, http.MethodPost, "/v1/plans/plan-1/slots/0/3/transitions", TransitionRequest{Type: "mark_missed", Reason: "sick"}, auth.ScopePlansWrite)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var result service.SlotResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	require.True(t, result.Slot.IsMissed)
	require.Equal(t, "sick", result.Slot.MissedReason)

	rr = do(t, handler, http.MethodPost, "/v1/plans/plan-1/slots/0/3/transitions", TransitionRequest{Type: "complete_without_match", Date: "2024-03-14", Note: "treadmill"}, auth.ScopePlansWrite)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	require.True(t, result.Slot.IsCompleted)
	require.False(t, result.Slot.IsMissed)
	require.Equal(t, domain.CompletionManualCheckbox, result.Slot.CompletionType)

	for _, bad := range []TransitionRequest{
		{Type: "complete_with_match", SessionID: "s1"},
		{Type: "manual_match"},
		{Type: "complete_without_match", Date: "14/03/2024"},
	} {
		rr = do(t, handler, http.MethodPost, "/v1/plans/plan-1/slots/0/3/transitions", bad, auth.ScopePlansWrite)
		require.Equal(t, http.StatusBadRequest, rr.Code, bad.Type)
	}

	rr = do(t, handler, http.MethodPost, "/v1/plans/plan-1/slots/0/6/transitions", TransitionRequest{Type: "manual_match", SessionID: "s2"}, auth.ScopePlansWrite)
	require.Equal(t, http.StatusBadRequest, rr.Code, "rest days cannot hold a session")
}

func TestMissedWorkouts(t *testing.T) {
	_, handler := newTestServer(t)

	rr := do(t, handler, http.MethodGet, "/v1/plans/active/missed?grace_days=3", nil, auth.ScopePlansRead)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var result service.MissedResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	require.True(t, result.Success)
	require.NotEmpty(t, result.Missed)
	reported := len(result.Missed)

	rr = do(t, handler, http.MethodGet, "/v1/plans/active/missed?grace_days=-1", nil, auth.ScopePlansRead)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, handler, http.MethodPost, "/v1/plans/active/missed?grace_days=3", MarkMissedRequest{Reason: "skipped"}, auth.ScopePlansWrite)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	require.Equal(t, reported, result.Marked)

	rr = do(t, handler, http.MethodGet, "/v1/plans/active/missed?grace_days=3", nil, auth.ScopePlansRead)
	result = service.MissedResult{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	require.Len(t, result.Missed, reported)
	for _, m := range result.Missed {
		require.True(t, m.Marked)
	}
}

func TestHealthz(t *testing.T) {
	_, handler := newTestServer(t)
	rr := do(t, handler, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

// Package api exposes HTTP handlers for plan matching.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/deweiiss/sportMe-sub000/internal/auth"
	"github.com/deweiiss/sportMe-sub000/internal/domain"
	"github.com/deweiiss/sportMe-sub000/internal/planning"
	"github.com/deweiiss/sportMe-sub000/internal/service"
)

// Handler coordinates HTTP requests with the matching service.
type Handler struct {
	service *service.Service
}

// NewHandler builds a Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", healthz)
	mux.HandleFunc("GET /v1/plans/active", h.activePlan)
	mux.HandleFunc("GET /v1/plans/active/missed", h.missedWorkouts)
	mux.HandleFunc("POST /v1/plans/active/missed", h.markMissed)
	mux.HandleFunc("POST /v1/match-passes", h.runMatchPass)
	mux.HandleFunc("GET /v1/suggestions", h.listSuggestions)
	mux.HandleFunc("POST /v1/plans/{planID}/slots/{week}/{day}/accept", h.acceptSuggestion)
	mux.HandleFunc("POST /v1/plans/{planID}/slots/{week}/{day}/reject", h.rejectSuggestion)
	mux.HandleFunc("POST /v1/plans/{planID}/slots/{week}/{day}/transitions", h.applyTransition)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) activePlan(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopePlansRead)
	if !ok {
		return
	}

	plan, err := h.service.ActivePlan(r.Context(), claims.AthleteID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if plan == nil {
		writeError(w, http.StatusNotFound, "not_found", "no active training plan")
		return
	}
	writeJSON(w, http.StatusOK, toPlanView(*plan))
}

func (h *Handler) runMatchPass(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopePlansWrite)
	if !ok {
		return
	}

	var req MatchPassRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.service.RunMatchPass(r.Context(), claims.AthleteID, service.MatchOptions{Since: req.Since})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !result.Success {
		writeError(w, http.StatusInternalServerError, "server_error", result.Message+": "+result.Error)
		return
	}
	status := http.StatusOK
	if result.Skipped {
		status = http.StatusAccepted
	}
	writeJSON(w, status, result)
}

func (h *Handler) listSuggestions(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopePlansRead)
	if !ok {
		return
	}

	suggestions, err := h.service.Suggestions(r.Context(), claims.AthleteID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if suggestions == nil {
		suggestions = []domain.Suggestion{}
	}
	writeJSON(w, http.StatusOK, ListSuggestionsResponse{Items: suggestions})
}

func (h *Handler) acceptSuggestion(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopePlansWrite)
	if !ok {
		return
	}
	planID, week, day, ok := slotPath(w, r)
	if !ok {
		return
	}

	var req AcceptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "session_id is required")
		return
	}

	result, err := h.service.AcceptSuggestion(r.Context(), claims.AthleteID, planID, week, day, req.SessionID)
	writeSlotResult(w, result, err)
}

func (h *Handler) rejectSuggestion(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopePlansWrite)
	if !ok {
		return
	}
	planID, week, day, ok := slotPath(w, r)
	if !ok {
		return
	}

	result, err := h.service.RejectSuggestion(r.Context(), claims.AthleteID, planID, week, day)
	writeSlotResult(w, result, err)
}

func (h *Handler) applyTransition(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopePlansWrite)
	if !ok {
		return
	}
	planID, week, day, ok := slotPath(w, r)
	if !ok {
		return
	}

	var req TransitionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := req.Transition()
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	result, err := h.service.ApplyTransition(r.Context(), claims.AthleteID, planID, week, day, t)
	writeSlotResult(w, result, err)
}

func (h *Handler) missedWorkouts(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopePlansRead)
	if !ok {
		return
	}
	grace, ok := graceDays(w, r)
	if !ok {
		return
	}

	result, err := h.service.MissedWorkouts(r.Context(), claims.AthleteID, grace)
	writeMissedResult(w, result, err)
}

func (h *Handler) markMissed(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopePlansWrite)
	if !ok {
		return
	}
	grace, ok := graceDays(w, r)
	if !ok {
		return
	}

	var req MarkMissedRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.service.MarkOverdueMissed(r.Context(), claims.AthleteID, grace, req.Reason)
	writeMissedResult(w, result, err)
}

// MatchPassRequest is the optional payload for POST /v1/match-passes.
type MatchPassRequest struct {
	Since *time.Time `json:"since,omitempty"`
}

// AcceptRequest is the payload for the accept endpoint.
type AcceptRequest struct {
	SessionID string `json:"session_id"`
}

// MarkMissedRequest is the optional payload for POST /v1/plans/active/missed.
type MarkMissedRequest struct {
	Reason string `json:"reason,omitempty"`
}

// TransitionRequest is the payload for the transitions endpoint.
type TransitionRequest struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Note      string `json:"note,omitempty"`
	// Date is a calendar date (YYYY-MM-DD) for completions.
	Date string `json:"date,omitempty"`
}

var clientTransitions = map[string]planning.TransitionKind{
	string(planning.ManualMatch):          planning.ManualMatch,
	string(planning.CompleteWithoutMatch): planning.CompleteWithoutMatch,
	string(planning.MarkMissed):           planning.MarkMissed,
	string(planning.Unmatch):              planning.Unmatch,
	string(planning.AddNote):              planning.AddNote,
	string(planning.ClearMissed):          planning.ClearMissed,
}

// Transition validates the request and converts it.
func (r TransitionRequest) Transition() (planning.Transition, error) {
	kind, ok := clientTransitions[strings.TrimSpace(r.Type)]
	if !ok {
		return planning.Transition{}, errors.New("unsupported transition type " + strconv.Quote(r.Type))
	}
	t := planning.Transition{
		Kind:      kind,
		SessionID: strings.TrimSpace(r.SessionID),
		Reason:    r.Reason,
		Note:      r.Note,
	}
	if kind == planning.ManualMatch && t.SessionID == "" {
		return planning.Transition{}, errors.New("session_id is required")
	}
	if r.Date != "" {
		date, err := time.Parse(time.DateOnly, r.Date)
		if err != nil {
			return planning.Transition{}, errors.New("date must be YYYY-MM-DD")
		}
		t.Date = date
	}
	return t, nil
}

// PlanView is a plan with derived slot dates and states.
type PlanView struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	StartDate string     `json:"start_date"`
	EndDate   string     `json:"end_date,omitempty"`
	Version   int        `json:"version"`
	Weeks     []WeekView `json:"weeks"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// WeekView is one plan week.
type WeekView struct {
	Focus string     `json:"focus,omitempty"`
	Days  []SlotView `json:"days"`
}

// SlotView is a slot plus its position, calendar date and state.
type SlotView struct {
	WeekIndex int              `json:"week_index"`
	DayIndex  int              `json:"day_index"`
	Date      string           `json:"date"`
	State     domain.SlotState `json:"state"`
	domain.Slot
}

// ListSuggestionsResponse packages queued suggestions.
type ListSuggestionsResponse struct {
	Items []domain.Suggestion `json:"items"`
}

func toPlanView(plan domain.TrainingPlan) PlanView {
	view := PlanView{
		ID:        plan.ID,
		Title:     plan.Title,
		StartDate: plan.StartDate.Format(time.DateOnly),
		Version:   plan.Version,
		Weeks:     make([]WeekView, 0, len(plan.Weeks)),
		UpdatedAt: plan.UpdatedAt,
	}
	if !plan.EndDate.IsZero() {
		view.EndDate = plan.EndDate.Format(time.DateOnly)
	}
	for w, week := range plan.Weeks {
		days := make([]SlotView, 0, len(week.Days))
		for d, slot := range week.Days {
			days = append(days, SlotView{
				WeekIndex: w,
				DayIndex:  d,
				Date:      planning.SlotDate(plan.StartDate, w, d).Format(time.DateOnly),
				State:     slot.State(),
				Slot:      slot,
			})
		}
		view.Weeks = append(view.Weeks, WeekView{Focus: week.Focus, Days: days})
	}
	return view
}

// authorize checks for claims carrying scope. Write scope implies read.
func authorize(w http.ResponseWriter, r *http.Request, scope string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.HasScope(scope) && !(scope == auth.ScopePlansRead && claims.HasScope(auth.ScopePlansWrite)) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return nil, false
	}
	if strings.TrimSpace(claims.AthleteID) == "" {
		writeError(w, http.StatusForbidden, "forbidden", "token has no subject")
		return nil, false
	}
	return claims, true
}

func slotPath(w http.ResponseWriter, r *http.Request) (string, int, int, bool) {
	planID := strings.TrimSpace(r.PathValue("planID"))
	if planID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing plan id")
		return "", 0, 0, false
	}
	week, err := strconv.Atoi(r.PathValue("week"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "week must be an integer")
		return "", 0, 0, false
	}
	day, err := strconv.Atoi(r.PathValue("day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "day must be an integer")
		return "", 0, 0, false
	}
	return planID, week, day, true
}

func graceDays(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("grace_days")
	if raw == "" {
		return -1, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "grace_days must be a non-negative integer")
		return 0, false
	}
	return parsed, true
}

// decodeBody tolerates an empty body.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	return true
}

func writeSlotResult(w http.ResponseWriter, result service.SlotResult, err error) {
	if err != nil {
		writeServiceError(w, err)
		return
	}
	switch result.Outcome {
	case service.OutcomeApplied, service.OutcomeNoop:
		writeJSON(w, http.StatusOK, result)
	case service.OutcomeNotFound:
		writeError(w, http.StatusNotFound, "not_found", result.Message)
	case service.OutcomeConflict:
		writeError(w, http.StatusConflict, "conflict", result.Message)
	default:
		writeError(w, http.StatusInternalServerError, "server_error", result.Message+": "+result.Error)
	}
}

func writeMissedResult(w http.ResponseWriter, result service.MissedResult, err error) {
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !result.Success {
		writeError(w, http.StatusInternalServerError, "server_error", result.Message+": "+result.Error)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrPlanNotFound), errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrSuggestionNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrSlotConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

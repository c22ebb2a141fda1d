package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/deweiiss/sportMe-sub000/internal/service"
	"github.com/deweiiss/sportMe-sub000/pkg/events"
)

// Matcher runs matching passes. *service.Service satisfies it.
type Matcher interface {
	RunMatchPass(ctx context.Context, athleteID string, opts service.MatchOptions) (service.MatchResult, error)
}

// SessionImportedHandler triggers a matching pass for every imported session.
// The pass looks back from the session start so late arrivals still match.
type SessionImportedHandler struct {
	matcher  Matcher
	lookback time.Duration
	logger   *slog.Logger
}

// NewSessionImportedHandler constructs the handler. A non-positive lookback
// makes the pass cover the whole plan.
func NewSessionImportedHandler(matcher Matcher, lookback time.Duration, logger *slog.Logger) *SessionImportedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionImportedHandler{matcher: matcher, lookback: lookback, logger: logger}
}

// Handle implements Handler. Other event types are ignored.
func (h *SessionImportedHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != events.EventSessionImported {
		return nil
	}

	var ev events.SessionImported
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrPermanent, msg.EventType, err)
	}
	if strings.TrimSpace(ev.AthleteID) == "" {
		return fmt.Errorf("%w: %s without athlete_id", ErrPermanent, msg.EventType)
	}

	var opts service.MatchOptions
	if h.lookback > 0 && !ev.StartedAt.IsZero() {
		since := ev.StartedAt.Add(-h.lookback)
		opts.Since = &since
	}

	logger := h.logger.With(slog.String("athlete_id", ev.AthleteID), slog.String("session_id", ev.SessionID))
	result, err := h.matcher.RunMatchPass(ctx, ev.AthleteID, opts)
	switch {
	case err != nil:
		recordTriggered("invalid")
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	case result.Skipped:
		recordTriggered("skipped")
		logger.InfoContext(ctx, "matching pass already running; event acknowledged")
		return nil
	case !result.Success:
		recordTriggered("failed")
		return fmt.Errorf("matching pass for %s: %s", ev.AthleteID, result.Error)
	}

	recordTriggered("completed")
	logger.InfoContext(ctx, "matching pass completed",
		slog.String("plan_id", result.PlanID),
		slog.Int("matched", result.Matched),
		slog.Int("suggested", result.Suggested),
	)
	return nil
}

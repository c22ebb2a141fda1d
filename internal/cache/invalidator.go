// Package cache notifies the plan read cache in front of the UI that a plan
// changed.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// Invalidator evicts cached copies of a plan.
type Invalidator interface {
	InvalidatePlan(ctx context.Context, athleteID, planID string) error
}

// NoopInvalidator does nothing.
type NoopInvalidator struct{}

// InvalidatePlan implements Invalidator.
func (NoopInvalidator) InvalidatePlan(context.Context, string, string) error { return nil }

// HTTPInvalidator posts plan identities to an edge cache purge endpoint.
type HTTPInvalidator struct {
	client *http.Client
	url    string
	token  string
}

// NewHTTPInvalidator constructs an HTTPInvalidator.
func NewHTTPInvalidator(endpoint, token string, timeout time.Duration) *HTTPInvalidator {
	return &HTTPInvalidator{
		client: &http.Client{Timeout: timeout},
		url:    strings.TrimRight(endpoint, "/"),
		token:  token,
	}
}

type purgeRequest struct {
	AthleteID string `json:"athlete_id"`
	PlanID    string `json:"plan_id"`
}

// InvalidatePlan implements Invalidator.
func (h *HTTPInvalidator) InvalidatePlan(ctx context.Context, athleteID, planID string) error {
	body, err := json.Marshal(purgeRequest{AthleteID: athleteID, PlanID: planID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &InvalidationError{Status: resp.StatusCode, PlanID: planID}
	}
	return nil
}

// InvalidationError is a non-successful purge response.
type InvalidationError struct {
	Status int
	PlanID string
}

func (e *InvalidationError) Error() string {
	return "plan " + e.PlanID + " cache invalidation failed: " + http.StatusText(e.Status)
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHTTPInvalidatorPostsPlan(t *testing.T) {
	var got purgeRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	inv := NewHTTPInvalidator(srv.URL+"/", "purge-token", time.Second)
	require.NoError(t, inv.InvalidatePlan(context.Background(), "athlete-1", "plan-1"))
	require.Equal(t, "Bearer purge-token", auth)
	require.Equal(t, purgeRequest{AthleteID: "athlete-1", PlanID: "plan-1"}, got)
}

func TestHTTPInvalidatorReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewHTTPInvalidator(srv.URL, "", time.Second).InvalidatePlan(context.Background(), "a", "p")
	var invErr *InvalidationError
	require.True(t, errors.As(err, &invErr))
	require.Equal(t, http.StatusBadGateway, invErr.Status)
	require.Contains(t, err.Error(), "plan p")
}

func TestNoopInvalidator(t *testing.T) {
	require.NoError(t, NoopInvalidator{}.InvalidatePlan(context.Background(), "a", "p"))
}

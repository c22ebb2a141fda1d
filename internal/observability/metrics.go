// Package observability exposes Prometheus metrics for the matching engine.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "plan_matching"

var (
	matchPasses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orchestrator",
		Name:      "passes_total",
		Help:      "Matching passes by outcome.",
	}, []string{"outcome"})

	matchPassDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "orchestrator",
		Name:      "pass_duration_seconds",
		Help:      "Wall time of matching passes that ran.",
		Buckets:   prometheus.DefBuckets,
	})

	sessionsClassified = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "classifier",
		Name:      "sessions_total",
		Help:      "Sessions classified by workout type.",
	}, []string{"workout_type"})

	matchesApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orchestrator",
		Name:      "matches_total",
		Help:      "Session to slot matches by band and disposition.",
	}, []string{"band", "disposition"})

	suggestionDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "suggestions",
		Name:      "decisions_total",
		Help:      "Suggestions accepted or rejected by athletes.",
	}, []string{"decision"})

	missedSlots = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "missed",
		Name:      "slots_reported_total",
		Help:      "Overdue slots reported by missed-workout detection.",
	})

	planPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "persistence",
		Name:      "last_plan_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent plan rewrite persisted.",
	})
)

func init() {
	prometheus.MustRegister(matchPasses, matchPassDuration, sessionsClassified, matchesApplied, suggestionDecisions, missedSlots, planPersistGauge)
}

// Pass outcomes.
const (
	OutcomeMatched = "matched"
	OutcomeNoop    = "noop"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// RecordPass counts a finished pass; duration is ignored for skipped passes.
func RecordPass(outcome string, duration time.Duration) {
	matchPasses.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSkipped {
		matchPassDuration.Observe(duration.Seconds())
	}
}

// RecordClassified counts a classified session.
func RecordClassified(workoutType string) {
	sessionsClassified.WithLabelValues(workoutType).Inc()
}

// RecordMatch counts a best match by band; disposition is "auto" or "suggested".
func RecordMatch(band, disposition string) {
	matchesApplied.WithLabelValues(band, disposition).Inc()
}

// RecordSuggestionDecision counts accept and reject calls.
func RecordSuggestionDecision(decision string) {
	suggestionDecisions.WithLabelValues(decision).Inc()
}

// RecordMissed adds n reported slots.
func RecordMissed(n int) {
	if n > 0 {
		missedSlots.Add(float64(n))
	}
}

// RecordPlanPersisted updates the persistence watermark gauge.
func RecordPlanPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	planPersistGauge.Set(float64(ts.Unix()))
}

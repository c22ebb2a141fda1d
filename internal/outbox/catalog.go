package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/deweiiss/sportMe-sub000/pkg/events"
)

// EventMetadata describes how to route and validate an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
	Schema        string
}

var eventCatalog = map[string]EventMetadata{
	events.EventSlotStateChanged: {
		Topic:         events.TopicPlanEvents,
		SchemaSubject: events.TopicPlanEvents + "-value",
		Schema:        slotStateChangedSchema,
	},
}

// Lookup returns the routing metadata for an event type.
func Lookup(eventType string) (EventMetadata, bool) {
	meta, ok := eventCatalog[eventType]
	return meta, ok
}

// Event is a domain event staged for delivery.
type Event struct {
	AthleteID     string
	AggregateType string
	AggregateID   string
	EventType     string
	PartitionKey  string
	// DedupeKey suppresses a second insert of the same event. Optional.
	DedupeKey string
	Payload   any
}

// Append records ev in the outbox inside the caller's transaction.
func Append(ctx context.Context, tx pgx.Tx, ev Event) error {
	meta, ok := Lookup(ev.EventType)
	if !ok {
		return fmt.Errorf("unknown event type: %s", ev.EventType)
	}

	body, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (athlete_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (dedupe_key) DO NOTHING`

	_, err = tx.Exec(ctx, stmt,
		ev.AthleteID,
		ev.AggregateType,
		ev.AggregateID,
		ev.EventType,
		meta.Topic,
		meta.SchemaSubject,
		ev.PartitionKey,
		body,
		nullIfEmpty(ev.DedupeKey),
	)
	return err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

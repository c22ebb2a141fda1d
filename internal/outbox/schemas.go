package outbox

const slotStateChangedSchema = `{
  "type": "object",
  "title": "SlotStateChanged",
  "properties": {
    "event_id": {"type": "string", "minLength": 1},
    "plan_id": {"type": "string", "minLength": 1},
    "athlete_id": {"type": "string", "minLength": 1},
    "week_index": {"type": "integer", "minimum": 0},
    "day_index": {"type": "integer", "minimum": 0},
    "state": {"enum": ["unresolved", "matched", "completed", "missed"]},
    "match_type": {"enum": ["auto", "manual", "suggested_accepted"]},
    "session_id": {"type": "string"},
    "match_confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "missed_reason": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["event_id", "plan_id", "athlete_id", "week_index", "day_index", "state", "occurred_at"],
  "additionalProperties": false
}`

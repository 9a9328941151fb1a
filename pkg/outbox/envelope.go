package outbox

import (
	"encoding/json"
	"time"
)

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// EmailPayload is the Data shape for notification events: the trigger name
// the email collaborator resolves to a template, the recipient, and the
// template variables (order totals, item list).
type EmailPayload struct {
	Trigger   string         `json:"trigger"`
	Recipient string         `json:"recipient"`
	Variables map[string]any `json:"variables"`
}

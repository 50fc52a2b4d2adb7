// Package telemetry records named user-interface events such as wizard
// cancellations and successful dataset creation.
package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event names emitted by the dataset creation footer.
const (
	ActionDatasetCreationEmptyCancellation    = "dataset_creation_empty_cancellation"
	ActionDatasetCreationDatabaseCancellation = "dataset_creation_database_cancellation"
	ActionDatasetCreationSchemaCancellation   = "dataset_creation_schema_cancellation"
	ActionDatasetCreationTableCancellation    = "dataset_creation_table_cancellation"
	ActionDatasetCreationSuccess              = "dataset_creation_success"
)

// Logger records telemetry events.
type Logger interface {
	Log(ctx context.Context, event Event) error
}

// Event is a single telemetry record.
type Event struct {
	ID        string         `json:"id"`
	Name      string         `json:"event_name"`
	Payload   map[string]any `json:"payload"`
	UserID    string         `json:"user_id,omitempty"`
	Source    string         `json:"source,omitempty"`
	Timestamp time.Time      `json:"ts"`
}

// NewEvent creates an event with a fresh id and the current time.
func NewEvent(name string, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{
		ID:        uuid.NewString(),
		Name:      name,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// WithUser sets the user the event is attributed to.
func (e Event) WithUser(userID string) Event {
	e.UserID = userID
	return e
}

// WithSource sets the client that produced the event.
func (e Event) WithSource(source string) Event {
	e.Source = source
	return e
}

var sensitiveKeys = map[string]bool{
	"password":          true,
	"api_password":      true,
	"secret":            true,
	"client_secret":     true,
	"lwa_client_secret": true,
	"token":             true,
	"refresh_token":     true,
	"api_key":           true,
	"authorization":     true,
	"credentials":       true,
}

// SanitizePayload returns a copy of payload with credential values redacted.
// Nested maps are sanitized recursively.
func SanitizePayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if sensitiveKeys[k] {
			out[k] = "[REDACTED]"
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = SanitizePayload(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// QueryFilter narrows a telemetry query.
type QueryFilter struct {
	Name      string
	UserID    string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

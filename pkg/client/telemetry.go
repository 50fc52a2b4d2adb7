package client

import (
	"context"
	"net/http"

	"github.com/txn2/source-wizard/pkg/telemetry"
)

const logPath = "/api/v1/log/"

type logEvent struct {
	Name    string         `json:"event_name"`
	Payload map[string]any `json:"payload"`
	Source  string         `json:"source,omitempty"`
	TS      int64          `json:"ts,omitempty"`
}

// Log sends one telemetry event to the server.
func (c *Client) Log(ctx context.Context, event telemetry.Event) error {
	ev := logEvent{Name: event.Name, Payload: event.Payload, Source: event.Source}
	if !event.Timestamp.IsZero() {
		ev.TS = event.Timestamp.UnixMilli()
	}
	body := map[string]any{"events": []logEvent{ev}}
	return c.do(ctx, http.MethodPost, logPath, nil, body, nil)
}

var _ telemetry.Logger = (*Client)(nil)

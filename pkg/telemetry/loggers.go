package telemetry

import (
	"context"
	"errors"
	"log/slog"
)

// SlogLogger writes events to a structured logger.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger creates a SlogLogger. A nil logger uses slog.Default().
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

// Log writes the event at info level.
func (l *SlogLogger) Log(ctx context.Context, event Event) error {
	l.logger.InfoContext(ctx, "telemetry event",
		"event_id", event.ID,
		"event_name", event.Name,
		"user_id", event.UserID,
		"payload", SanitizePayload(event.Payload),
	)
	return nil
}

// MultiLogger fans an event out to several loggers.
type MultiLogger []Logger

// Log sends event to every logger and joins their errors.
func (m MultiLogger) Log(ctx context.Context, event Event) error {
	var errs []error
	for _, l := range m {
		if err := l.Log(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoopLogger discards events.
type NoopLogger struct{}

// Log does nothing.
func (NoopLogger) Log(context.Context, Event) error { return nil }

// Verify interface compliance.
var (
	_ Logger = (*SlogLogger)(nil)
	_ Logger = MultiLogger(nil)
	_ Logger = NoopLogger{}
)

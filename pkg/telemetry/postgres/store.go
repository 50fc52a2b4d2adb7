// Package postgres provides PostgreSQL storage for telemetry events.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/txn2/source-wizard/pkg/telemetry"
)

const (
	defaultRetentionDays = 180
	defaultQueryCapacity = 100
	maxQueryCapacity     = 10000
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var eventColumns = []string{"id", "ts", "event_name", "user_id", "source", "payload"}

// Store implements telemetry.Logger using PostgreSQL.
type Store struct {
	db            *sql.DB
	retentionDays int
	cancel        context.CancelFunc
	done          chan struct{}
}

// Config configures the PostgreSQL telemetry store.
type Config struct {
	RetentionDays int
}

// New creates a new PostgreSQL telemetry store.
func New(db *sql.DB, cfg Config) *Store {
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = defaultRetentionDays
	}
	return &Store{db: db, retentionDays: cfg.RetentionDays}
}

// Log records a telemetry event. Credential values in the payload are
// redacted before they are stored.
func (s *Store) Log(ctx context.Context, event telemetry.Event) error {
	payload, err := json.Marshal(telemetry.SanitizePayload(event.Payload))
	if err != nil {
		payload = []byte("{}")
	}

	query, args, err := psq.Insert("telemetry_events").
		Columns(eventColumns...).
		Values(event.ID, event.Timestamp, event.Name, event.UserID, event.Source, payload).
		ToSql()
	if err != nil {
		return fmt.Errorf("building telemetry insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting telemetry event: %w", err)
	}
	return nil
}

func applyFilter(qb sq.SelectBuilder, f telemetry.QueryFilter) sq.SelectBuilder {
	if f.Name != "" {
		qb = qb.Where(sq.Eq{"event_name": f.Name})
	}
	if f.UserID != "" {
		qb = qb.Where(sq.Eq{"user_id": f.UserID})
	}
	if f.StartTime != nil {
		qb = qb.Where(sq.GtOrEq{"ts": *f.StartTime})
	}
	if f.EndTime != nil {
		qb = qb.Where(sq.LtOrEq{"ts": *f.EndTime})
	}
	return qb
}

// Query returns events matching the filter, newest first.
func (s *Store) Query(ctx context.Context, f telemetry.QueryFilter) ([]telemetry.Event, error) {
	qb := applyFilter(psq.Select(eventColumns...).From("telemetry_events"), f).OrderBy("ts DESC")
	if f.Limit > 0 {
		qb = qb.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		qb = qb.Offset(uint64(f.Offset))
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building telemetry query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying telemetry events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	capacity := defaultQueryCapacity
	if f.Limit > 0 && f.Limit <= maxQueryCapacity {
		capacity = f.Limit
	}
	events := make([]telemetry.Event, 0, capacity)
	for rows.Next() {
		var (
			e       telemetry.Event
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Name, &e.UserID, &e.Source, &payload); err != nil {
			return nil, fmt.Errorf("scanning telemetry row: %w", err)
		}
		if len(payload) > 0 {
			_ = json.Unmarshal(payload, &e.Payload)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating telemetry rows: %w", err)
	}
	return events, nil
}

// CountByName returns the number of matching events per event name.
func (s *Store) CountByName(ctx context.Context, f telemetry.QueryFilter) (map[string]int, error) {
	f.Name = ""
	qb := applyFilter(psq.Select("event_name", "COUNT(*)").From("telemetry_events"), f).GroupBy("event_name")
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building telemetry count: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("counting telemetry events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]int)
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scanning telemetry count: %w", err)
		}
		out[name] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating telemetry counts: %w", err)
	}
	return out, nil
}

// Cleanup removes events older than the retention period.
func (s *Store) Cleanup(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM telemetry_events WHERE ts < $1`, cutoff); err != nil {
		return fmt.Errorf("cleaning up telemetry events: %w", err)
	}
	return nil
}

// StartCleanupRoutine periodically deletes expired events until Close.
func (s *Store) StartCleanupRoutine(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = s.Cleanup(ctx)
			}
		}
	}()
}

// Close stops the cleanup goroutine, if running.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

// Verify interface compliance.
var _ telemetry.Logger = (*Store)(nil)

// Package sqlitestore persists the wizard's last selection in a local SQLite
// file.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/txn2/source-wizard/pkg/selection"
)

const schema = `
CREATE TABLE IF NOT EXISTS wizard_state (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at DATETIME NOT NULL
)`

// Store implements selection.Store on SQLite.
type Store struct {
	db  *sql.DB
	key string
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &Store{db: db, key: selection.StorageKey}, nil
}

// Load returns the saved selection, or nil when none was saved.
func (s *Store) Load(ctx context.Context) (*selection.Selection, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM wizard_state WHERE key = ?`, s.key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading selection: %w", err)
	}
	var sel selection.Selection
	if err := json.Unmarshal([]byte(raw), &sel); err != nil {
		return nil, fmt.Errorf("decoding selection: %w", err)
	}
	return &sel, nil
}

// Save replaces the saved selection. Saving nil clears it.
func (s *Store) Save(ctx context.Context, sel *selection.Selection) error {
	if sel == nil {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM wizard_state WHERE key = ?`, s.key); err != nil {
			return fmt.Errorf("clearing selection: %w", err)
		}
		return nil
	}
	raw, err := json.Marshal(sel)
	if err != nil {
		return fmt.Errorf("encoding selection: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO wizard_state (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.key, string(raw), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving selection: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Verify interface compliance.
var _ selection.Store = (*Store)(nil)

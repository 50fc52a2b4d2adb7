// Package selection holds the wizard's pending selection: which source is
// being configured and which database table it should become a dataset of.
package selection

import (
	"context"
)

// StorageKey is the namespace under which the last selection is persisted.
const StorageKey = "source"

// Database identifies the database a table lives in.
type Database struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"database_name,omitempty" yaml:"database_name,omitempty"`
}

// Selection is the pending source/dataset selection.
type Selection struct {
	Name        string    `json:"name,omitempty" yaml:"name,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	DB          *Database `json:"db,omitempty" yaml:"db,omitempty"`
	Catalog     string    `json:"catalog,omitempty" yaml:"catalog,omitempty"`
	Schema      string    `json:"schema,omitempty" yaml:"schema,omitempty"`
	TableName   string    `json:"table_name,omitempty" yaml:"table_name,omitempty"`
}

// Clone returns a deep copy of s. Clone of nil is nil.
func (s *Selection) Clone() *Selection {
	if s == nil {
		return nil
	}
	c := *s
	if s.DB != nil {
		db := *s.DB
		c.DB = &db
	}
	return &c
}

// DatabaseID returns the selected database id, or 0.
func (s *Selection) DatabaseID() int64 {
	if s == nil || s.DB == nil {
		return 0
	}
	return s.DB.ID
}

// Payload flattens the selection into the map attached to telemetry events.
func (s *Selection) Payload() map[string]any {
	p := map[string]any{}
	if s == nil {
		return p
	}
	if s.Name != "" {
		p["name"] = s.Name
	}
	if s.DB != nil {
		p["db"] = map[string]any{"id": s.DB.ID, "database_name": s.DB.Name}
	}
	if s.Catalog != "" {
		p["catalog"] = s.Catalog
	}
	if s.Schema != "" {
		p["schema"] = s.Schema
	}
	if s.TableName != "" {
		p["table_name"] = s.TableName
	}
	return p
}

// Store persists the last selection outside the process.
type Store interface {
	// Load returns the stored selection, or nil when nothing was saved.
	Load(ctx context.Context) (*Selection, error)
	// Save replaces the stored selection. Saving nil clears it.
	Save(ctx context.Context, sel *Selection) error
}

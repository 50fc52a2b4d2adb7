// Package sources manages configured data sources: connector type, settings,
// sealed credentials and ownership.
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/txn2/source-wizard/pkg/source"
)

// Sentinel errors returned by stores and the service.
var (
	ErrNotFound  = errors.New("source not found")
	ErrForbidden = errors.New("changing this source requires ownership")
	ErrDuplicate = errors.New("a source with this name already exists")
)

// Order columns accepted by List.
const (
	OrderByName      = "source_name"
	OrderByChangedOn = "changed_on"
)

// Source is a configured connector instance.
type Source struct {
	ID                  int64             `json:"id"`
	Name                string            `json:"source_name"`
	Type                source.Type       `json:"source_type"`
	Description         string            `json:"description,omitempty"`
	CacheTimeout        *int              `json:"cache_timeout,omitempty"`
	Extra               map[string]any    `json:"extra_json,omitempty"`
	Settings            map[string]string `json:"settings,omitempty"`
	Credentials         []byte            `json:"-"`
	IsManagedExternally bool              `json:"is_managed_externally"`
	ExternalURL         string            `json:"external_url,omitempty"`
	Owners              []string          `json:"owners"`
	CreatedBy           string            `json:"created_by,omitempty"`
	ChangedBy           string            `json:"changed_by,omitempty"`
	CreatedOn           time.Time         `json:"created_on"`
	ChangedOn           time.Time         `json:"changed_on"`
}

// ListFilter selects and orders sources for List.
type ListFilter struct {
	// Query matches source names case-insensitively.
	Query     string
	OrderBy   string
	OrderDesc bool
	Limit     int
	Offset    int
}

// Normalize applies the default ordering (most recently changed first) and
// rejects unknown order columns.
func (f ListFilter) Normalize() (ListFilter, error) {
	switch f.OrderBy {
	case "":
		f.OrderBy = OrderByChangedOn
		f.OrderDesc = true
	case OrderByName, OrderByChangedOn:
	default:
		return f, fmt.Errorf("cannot order by %q", f.OrderBy)
	}
	if f.Limit < 0 {
		f.Limit = 0
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f, nil
}

// Store persists sources.
type Store interface {
	List(ctx context.Context, filter ListFilter) ([]Source, int, error)
	Get(ctx context.Context, id int64) (*Source, error)
	Create(ctx context.Context, src *Source) (int64, error)
	Update(ctx context.Context, src *Source) error
	Delete(ctx context.Context, id int64) error
	// ChangedSince returns the sources owned by userID changed at or after since.
	ChangedSince(ctx context.Context, userID string, since time.Time) ([]Source, error)
}

// ExploreURL returns the explore route for a source. overrides are merged
// into the form data.
func ExploreURL(id int64, overrides map[string]any) string {
	formData := map[string]any{"source_name": id}
	for k, v := range overrides {
		formData[k] = v
	}
	raw, err := json.Marshal(formData)
	if err != nil {
		raw = []byte("{}")
	}
	return fmt.Sprintf("/explore/?source_id=%d&form_data=%s", id, url.QueryEscape(string(raw)))
}

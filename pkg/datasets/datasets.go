// Package datasets creates and lists the datasets built from warehouse
// tables.
package datasets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/txn2/source-wizard/pkg/auth"
	"github.com/txn2/source-wizard/pkg/footer"
	"github.com/txn2/source-wizard/pkg/metadata"
)

// ErrDuplicate is returned when the table already backs a dataset.
var ErrDuplicate = errors.New("dataset already exists")

// ErrInvalid is returned for an incomplete creation request.
var ErrInvalid = errors.New("invalid dataset")

// Dataset is a table registered for charting.
type Dataset struct {
	ID         int64     `json:"id"`
	DatabaseID int64     `json:"database"`
	Catalog    string    `json:"catalog,omitempty"`
	Schema     string    `json:"schema,omitempty"`
	TableName  string    `json:"table_name"`
	CreatedBy  string    `json:"created_by,omitempty"`
	CreatedOn  time.Time `json:"created_on"`
}

// Filter narrows List.
type Filter struct {
	DatabaseID int64
	Schema     string
	Limit      int
	Offset     int
}

// Store persists datasets.
type Store interface {
	Create(ctx context.Context, ds *Dataset) (int64, error)
	List(ctx context.Context, filter Filter) ([]Dataset, error)
}

// TableLookup verifies that a table exists before a dataset is created.
type TableLookup interface {
	TableMetadata(ctx context.Context, databaseID int64, schema, table string) (*metadata.Table, error)
}

// Service creates and lists datasets.
type Service struct {
	store  Store
	tables TableLookup
	now    func() time.Time
}

// NewService creates a Service. tables may be nil to skip the existence check.
func NewService(store Store, tables TableLookup) *Service {
	return &Service{store: store, tables: tables, now: time.Now}
}

// Create registers the requested table as a dataset.
func (s *Service) Create(ctx context.Context, user *auth.UserContext, req footer.CreateDatasetRequest) (*Dataset, error) {
	table := strings.TrimSpace(req.TableName)
	if table == "" {
		return nil, fmt.Errorf("%w: table_name is required", ErrInvalid)
	}
	if req.Database <= 0 {
		return nil, fmt.Errorf("%w: database is required", ErrInvalid)
	}

	if s.tables != nil {
		if _, err := s.tables.TableMetadata(ctx, req.Database, req.Schema, table); err != nil {
			return nil, fmt.Errorf("checking table %s: %w", table, err)
		}
	}

	ds := &Dataset{
		DatabaseID: req.Database,
		Catalog:    req.Catalog,
		Schema:     req.Schema,
		TableName:  table,
		CreatedOn:  s.now().UTC(),
	}
	if user != nil {
		ds.CreatedBy = user.UserID
	}
	id, err := s.store.Create(ctx, ds)
	if err != nil {
		return nil, err
	}
	ds.ID = id
	return ds, nil
}

// List returns datasets matching filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]Dataset, error) {
	return s.store.List(ctx, filter)
}

// Names returns the table names of the datasets matching filter.
func (s *Service) Names(ctx context.Context, filter Filter) ([]string, error) {
	list, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(list))
	for i, d := range list {
		out[i] = d.TableName
	}
	return out, nil
}

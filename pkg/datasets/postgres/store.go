// Package postgres provides PostgreSQL storage for datasets.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/txn2/source-wizard/pkg/datasets"
)

const defaultListLimit = 1000

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var datasetColumns = []string{"id", "database_id", "catalog", "schema_name", "table_name", "created_by", "created_on"}

// Store implements datasets.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL dataset store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a dataset and returns its id.
func (s *Store) Create(ctx context.Context, ds *datasets.Dataset) (int64, error) {
	query, args, err := psq.Insert("datasets").
		Columns(datasetColumns[1:]...).
		Values(ds.DatabaseID, ds.Catalog, ds.Schema, ds.TableName, ds.CreatedBy, ds.CreatedOn).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building dataset insert: %w", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, datasets.ErrDuplicate
		}
		return 0, fmt.Errorf("inserting dataset: %w", err)
	}
	return id, nil
}

// List returns datasets matching the filter, ordered by table name.
func (s *Store) List(ctx context.Context, f datasets.Filter) ([]datasets.Dataset, error) {
	qb := psq.Select(datasetColumns...).From("datasets").OrderBy("table_name", "id")
	if f.DatabaseID != 0 {
		qb = qb.Where(sq.Eq{"database_id": f.DatabaseID})
	}
	if f.Schema != "" {
		qb = qb.Where(sq.Eq{"schema_name": f.Schema})
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	qb = qb.Limit(uint64(limit))
	if f.Offset > 0 {
		qb = qb.Offset(uint64(f.Offset))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building dataset query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying datasets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []datasets.Dataset{}
	for rows.Next() {
		var d datasets.Dataset
		if err := rows.Scan(&d.ID, &d.DatabaseID, &d.Catalog, &d.Schema, &d.TableName, &d.CreatedBy, &d.CreatedOn); err != nil {
			return nil, fmt.Errorf("scanning dataset row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dataset rows: %w", err)
	}
	return out, nil
}

// Verify interface compliance.
var _ datasets.Store = (*Store)(nil)

package warehouse

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/txn2/source-wizard/pkg/metadata"
)

const tableQuery = `
	SELECT c.oid
	FROM pg_class c
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE n.nspname = $1
		AND c.relname = $2
		AND c.relkind IN ('r', 'v', 'm', 'p', 'f')`

const columnQuery = `
	SELECT
		a.attname,
		pg_catalog.format_type(a.atttypid, a.atttypmod),
		NOT a.attnotnull,
		COALESCE(col_description(a.attrelid, a.attnum), ''),
		a.attnum
	FROM pg_attribute a
	WHERE a.attrelid = $1
		AND a.attnum > 0
		AND NOT a.attisdropped
	ORDER BY a.attnum`

// introspect reads the column list of schema.table from pg_catalog. A table
// without columns yields an empty, non-nil slice.
func introspect(ctx context.Context, q queryer, schema, table string) (*metadata.Table, error) {
	var oid uint32
	if err := q.QueryRow(ctx, tableQuery, schema, table).Scan(&oid); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s.%s", ErrTableNotFound, schema, table)
		}
		return nil, fmt.Errorf("looking up table %s.%s: %w", schema, table, err)
	}

	rows, err := q.Query(ctx, columnQuery, oid)
	if err != nil {
		return nil, fmt.Errorf("querying columns of %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	cols := []metadata.Column{}
	for rows.Next() {
		var c metadata.Column
		var ordinal int16
		if err := rows.Scan(&c.Name, &c.Type, &c.Nullable, &c.Comment, &ordinal); err != nil {
			return nil, fmt.Errorf("scanning column of %s.%s: %w", schema, table, err)
		}
		c.Ordinal = int(ordinal)
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating columns of %s.%s: %w", schema, table, err)
	}

	return &metadata.Table{Name: table, Schema: schema, Columns: cols}, nil
}

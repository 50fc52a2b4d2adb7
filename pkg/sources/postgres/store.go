// Package postgres provides PostgreSQL storage for sources.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/txn2/source-wizard/pkg/source"
	"github.com/txn2/source-wizard/pkg/sources"
)

const uniqueViolation = "23505"

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var sourceColumns = []string{
	"id", "source_name", "source_type", "description", "cache_timeout",
	"extra_json", "settings", "credentials", "is_managed_externally", "external_url",
	"created_by", "changed_by", "created_on", "changed_on",
}

// Store implements sources.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL source store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func applyFilter(qb sq.SelectBuilder, f sources.ListFilter) sq.SelectBuilder {
	if f.Query != "" {
		qb = qb.Where(sq.ILike{"source_name": "%" + f.Query + "%"})
	}
	return qb
}

// List returns a page of sources and the total number of matches.
func (s *Store) List(ctx context.Context, f sources.ListFilter) ([]sources.Source, int, error) {
	countQuery, countArgs, err := applyFilter(psq.Select("COUNT(*)").From("sources"), f).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("building count query: %w", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting sources: %w", err)
	}

	order := f.OrderBy
	if order == "" {
		order = sources.OrderByChangedOn
	}
	if f.OrderDesc {
		order += " DESC"
	}
	qb := applyFilter(psq.Select(sourceColumns...).From("sources"), f).OrderBy(order, "id")
	if f.Limit > 0 {
		qb = qb.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		qb = qb.Offset(uint64(f.Offset))
	}

	list, err := s.query(ctx, qb)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Get returns a source by id.
func (s *Store) Get(ctx context.Context, id int64) (*sources.Source, error) {
	list, err := s.query(ctx, psq.Select(sourceColumns...).From("sources").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, sources.ErrNotFound
	}
	return &list[0], nil
}

// ChangedSince returns sources owned by userID changed at or after since.
func (s *Store) ChangedSince(ctx context.Context, userID string, since time.Time) ([]sources.Source, error) {
	qb := psq.Select(sourceColumns...).From("sources").
		Where(sq.Expr("id IN (SELECT source_id FROM source_owners WHERE user_id = ?)", userID)).
		Where(sq.GtOrEq{"changed_on": since}).
		OrderBy("changed_on DESC")
	return s.query(ctx, qb)
}

// Create inserts a source and its owners.
func (s *Store) Create(ctx context.Context, src *sources.Source) (int64, error) {
	extra, settings, err := encodeJSON(src)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := psq.Insert("sources").
		Columns(sourceColumns[1:]...).
		Values(src.Name, string(src.Type), src.Description, src.CacheTimeout,
			extra, settings, src.Credentials, src.IsManagedExternally, nullString(src.ExternalURL),
			src.CreatedBy, src.ChangedBy, src.CreatedOn, src.ChangedOn).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building source insert: %w", err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, sources.ErrDuplicate
		}
		return 0, fmt.Errorf("inserting source: %w", err)
	}

	if err := insertOwners(ctx, tx, id, src.Owners); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing source: %w", err)
	}
	return id, nil
}

// Update writes every mutable column of src.
func (s *Store) Update(ctx context.Context, src *sources.Source) error {
	extra, settings, err := encodeJSON(src)
	if err != nil {
		return err
	}

	query, args, err := psq.Update("sources").SetMap(map[string]any{
		"source_name":   src.Name,
		"description":   src.Description,
		"cache_timeout": src.CacheTimeout,
		"extra_json":    extra,
		"settings":      settings,
		"credentials":   src.Credentials,
		"changed_by":    src.ChangedBy,
		"changed_on":    src.ChangedOn,
	}).Where(sq.Eq{"id": src.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("building source update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return sources.ErrDuplicate
		}
		return fmt.Errorf("updating source: %w", err)
	}
	return requireRow(res)
}

// Delete removes a source. Owners are removed by cascade.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting source: %w", err)
	}
	return requireRow(res)
}

func (s *Store) query(ctx context.Context, qb sq.SelectBuilder) ([]sources.Source, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building source query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		list []sources.Source
		ids  []int64
	)
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, src)
		ids = append(ids, src.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating source rows: %w", err)
	}
	if len(list) == 0 {
		return list, nil
	}

	owners, err := s.owners(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Owners = owners[list[i].ID]
		if list[i].Owners == nil {
			list[i].Owners = []string{}
		}
	}
	return list, nil
}

func (s *Store) owners(ctx context.Context, ids []int64) (map[int64][]string, error) {
	query, args, err := psq.Select("source_id", "user_id").From("source_owners").
		Where(sq.Eq{"source_id": ids}).OrderBy("source_id", "user_id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building owners query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying source owners: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int64][]string)
	for rows.Next() {
		var (
			id   int64
			user string
		)
		if err := rows.Scan(&id, &user); err != nil {
			return nil, fmt.Errorf("scanning source owner: %w", err)
		}
		out[id] = append(out[id], user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating source owners: %w", err)
	}
	return out, nil
}

func insertOwners(ctx context.Context, tx *sql.Tx, id int64, owners []string) error {
	if len(owners) == 0 {
		return nil
	}
	ib := psq.Insert("source_owners").Columns("source_id", "user_id")
	for _, o := range owners {
		ib = ib.Values(id, o)
	}
	query, args, err := ib.ToSql()
	if err != nil {
		return fmt.Errorf("building owners insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting source owners: %w", err)
	}
	return nil
}

func scanSource(rows *sql.Rows) (sources.Source, error) {
	var (
		src          sources.Source
		typ          string
		cacheTimeout sql.NullInt64
		extra        []byte
		settings     []byte
		externalURL  sql.NullString
	)
	err := rows.Scan(
		&src.ID, &src.Name, &typ, &src.Description, &cacheTimeout,
		&extra, &settings, &src.Credentials, &src.IsManagedExternally, &externalURL,
		&src.CreatedBy, &src.ChangedBy, &src.CreatedOn, &src.ChangedOn,
	)
	if err != nil {
		return src, fmt.Errorf("scanning source row: %w", err)
	}

	src.Type = source.Type(typ)
	if cacheTimeout.Valid {
		v := int(cacheTimeout.Int64)
		src.CacheTimeout = &v
	}
	src.ExternalURL = externalURL.String
	if len(extra) > 0 {
		_ = json.Unmarshal(extra, &src.Extra)
	}
	if len(settings) > 0 {
		_ = json.Unmarshal(settings, &src.Settings)
	}
	return src, nil
}

func encodeJSON(src *sources.Source) (extra, settings []byte, err error) {
	extraMap := src.Extra
	if extraMap == nil {
		extraMap = map[string]any{}
	}
	extra, err = json.Marshal(extraMap)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding extra json: %w", err)
	}
	settingsMap := src.Settings
	if settingsMap == nil {
		settingsMap = map[string]string{}
	}
	settings, err = json.Marshal(settingsMap)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding settings: %w", err)
	}
	return extra, settings, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return sources.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// Verify interface compliance.
var _ sources.Store = (*Store)(nil)

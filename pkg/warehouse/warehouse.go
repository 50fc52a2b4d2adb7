// Package warehouse introspects the PostgreSQL databases that datasets are
// built from.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/txn2/source-wizard/pkg/metadata"
)

// Sentinel errors.
var (
	ErrUnknownDatabase = errors.New("unknown database")
	ErrTableNotFound   = errors.New("table not found")
)

const (
	defaultSchema   = "public"
	applicationName = "source-wizard"
)

// Database is one configured warehouse.
type Database struct {
	ID            int64         `yaml:"id" json:"id"`
	Name          string        `yaml:"name" json:"database_name"`
	DSN           string        `yaml:"dsn" json:"-"`
	DefaultSchema string        `yaml:"default_schema" json:"default_schema,omitempty"`
	MaxConns      int32         `yaml:"max_conns" json:"-"`
	MaxIdleTime   time.Duration `yaml:"max_idle_time" json:"-"`
}

// queryer is the subset of *pgxpool.Pool used for introspection.
type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Manager holds one lazily created pool per configured database.
type Manager struct {
	dbs map[int64]Database

	mu    sync.Mutex
	pools map[int64]queryer

	connect    func(ctx context.Context, db Database) (queryer, error)
	introspect func(ctx context.Context, q queryer, schema, table string) (*metadata.Table, error)
}

// NewManager creates a manager for dbs. Pools are opened on first use.
func NewManager(dbs []Database) (*Manager, error) {
	m := &Manager{
		dbs:        make(map[int64]Database, len(dbs)),
		pools:      make(map[int64]queryer),
		connect:    connect,
		introspect: introspect,
	}
	for _, db := range dbs {
		if db.ID <= 0 {
			return nil, fmt.Errorf("warehouse %q: id must be positive", db.Name)
		}
		if db.DSN == "" {
			return nil, fmt.Errorf("warehouse %d: dsn is required", db.ID)
		}
		if _, dup := m.dbs[db.ID]; dup {
			return nil, fmt.Errorf("warehouse %d: duplicate id", db.ID)
		}
		m.dbs[db.ID] = db
	}
	return m, nil
}

// Databases returns the configured databases ordered by id.
func (m *Manager) Databases() []Database {
	out := make([]Database, 0, len(m.dbs))
	for _, db := range m.dbs {
		out = append(out, db)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TableMetadata returns the columns of schema.table in database id. An empty
// schema uses the database default.
func (m *Manager) TableMetadata(ctx context.Context, id int64, schema, table string) (*metadata.Table, error) {
	db, ok := m.dbs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDatabase, id)
	}
	if schema == "" {
		schema = db.DefaultSchema
	}
	if schema == "" {
		schema = defaultSchema
	}

	q, err := m.pool(ctx, db)
	if err != nil {
		return nil, err
	}
	return m.introspect(ctx, q, schema, table)
}

// Close closes every open pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, q := range m.pools {
		q.Close()
		delete(m.pools, id)
	}
	return nil
}

func (m *Manager) pool(ctx context.Context, db Database) (queryer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if q, ok := m.pools[db.ID]; ok {
		return q, nil
	}
	start := time.Now()
	q, err := m.connect(ctx, db)
	if err != nil {
		slog.Warn("warehouse connection failed", "database", db.Name, "id", db.ID, "error", err)
		return nil, err
	}
	slog.Info("warehouse connected", "database", db.Name, "id", db.ID, "duration", time.Since(start))
	m.pools[db.ID] = q
	return q, nil
}

func connect(ctx context.Context, db Database) (queryer, error) {
	cfg, err := pgxpool.ParseConfig(db.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing dsn for warehouse %d: %w", db.ID, err)
	}
	if db.MaxConns > 0 {
		cfg.MaxConns = db.MaxConns
	}
	if db.MaxIdleTime > 0 {
		cfg.MaxConnIdleTime = db.MaxIdleTime
	}
	if cfg.ConnConfig.RuntimeParams == nil {
		cfg.ConnConfig.RuntimeParams = make(map[string]string)
	}
	// Introspection never writes.
	cfg.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool for warehouse %d: %w", db.ID, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging warehouse %d: %w", db.ID, err)
	}
	return pool, nil
}

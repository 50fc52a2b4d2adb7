package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/txn2/source-wizard/pkg/auth"
	"github.com/txn2/source-wizard/pkg/datasets"
	"github.com/txn2/source-wizard/pkg/health"
	"github.com/txn2/source-wizard/pkg/metadata"
	"github.com/txn2/source-wizard/pkg/secrets"
	"github.com/txn2/source-wizard/pkg/sources"
	"github.com/txn2/source-wizard/pkg/telemetry"
	"github.com/txn2/source-wizard/pkg/warehouse"
)

const (
	aliceKey = "alice-key"
	bobKey   = "bob-key"
	rootKey  = "root-key"
)

// --- sources store ---

type memSources struct {
	mu   sync.Mutex
	next int64
	data map[int64]sources.Source
}

func (m *memSources) List(_ context.Context, f sources.ListFilter) ([]sources.Source, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sources.Source
	for id := int64(1); id <= m.next; id++ {
		s, ok := m.data[id]
		if ok && (f.Query == "" || strings.Contains(strings.ToLower(s.Name), strings.ToLower(f.Query))) {
			out = append(out, s)
		}
	}
	return out, len(out), nil
}

func (m *memSources) Get(_ context.Context, id int64) (*sources.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[id]
	if !ok {
		return nil, sources.ErrNotFound
	}
	return &s, nil
}

func (m *memSources) Create(_ context.Context, src *sources.Source) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.data {
		if s.Name == src.Name {
			return 0, sources.ErrDuplicate
		}
	}
	m.next++
	c := *src
	c.ID = m.next
	m.data[c.ID] = c
	return c.ID, nil
}

func (m *memSources) Update(_ context.Context, src *sources.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[src.ID] = *src
	return nil
}

func (m *memSources) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

func (m *memSources) ChangedSince(_ context.Context, userID string, since time.Time) ([]sources.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sources.Source
	for _, s := range m.data {
		if len(s.Owners) > 0 && s.Owners[0] == userID && !s.ChangedOn.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

// --- datasets store ---

type memDatasets struct {
	mu    sync.Mutex
	items []datasets.Dataset
}

func (m *memDatasets) Create(_ context.Context, ds *datasets.Dataset) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.items {
		if d.TableName == ds.TableName && d.DatabaseID == ds.DatabaseID {
			return 0, datasets.ErrDuplicate
		}
	}
	c := *ds
	c.ID = int64(len(m.items) + 1)
	m.items = append(m.items, c)
	return c.ID, nil
}

func (m *memDatasets) List(_ context.Context, f datasets.Filter) ([]datasets.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []datasets.Dataset{}
	for _, d := range m.items {
		if f.DatabaseID == 0 || d.DatabaseID == f.DatabaseID {
			out = append(out, d)
		}
	}
	return out, nil
}

// --- warehouse ---

type fakeWarehouses map[string]*metadata.Table

func (fakeWarehouses) Databases() []warehouse.Database {
	return []warehouse.Database{{ID: 1, Name: "examples"}}
}

func (f fakeWarehouses) TableMetadata(_ context.Context, id int64, schema, table string) (*metadata.Table, error) {
	if id != 1 {
		return nil, warehouse.ErrUnknownDatabase
	}
	t, ok := f[table]
	if !ok {
		return nil, warehouse.ErrTableNotFound
	}
	c := *t
	c.Schema = schema
	return &c, nil
}

// --- telemetry ---

type recordingLogger struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (r *recordingLogger) Log(_ context.Context, e telemetry.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingLogger) Query(_ context.Context, f telemetry.QueryFilter) ([]telemetry.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []telemetry.Event{}
	for _, e := range r.events {
		if f.Name == "" || e.Name == f.Name {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *recordingLogger) CountByName(_ context.Context, _ telemetry.QueryFilter) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]int{}
	for _, e := range r.events {
		out[e.Name]++
	}
	return out, nil
}

// --- features ---

type flags struct{ sources atomic.Bool }

func (f *flags) SourcesEnabled() bool { return f.sources.Load() }

// --- harness ---

type testServer struct {
	srv     *httptest.Server
	sources *memSources
	events  *recordingLogger
	flags   *flags
	health  *health.Checker
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	box, err := secrets.NewBox("test-passphrase")
	require.NoError(t, err)

	ts := &testServer{
		sources: &memSources{data: make(map[int64]sources.Source)},
		events:  &recordingLogger{},
		flags:   &flags{},
		health:  health.NewChecker(),
	}
	ts.flags.sources.Store(true)

	wh := fakeWarehouses{
		"orders":      {Name: "orders", Columns: []metadata.Column{{Name: "id", Type: "bigint"}}},
		"empty_table": {Name: "empty_table", Columns: []metadata.Column{}},
	}
	h := NewHandler(Config{
		Sources:    sources.NewService(ts.sources, box, nil),
		Datasets:   datasets.NewService(&memDatasets{}, wh),
		Warehouses: wh,
		Telemetry:  ts.events,
		Events:     ts.events,
		Features:   ts.flags,
		Auth: auth.NewChainedAuthenticator(false, auth.NewAPIKeyAuthenticator([]auth.APIKey{
			{Name: "alice", Key: aliceKey},
			{Name: "bob", Key: bobKey},
			{Name: "root", Key: rootKey, Roles: []string{auth.RoleAdmin}},
		})),
		Health: ts.health,
	})
	ts.srv = httptest.NewServer(h)
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, key string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, ts.srv.URL+path, reader)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

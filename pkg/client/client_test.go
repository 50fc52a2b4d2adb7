package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/source-wizard/pkg/footer"
	"github.com/txn2/source-wizard/pkg/metadata"
	"github.com/txn2/source-wizard/pkg/sources"
	"github.com/txn2/source-wizard/pkg/telemetry"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/", opts...)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.Error(t, err)
	_, err = New("://")
	assert.Error(t, err)
}

func TestTableMetadata(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/database/7/table_metadata/", r.URL.Path)
		assert.Equal(t, "orders", r.URL.Query().Get("name"))
		assert.Equal(t, "public", r.URL.Query().Get("schema"))
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		writeJSON(w, http.StatusOK, map[string]any{
			"name":    "orders",
			"schema":  "public",
			"columns": []map[string]any{{"name": "id", "type": "bigint"}},
		})
	}, WithAPIKey("secret"))

	tbl, err := c.TableMetadata(context.Background(), 7, "public", "orders")
	require.NoError(t, err)
	assert.Equal(t, "orders", tbl.Name)
	assert.Equal(t, "public", tbl.Schema)
	assert.Equal(t, []metadata.Column{{Name: "id", Type: "bigint"}}, tbl.Columns)
}

func TestTableMetadata_EmptyColumns(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"name": "orders", "columns": []any{}})
	})
	tbl, err := c.TableMetadata(context.Background(), 1, "", "orders")
	require.NoError(t, err)
	assert.NotNil(t, tbl.Columns)
	assert.Empty(t, tbl.Columns)
}

func TestTableMetadata_ShapeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"array", `[]`},
		{"null", `null`},
		{"missing name", `{"columns": []}`},
		{"empty name", `{"name": "", "columns": []}`},
		{"numeric name", `{"name": 3, "columns": []}`},
		{"missing columns", `{"name": "orders"}`},
		{"null columns", `{"name": "orders", "columns": null}`},
		{"object columns", `{"name": "orders", "columns": {}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.TableMetadata(context.Background(), 3, "", "orders")
			require.Error(t, err)
			assert.True(t, metadata.IsShapeError(err), err)
			assert.Contains(t, err.Error(), "/api/v1/database/3/table_metadata/")
		})
	}
}

func TestTableMetadata_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
	})
	_, err := c.TableMetadata(context.Background(), 1, "", "orders")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, metadata.IsShapeError(err))
	assert.Contains(t, err.Error(), "table not found")
}

func TestCreateDataset(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/dataset/", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "orders", body["table_name"])
		assert.Equal(t, float64(1), body["database"])
		writeJSON(w, http.StatusCreated, map[string]any{"id": 42})
	}, WithToken("tok"))

	id, err := c.CreateDataset(context.Background(), footer.CreateDatasetRequest{Database: 1, TableName: "orders"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestCreateDataset_MissingID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{})
	})
	id, err := c.CreateDataset(context.Background(), footer.CreateDatasetRequest{TableName: "orders"})
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestCreateDataset_Error(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "dataset already exists"})
	})
	_, err := c.CreateDataset(context.Background(), footer.CreateDatasetRequest{TableName: "orders"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "dataset already exists", apiErr.Message)
}

func TestDatasetNames(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("database"))
		writeJSON(w, http.StatusOK, map[string]any{"result": []map[string]any{
			{"id": 1, "database": 2, "table_name": "orders"},
			{"id": 2, "database": 2, "table_name": "customers"},
		}})
	})
	names, err := c.DatasetNames(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "customers"}, names)
}

func TestDatabases(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"result": []map[string]any{{"id": 1, "database_name": "examples"}}})
	})
	dbs, err := c.Databases(context.Background())
	require.NoError(t, err)
	require.Len(t, dbs, 1)
	assert.Equal(t, "examples (1)", dbs[0].String())
}

func TestListSources(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "shop", q.Get("q"))
		assert.Equal(t, "source_name", q.Get("order_column"))
		assert.Equal(t, "asc", q.Get("order_direction"))
		assert.Equal(t, "10", q.Get("limit"))
		writeJSON(w, http.StatusOK, map[string]any{
			"result": []map[string]any{{"id": 3, "source_name": "Shopify", "source_type": "shopify"}},
			"count":  1,
		})
	})
	list, err := c.ListSources(context.Background(), sources.ListFilter{Query: "shop", OrderBy: sources.OrderByName, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "Shopify", list.Result[0].Name)
}

func TestSourceCRUD(t *testing.T) {
	var methods []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodPost:
			var req sources.CreateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "acme", req.Values["shopify_store"])
			writeJSON(w, http.StatusCreated, map[string]any{"id": 5, "result": map[string]any{"source_name": req.Name}})
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"id": 5, "result": map[string]any{"id": 5, "source_name": "Shopify"}})
		case http.MethodPut:
			writeJSON(w, http.StatusOK, map[string]any{"id": 5, "result": map[string]any{"id": 5, "source_name": "Renamed"}})
		case http.MethodDelete:
			writeJSON(w, http.StatusOK, map[string]string{"message": "OK"})
		}
	})
	ctx := context.Background()

	src, err := c.CreateSource(ctx, sources.CreateRequest{Name: "Shopify", Type: "shopify", Values: map[string]string{"shopify_store": "acme"}})
	require.NoError(t, err)
	assert.Equal(t, int64(5), src.ID)

	src, err = c.GetSource(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "Shopify", src.Name)

	name := "Renamed"
	src, err = c.UpdateSource(ctx, 5, sources.UpdateRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", src.Name)

	require.NoError(t, c.DeleteSource(ctx, 5))

	assert.Equal(t, []string{
		"POST /api/v1/sources/",
		"GET /api/v1/sources/5/",
		"PUT /api/v1/sources/5/",
		"DELETE /api/v1/sources/5/",
	}, methods)
}

func TestSourcesChangedSinceAndExplore(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/sources/changed_since/":
			assert.Equal(t, "1700000000000", r.URL.Query().Get("last_updated_ms"))
			writeJSON(w, http.StatusOK, map[string]any{"result": []map[string]any{{"id": 1}}})
		case "/api/v1/sources/1/explore_url/":
			writeJSON(w, http.StatusOK, map[string]string{"url": "/explore/?source_id=1"})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	list, err := c.SourcesChangedSince(ctx, 1700000000000)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	u, err := c.ExploreURL(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "/explore/?source_id=1", u)
}

func TestLog(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/log/", r.URL.Path)
		var body struct {
			Events []map[string]any `json:"events"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Events, 1)
		assert.Equal(t, telemetry.ActionDatasetCreationSuccess, body.Events[0]["event_name"])
		assert.Equal(t, float64(1767225600000), body.Events[0]["ts"])
		w.WriteHeader(http.StatusNoContent)
	})

	ev := telemetry.NewEvent(telemetry.ActionDatasetCreationSuccess, map[string]any{"table_name": "orders"})
	ev.Timestamp = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, c.Log(context.Background(), ev))
}

func TestAPIError_PlainBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	err := c.DeleteSource(context.Background(), 1)
	assert.EqualError(t, err, "request failed (500): boom")
}

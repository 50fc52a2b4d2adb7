package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/source-wizard/pkg/source"
)

type fakeServer struct {
	*httptest.Server
	created map[string]any
	deleted string
	apiKey  string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/sources/{$}", func(w http.ResponseWriter, r *http.Request) {
		fs.apiKey = r.Header.Get("X-API-Key")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{{"id": 7, "source_name": "Shopify", "source_type": "shopify", "changed_on": "2026-01-02T03:04:05Z"}},
			"count":  1,
		})
	})
	mux.HandleFunc("POST /api/v1/sources/{$}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&fs.created)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 9, "result": map[string]any{"id": 9, "source_name": "My Shop", "source_type": "shopify"}})
	})
	mux.HandleFunc("DELETE /api/v1/sources/{id}/{$}", func(w http.ResponseWriter, r *http.Request) {
		fs.deleted = r.PathValue("id")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /api/v1/database/{id}/table_metadata/{$}", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") != "orders" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "table not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":    "orders",
			"columns": []map[string]any{{"name": "id", "type": "bigint"}, {"name": "total", "type": "numeric"}},
		})
	})
	mux.HandleFunc("GET /api/v1/dataset/{$}", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{{"id": 3, "database": 1, "schema": "public", "table_name": "orders", "created_by": "apikey:ops"}},
			"count":  1,
		})
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func execute(t *testing.T, srv *fakeServer, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out)
	cmd.SetErr(&out)
	base := []string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "--server", srv.URL, "--api-key", "ops-key"}
	cmd.SetArgs(append(base, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSourcesList(t *testing.T) {
	srv := newFakeServer(t)
	out, err := execute(t, srv, "", "sources", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Shopify")
	assert.Contains(t, out, "2026-01-02T03:04:05Z")
	assert.Equal(t, "ops-key", srv.apiKey)
}

func TestSourcesTypes(t *testing.T) {
	srv := newFakeServer(t)
	out, err := execute(t, srv, "", "sources", "types")
	require.NoError(t, err)
	assert.Contains(t, out, "shopify_store")
	assert.Contains(t, out, "not configurable yet")
}

func TestSourcesCreate_PromptsForSecrets(t *testing.T) {
	srv := newFakeServer(t)
	out, err := execute(t, srv, "hunter2\n",
		"sources", "create", "--type", "shopify", "--name", "My Shop", "--set", "shopify_store=acme")
	require.NoError(t, err)
	assert.Contains(t, out, "API Password: ")
	assert.Contains(t, out, "Created source 9 (My Shop)")

	values, ok := srv.created["values"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "acme", values["shopify_store"])
	assert.Equal(t, "hunter2", values["api_password"])
	assert.Equal(t, "shopify", srv.created["source_type"])
}

func TestSourcesCreate_BadSet(t *testing.T) {
	srv := newFakeServer(t)
	_, err := execute(t, srv, "", "sources", "create", "--type", "shopify", "--set", "novalue")
	assert.ErrorContains(t, err, "want key=value")
}

func TestSourcesDelete(t *testing.T) {
	srv := newFakeServer(t)
	out, err := execute(t, srv, "", "sources", "delete", "12")
	require.NoError(t, err)
	assert.Equal(t, "12", srv.deleted)
	assert.Contains(t, out, "Deleted source 12")

	_, err = execute(t, srv, "", "sources", "delete", "abc")
	assert.ErrorContains(t, err, "invalid source id")
}

func TestPreview(t *testing.T) {
	srv := newFakeServer(t)
	out, err := execute(t, srv, "", "preview", "--database", "1", "orders")
	require.NoError(t, err)
	assert.Contains(t, out, "total")
	assert.Contains(t, out, "numeric")

	_, err = execute(t, srv, "", "preview", "--database", "1", "missing")
	assert.ErrorContains(t, err, "There was an error loading metadata for table missing")
}

func TestDatasetsList(t *testing.T) {
	srv := newFakeServer(t)
	out, err := execute(t, srv, "", "datasets", "list", "-d", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "orders")
	assert.Contains(t, out, "apikey:ops")
}

func TestParseValues(t *testing.T) {
	v, err := parseValues([]string{"a=1", "b=x=y"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "x=y"}, v)

	_, err = parseValues([]string{"=1"})
	assert.Error(t, err)
}

func TestPromptSecrets_SkipsProvided(t *testing.T) {
	var out bytes.Buffer
	values := map[string]string{"api_password": "given"}
	require.NoError(t, promptSecrets(strings.NewReader(""), &out, source.ShopifyPanel(), values))
	assert.Empty(t, out.String())
	assert.Equal(t, "given", values["api_password"])
}

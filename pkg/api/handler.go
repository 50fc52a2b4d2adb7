// Package api provides the REST endpoints the source wizard talks to.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/txn2/source-wizard/pkg/auth"
	"github.com/txn2/source-wizard/pkg/datasets"
	"github.com/txn2/source-wizard/pkg/health"
	"github.com/txn2/source-wizard/pkg/metadata"
	"github.com/txn2/source-wizard/pkg/sources"
	"github.com/txn2/source-wizard/pkg/telemetry"
	"github.com/txn2/source-wizard/pkg/warehouse"
)

const pathParamID = "id"

// Warehouses lists and introspects the configured databases.
type Warehouses interface {
	Databases() []warehouse.Database
	TableMetadata(ctx context.Context, databaseID int64, schema, table string) (*metadata.Table, error)
}

// EventReader reads stored telemetry events.
type EventReader interface {
	Query(ctx context.Context, f telemetry.QueryFilter) ([]telemetry.Event, error)
	CountByName(ctx context.Context, f telemetry.QueryFilter) (map[string]int, error)
}

// Features reports runtime feature flags.
type Features interface {
	SourcesEnabled() bool
}

// Config holds the handler's dependencies. Nil services leave their routes
// unregistered.
type Config struct {
	Sources    *sources.Service
	Datasets   *datasets.Service
	Warehouses Warehouses
	Telemetry  telemetry.Logger
	Events     EventReader
	Features   Features
	Auth       auth.Authenticator
	Health     *health.Checker
}

// Handler serves the REST API.
type Handler struct {
	mux *http.ServeMux
	cfg Config
}

// NewHandler creates a new API handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Telemetry == nil {
		cfg.Telemetry = telemetry.NoopLogger{}
	}
	h := &Handler{mux: http.NewServeMux(), cfg: cfg}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all API routes.
func (h *Handler) registerRoutes() {
	if h.cfg.Health != nil {
		h.mux.HandleFunc("GET /healthz", h.cfg.Health.LivenessHandler())
		h.mux.HandleFunc("GET /readyz", h.cfg.Health.ReadinessHandler())
	}

	// API docs come from the swag registration in internal/apidocs.
	h.mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	authed := func(pattern string, fn http.HandlerFunc) {
		h.mux.Handle(pattern, RequireAuth(h.cfg.Auth)(fn))
	}

	if h.cfg.Warehouses != nil {
		authed("GET /api/v1/database/{$}", h.listDatabases)
		authed("GET /api/v1/database/{id}/table_metadata/{$}", h.tableMetadata)
	}
	if h.cfg.Datasets != nil {
		authed("GET /api/v1/dataset/{$}", h.listDatasets)
		authed("POST /api/v1/dataset/{$}", h.createDataset)
	}
	authed("POST /api/v1/log/{$}", h.logEvents)
	if h.cfg.Events != nil {
		authed("GET /api/v1/log/{$}", requireAdmin(h.queryEvents))
		authed("GET /api/v1/log/stats/{$}", requireAdmin(h.eventStats))
	}

	if h.cfg.Sources != nil {
		gated := func(pattern string, fn http.HandlerFunc) {
			authed(pattern, RequireFeature(h.cfg.Features)(fn).ServeHTTP)
		}
		gated("GET /api/v1/sources/{$}", h.listSources)
		gated("POST /api/v1/sources/{$}", h.createSource)
		gated("GET /api/v1/sources/changed_since/{$}", h.sourcesChangedSince)
		gated("GET /api/v1/sources/{id}/{$}", h.getSource)
		gated("PUT /api/v1/sources/{id}/{$}", h.updateSource)
		gated("DELETE /api/v1/sources/{id}/{$}", h.deleteSource)
		gated("POST /api/v1/sources/{id}/metadata/{$}", h.saveSourceMetadata)
		gated("GET /api/v1/sources/{id}/explore_url/{$}", h.exploreURL)
	}
}

// statusResponse is returned by endpoints with no other payload.
type statusResponse struct {
	Status string `json:"status"`
}

// itemResponse wraps one created or fetched object.
type itemResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

// listResponse wraps a list of objects.
type listResponse struct {
	Result any `json:"result"`
	Count  int `json:"count"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

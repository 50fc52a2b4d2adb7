package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/txn2/source-wizard/pkg/warehouse"
)

// listDatabases handles GET /api/v1/database/.
//
// @Summary      List databases
// @Description  Returns the warehouse databases datasets can be created from.
// @Tags         Databases
// @Produce      json
// @Success      200  {object}  listResponse
// @Failure      401  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /database/ [get]
func (h *Handler) listDatabases(w http.ResponseWriter, _ *http.Request) {
	dbs := h.cfg.Warehouses.Databases()
	writeJSON(w, http.StatusOK, listResponse{Result: dbs, Count: len(dbs)})
}

// tableMetadata handles GET /api/v1/database/{id}/table_metadata/.
//
// @Summary      Get table metadata
// @Description  Returns the columns of one table in a warehouse database.
// @Tags         Databases
// @Produce      json
// @Param        id      path   integer  true   "Database ID"
// @Param        name    query  string   true   "Table name"
// @Param        schema  query  string   false  "Schema, defaults to the database default"
// @Success      200  {object}  metadata.Table
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /database/{id}/table_metadata/ [get]
func (h *Handler) tableMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	tbl, err := h.cfg.Warehouses.TableMetadata(r.Context(), id, r.URL.Query().Get("schema"), name)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, tbl)
	case errors.Is(err, warehouse.ErrUnknownDatabase), errors.Is(err, warehouse.ErrTableNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		slog.Error("table metadata lookup failed", "database", id, "table", name, "error", err)
		writeError(w, http.StatusInternalServerError, "table metadata lookup failed")
	}
}

// pathID parses the {id} path value, writing a 400 when it is not a
// positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(pathParamID), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/txn2/source-wizard/pkg/auth"
	"github.com/txn2/source-wizard/pkg/datasets"
	"github.com/txn2/source-wizard/pkg/footer"
	"github.com/txn2/source-wizard/pkg/warehouse"
)

// createDatasetRequest is the body of POST /api/v1/dataset/.
type createDatasetRequest struct {
	Database  int64  `json:"database"`
	Catalog   string `json:"catalog"`
	Schema    string `json:"schema"`
	TableName string `json:"table_name"`
}

// createDataset handles POST /api/v1/dataset/.
//
// @Summary      Create dataset
// @Description  Registers a warehouse table as a dataset. A table already registered under the same database, catalog and schema is rejected.
// @Tags         Datasets
// @Accept       json
// @Produce      json
// @Param        body  body  createDatasetRequest  true  "Table to register"
// @Success      201  {object}  itemResponse
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /dataset/ [post]
func (h *Handler) createDataset(w http.ResponseWriter, r *http.Request) {
	var req createDatasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ds, err := h.cfg.Datasets.Create(r.Context(), auth.GetUserContext(r.Context()), footer.CreateDatasetRequest{
		Database:  req.Database,
		Catalog:   req.Catalog,
		Schema:    req.Schema,
		TableName: req.TableName,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, itemResponse{ID: ds.ID, Result: ds})
	case errors.Is(err, datasets.ErrDuplicate):
		writeError(w, http.StatusUnprocessableEntity, "Dataset "+req.TableName+" already exists")
	case errors.Is(err, datasets.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, warehouse.ErrUnknownDatabase), errors.Is(err, warehouse.ErrTableNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		slog.Error("dataset creation failed", "table", req.TableName, "error", err)
		writeError(w, http.StatusInternalServerError, "dataset creation failed")
	}
}

// listDatasets handles GET /api/v1/dataset/.
//
// @Summary      List datasets
// @Tags         Datasets
// @Produce      json
// @Param        database  query  integer  false  "Filter by database ID"
// @Param        schema    query  string   false  "Filter by schema"
// @Param        limit     query  integer  false  "Maximum results"
// @Param        offset    query  integer  false  "Results to skip"
// @Success      200  {object}  listResponse
// @Failure      400  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /dataset/ [get]
func (h *Handler) listDatasets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := datasets.Filter{Schema: q.Get("schema")}
	if v := q.Get("database"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid database")
			return
		}
		filter.DatabaseID = id
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	list, err := h.cfg.Datasets.List(r.Context(), filter)
	if err != nil {
		slog.Error("listing datasets failed", "error", err)
		writeError(w, http.StatusInternalServerError, "listing datasets failed")
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Result: list, Count: len(list)})
}

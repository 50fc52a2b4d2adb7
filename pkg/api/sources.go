package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/txn2/source-wizard/pkg/auth"
	"github.com/txn2/source-wizard/pkg/sources"
)

// listSources handles GET /api/v1/sources/.
//
// @Summary      List sources
// @Description  Returns configured sources. Requires the sources feature flag.
// @Tags         Sources
// @Produce      json
// @Param        q                query  string   false  "Case-insensitive name match"
// @Param        order_column     query  string   false  "Sort column"
// @Param        order_direction  query  string   false  "asc or desc"
// @Param        limit            query  integer  false  "Maximum results"
// @Param        offset           query  integer  false  "Results to skip"
// @Success      200  {object}  listResponse
// @Failure      404  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /sources/ [get]
func (h *Handler) listSources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := sources.ListFilter{
		Query:     q.Get("q"),
		OrderBy:   q.Get("order_column"),
		OrderDesc: q.Get("order_direction") == "desc",
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	list, total, err := h.cfg.Sources.List(r.Context(), filter)
	if err != nil {
		writeSourceError(w, err)
		return
	}
	if list == nil {
		list = []sources.Source{}
	}
	writeJSON(w, http.StatusOK, listResponse{Result: list, Count: total})
}

// getSource handles GET /api/v1/sources/{id}/.
//
// @Summary      Get source
// @Tags         Sources
// @Produce      json
// @Param        id  path  integer  true  "Source ID"
// @Success      200  {object}  itemResponse
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /sources/{id}/ [get]
func (h *Handler) getSource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	src, err := h.cfg.Sources.Get(r.Context(), id)
	if err != nil {
		writeSourceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{ID: src.ID, Result: src})
}

// createSource handles POST /api/v1/sources/.
//
// @Summary      Create source
// @Description  Creates a source. Secret connection fields are encrypted at rest.
// @Tags         Sources
// @Accept       json
// @Produce      json
// @Param        body  body  sources.CreateRequest  true  "Source definition"
// @Success      201  {object}  itemResponse
// @Failure      400  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /sources/ [post]
func (h *Handler) createSource(w http.ResponseWriter, r *http.Request) {
	var req sources.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	src, err := h.cfg.Sources.Create(r.Context(), auth.GetUserContext(r.Context()), req)
	if err != nil {
		writeSourceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, itemResponse{ID: src.ID, Result: src})
}

// updateSource handles PUT /api/v1/sources/{id}/.
//
// @Summary      Update source
// @Tags         Sources
// @Accept       json
// @Produce      json
// @Param        id    path  integer                true  "Source ID"
// @Param        body  body  sources.UpdateRequest  true  "Fields to change"
// @Success      200  {object}  itemResponse
// @Failure      400  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /sources/{id}/ [put]
func (h *Handler) updateSource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req sources.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	src, err := h.cfg.Sources.Update(r.Context(), auth.GetUserContext(r.Context()), id, req)
	if err != nil {
		writeSourceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{ID: src.ID, Result: src})
}

// deleteSource handles DELETE /api/v1/sources/{id}/.
//
// @Summary      Delete source
// @Tags         Sources
// @Produce      json
// @Param        id  path  integer  true  "Source ID"
// @Success      200  {object}  statusResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /sources/{id}/ [delete]
func (h *Handler) deleteSource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.cfg.Sources.Delete(r.Context(), auth.GetUserContext(r.Context()), id); err != nil {
		writeSourceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// saveSourceMetadata handles POST /api/v1/sources/{id}/metadata/.
//
// @Summary      Save source metadata
// @Description  Replaces the free-form metadata stored with a source.
// @Tags         Sources
// @Accept       json
// @Produce      json
// @Param        id    path  integer  true  "Source ID"
// @Param        body  body  object   true  "Metadata document"
// @Success      200  {object}  itemResponse
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /sources/{id}/metadata/ [post]
func (h *Handler) saveSourceMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	src, err := h.cfg.Sources.SaveMetadata(r.Context(), auth.GetUserContext(r.Context()), id, payload)
	if err != nil {
		writeSourceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{ID: src.ID, Result: src})
}

// sourcesChangedSince handles GET /api/v1/sources/changed_since/.
//
// @Summary      List changed sources
// @Description  Returns the caller's sources changed after the given time.
// @Tags         Sources
// @Produce      json
// @Param        last_updated_ms  query  integer  true  "Epoch milliseconds"
// @Success      200  {object}  listResponse
// @Failure      400  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /sources/changed_since/ [get]
func (h *Handler) sourcesChangedSince(w http.ResponseWriter, r *http.Request) {
	ms, err := strconv.ParseInt(r.URL.Query().Get("last_updated_ms"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "last_updated_ms must be an integer")
		return
	}
	list, err := h.cfg.Sources.ChangedSince(r.Context(), auth.UserID(r.Context()), ms)
	if err != nil {
		writeSourceError(w, err)
		return
	}
	if list == nil {
		list = []sources.Source{}
	}
	writeJSON(w, http.StatusOK, listResponse{Result: list, Count: len(list)})
}

// exploreURL handles GET /api/v1/sources/{id}/explore_url/.
//
// @Summary      Get explore URL
// @Tags         Sources
// @Produce      json
// @Param        id  path  integer  true  "Source ID"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /sources/{id}/explore_url/ [get]
func (h *Handler) exploreURL(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := h.cfg.Sources.Get(r.Context(), id); err != nil {
		writeSourceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": sources.ExploreURL(id, nil)})
}

func writeSourceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sources.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, sources.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, sources.ErrDuplicate):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case sources.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("source request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/txn2/source-wizard/pkg/auth"
	"github.com/txn2/source-wizard/pkg/telemetry"
)

const (
	defaultEventSource = "wizard"
	maxEventsPerBatch  = 100
)

// logRequest is the body of POST /api/v1/log/.
type logRequest struct {
	Events []struct {
		Name    string         `json:"event_name"`
		Payload map[string]any `json:"payload"`
		Source  string         `json:"source"`
		TS      int64          `json:"ts"`
	} `json:"events"`
}

// logEvents handles POST /api/v1/log/.
//
// @Summary      Log events
// @Description  Stores a batch of up to 100 telemetry events for the caller.
// @Tags         Telemetry
// @Accept       json
// @Produce      json
// @Param        body  body  logRequest  true  "Events"
// @Success      200  {object}  statusResponse
// @Failure      400  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /log/ [post]
func (h *Handler) logEvents(w http.ResponseWriter, r *http.Request) {
	var req logRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Events) > maxEventsPerBatch {
		writeError(w, http.StatusBadRequest, "too many events")
		return
	}
	for _, e := range req.Events {
		if e.Name == "" {
			writeError(w, http.StatusBadRequest, "event_name is required")
			return
		}
	}

	userID := auth.UserID(r.Context())
	for _, e := range req.Events {
		src := e.Source
		if src == "" {
			src = defaultEventSource
		}
		ev := telemetry.NewEvent(e.Name, e.Payload).WithUser(userID).WithSource(src)
		if e.TS > 0 {
			ev.Timestamp = time.UnixMilli(e.TS).UTC()
		}
		if err := h.cfg.Telemetry.Log(r.Context(), ev); err != nil {
			slog.Error("storing telemetry event failed", "event", e.Name, "error", err)
			writeError(w, http.StatusInternalServerError, "storing events failed")
			return
		}
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// eventFilter parses name, user_id, start_ms, end_ms, limit and offset.
func eventFilter(r *http.Request) (telemetry.QueryFilter, error) {
	q := r.URL.Query()
	f := telemetry.QueryFilter{Name: q.Get("name"), UserID: q.Get("user_id")}

	ints := map[string]*int{"limit": &f.Limit, "offset": &f.Offset}
	for key, dst := range ints {
		if v := q.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return f, errInvalidParam(key)
			}
			*dst = n
		}
	}
	times := map[string]**time.Time{"start_ms": &f.StartTime, "end_ms": &f.EndTime}
	for key, dst := range times {
		if v := q.Get(key); v != "" {
			ms, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return f, errInvalidParam(key)
			}
			t := time.UnixMilli(ms).UTC()
			*dst = &t
		}
	}
	return f, nil
}

type errInvalidParam string

func (e errInvalidParam) Error() string { return "invalid " + string(e) }

// queryEvents handles GET /api/v1/log/.
//
// @Summary      Query events
// @Description  Returns stored telemetry events. Requires the admin role.
// @Tags         Telemetry
// @Produce      json
// @Param        name      query  string   false  "Filter by event name"
// @Param        user_id   query  string   false  "Filter by user ID"
// @Param        start_ms  query  integer  false  "Events at or after (epoch ms)"
// @Param        end_ms    query  integer  false  "Events before (epoch ms)"
// @Param        limit     query  integer  false  "Maximum results"
// @Param        offset    query  integer  false  "Results to skip"
// @Success      200  {object}  listResponse
// @Failure      400  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /log/ [get]
func (h *Handler) queryEvents(w http.ResponseWriter, r *http.Request) {
	f, err := eventFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events, err := h.cfg.Events.Query(r.Context(), f)
	if err != nil {
		slog.Error("querying telemetry failed", "error", err)
		writeError(w, http.StatusInternalServerError, "querying events failed")
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Result: events, Count: len(events)})
}

// eventStats handles GET /api/v1/log/stats/.
//
// @Summary      Count events
// @Description  Returns event counts by name. Requires the admin role.
// @Tags         Telemetry
// @Produce      json
// @Param        name      query  string   false  "Filter by event name"
// @Param        user_id   query  string   false  "Filter by user ID"
// @Param        start_ms  query  integer  false  "Events at or after (epoch ms)"
// @Param        end_ms    query  integer  false  "Events before (epoch ms)"
// @Success      200  {object}  listResponse
// @Failure      400  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /log/stats/ [get]
func (h *Handler) eventStats(w http.ResponseWriter, r *http.Request) {
	f, err := eventFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	counts, err := h.cfg.Events.CountByName(r.Context(), f)
	if err != nil {
		slog.Error("counting telemetry failed", "error", err)
		writeError(w, http.StatusInternalServerError, "counting events failed")
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Result: counts, Count: len(counts)})
}

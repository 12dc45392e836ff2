package admin

import (
	"net/http"
	"strconv"

	"github.com/txn2/dataset-lookup/pkg/api"
	"github.com/txn2/dataset-lookup/pkg/audit"
	"github.com/txn2/dataset-lookup/pkg/dataset"
)

const (
	paramStartTime = "start_time"
	paramEndTime   = "end_time"

	defaultAuditPageSize = 10
	maxAuditPageSize     = 100
)

// listAuditEvents handles GET /api/v1/admin/audit/events.
//
// @Summary      List audit events
// @Description  Returns audit events newest first, with the same X-Pagination header as dataset listings.
// @Tags         Admin
// @Produce      json
// @Param        username    query  string   false  "Filter by username"
// @Param        action      query  string   false  "Filter by action"
// @Param        resource    query  string   false  "Filter by URI, base URI or uuid"
// @Param        success     query  boolean  false  "Filter by success/failure"
// @Param        start_time  query  string   false  "Events after this time (RFC 3339)"
// @Param        end_time    query  string   false  "Events before this time (RFC 3339)"
// @Param        page        query  integer  false  "Page number, 1-based (default: 1)"
// @Param        page_size   query  integer  false  "Results per page (default: 10, max: 100)"
// @Success      200  {array}   audit.Event
// @Failure      404  {object}  api.errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /admin/audit/events [get]
func (h *Handler) listAuditEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.QueryFilter{
		Username:  q.Get("username"),
		Action:    audit.Action(q.Get("action")),
		Resource:  q.Get("resource"),
		StartTime: parseTimeParam(q, paramStartTime),
		EndTime:   parseTimeParam(q, paramEndTime),
	}
	if v := q.Get("success"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.Success = &b
		}
	}

	total, err := h.deps.AuditLogger.Count(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	size := parseIntParam(q, "page_size")
	switch {
	case size <= 0:
		size = defaultAuditPageSize
	case size > maxAuditPageSize:
		size = maxAuditPageSize
	}
	page := max(parseIntParam(q, "page"), 1)
	filter.Limit = size
	filter.Offset = (page - 1) * size

	events, err := h.deps.AuditLogger.Query(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}

	api.SetPagination(w, dataset.Page{Number: page, Size: size}, total)
	api.WriteJSON(w, http.StatusOK, events)
}

// getAuditBreakdown handles GET /api/v1/admin/audit/breakdown.
//
// @Summary      Break down audit events
// @Description  Returns audit event counts grouped by action or username, largest first.
// @Tags         Admin
// @Produce      json
// @Param        group_by    query  string   true   "Dimension: action, username, resource"
// @Param        limit       query  integer  false  "Max entries (default: 10, max: 100)"
// @Param        start_time  query  string   false  "Start time (RFC 3339)"
// @Param        end_time    query  string   false  "End time (RFC 3339)"
// @Success      200  {array}   audit.BreakdownEntry
// @Failure      400  {object}  api.errorResponse
// @Failure      404  {object}  api.errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /admin/audit/breakdown [get]
func (h *Handler) getAuditBreakdown(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dim, err := audit.ParseBreakdownDimension(q.Get("group_by"))
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.deps.AuditLogger.Breakdown(r.Context(), audit.BreakdownFilter{
		GroupBy:   dim,
		Limit:     parseIntParam(q, "limit"),
		StartTime: parseTimeParam(q, paramStartTime),
		EndTime:   parseTimeParam(q, paramEndTime),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []audit.BreakdownEntry{}
	}
	api.WriteJSON(w, http.StatusOK, entries)
}

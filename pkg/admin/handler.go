// Package admin provides REST API endpoints for administrative operations:
// users, base URIs, permissions and the audit log.
package admin

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/txn2/dataset-lookup/pkg/api"
	"github.com/txn2/dataset-lookup/pkg/audit"
	"github.com/txn2/dataset-lookup/pkg/lookup"
)

// Deps holds the admin handler dependencies.
type Deps struct {
	Service *lookup.Service

	// AuditLogger backs the audit endpoints; nil disables them.
	AuditLogger audit.Logger

	// Auditor records admin mutations.
	Auditor *api.Auditor

	// Scanner enables base URI indexing when set.
	Scanner lookup.Scanner

	Logger *slog.Logger
}

// Handler provides admin REST API endpoints. Every route answers callers
// that are not admins with 404.
type Handler struct {
	mux     *http.ServeMux
	guarded http.Handler
	deps    Deps
}

// NewHandler creates a new admin API handler.
func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Auditor == nil {
		deps.Auditor = api.NewAuditor(deps.AuditLogger, deps.Logger)
	}
	h := &Handler{mux: http.NewServeMux(), deps: deps}
	h.registerRoutes()
	h.guarded = RequireAdmin(deps.Service.Resolver(), deps.Logger)(h.mux)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.guarded.ServeHTTP(w, r)
}

// registerRoutes registers all admin API routes.
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /api/v1/admin/users", h.listUsers)
	h.mux.HandleFunc("POST /api/v1/admin/users", h.registerUsers)
	h.mux.HandleFunc("PUT /api/v1/admin/users/{username}", h.updateUser)
	h.mux.HandleFunc("DELETE /api/v1/admin/users/{username}", h.deleteUser)

	h.mux.HandleFunc("GET /api/v1/admin/base-uris", h.listBaseURIs)
	h.mux.HandleFunc("POST /api/v1/admin/base-uris", h.registerBaseURI)
	if h.deps.Scanner != nil {
		h.mux.HandleFunc("POST /api/v1/admin/base-uris/index", h.indexBaseURI)
	}

	h.mux.HandleFunc("POST /api/v1/admin/permission/info", h.permissionInfo)
	h.mux.HandleFunc("POST /api/v1/admin/permission/update_on_base_uri", h.updatePermissionsOnBaseURI)

	if h.deps.AuditLogger != nil {
		h.mux.HandleFunc("GET /api/v1/admin/audit/events", h.listAuditEvents)
		h.mux.HandleFunc("GET /api/v1/admin/audit/breakdown", h.getAuditBreakdown)
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	api.WriteServiceError(w, h.deps.Logger, r, err)
}

// parseTimeParam parses an RFC 3339 query parameter; invalid values are
// ignored.
func parseTimeParam(q url.Values, key string) *time.Time {
	v := q.Get(key)
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil
	}
	return &t
}

func parseIntParam(q url.Values, key string) int {
	if v := q.Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

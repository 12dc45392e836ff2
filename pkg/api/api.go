// Package api serves the dataset lookup REST API.
//
//	@title						Dataset Lookup API
//	@version					1.0
//	@description				Permission-scoped search and retrieval of dataset metadata.
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						X-API-Key
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/txn2/dataset-lookup/pkg/access"
	"github.com/txn2/dataset-lookup/pkg/auth"
	"github.com/txn2/dataset-lookup/pkg/dataset"
	"github.com/txn2/dataset-lookup/pkg/lookup"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 4 << 20

// ErrBadRequest indicates a malformed request that is not a dataset
// descriptor problem.
var ErrBadRequest = errors.New("bad request")

// ConfigReporter publishes the merged settings and component versions.
type ConfigReporter interface {
	// Published returns the settings with secrets masked.
	Published() map[string]any

	// Versions maps component names to versions.
	Versions() map[string]string
}

// Deps holds the handler dependencies.
type Deps struct {
	Service *lookup.Service
	Config  ConfigReporter
	Auditor *Auditor
	Logger  *slog.Logger
}

// Handler provides the dataset REST API endpoints. Requests must already
// carry an authenticated identity.
type Handler struct {
	mux  *http.ServeMux
	deps Deps
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Auditor == nil {
		deps.Auditor = NewAuditor(nil, deps.Logger)
	}
	h := &Handler{mux: http.NewServeMux(), deps: deps}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /api/v1/config/info", h.configInfo)
	h.mux.HandleFunc("GET /api/v1/config/versions", h.configVersions)

	h.mux.HandleFunc("GET /api/v1/me", h.me)
	h.mux.HandleFunc("GET /api/v1/me/summary", h.mySummary)
	h.mux.HandleFunc("GET /api/v1/users/{username}", h.userInfo)
	h.mux.HandleFunc("GET /api/v1/users/{username}/summary", h.userSummary)

	h.mux.HandleFunc("POST /api/v1/search", h.search)
	h.mux.HandleFunc("GET /api/v1/uris", h.listURIs)
	h.mux.HandleFunc("GET /api/v1/uris/{uri...}", h.getURI)
	h.mux.HandleFunc("PUT /api/v1/uris/{uri...}", h.registerDataset)
	h.mux.HandleFunc("GET /api/v1/uuids/{uuid}", h.lookupUUID)
	h.mux.HandleFunc("GET /api/v1/readmes/{uri...}", h.readme)
	h.mux.HandleFunc("GET /api/v1/manifests/{uri...}", h.manifest)
	h.mux.HandleFunc("GET /api/v1/annotations/{uri...}", h.annotations)
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, errorResponse{Error: msg})
}

// errorResponse is the body of every error response.
type errorResponse struct {
	Error string `json:"error"`
}

// StatusFor maps the error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, dataset.ErrValidation), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, access.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, access.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, dataset.ErrUnknownURI),
		errors.Is(err, access.ErrUnknownBaseURI),
		errors.Is(err, access.ErrUnknownUser):
		return http.StatusNotFound
	case errors.Is(err, access.ErrInvalidRight):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteServiceError writes err with its mapped status. Internal errors are
// logged and reported without detail.
func WriteServiceError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		WriteError(w, status, "internal error")
		return
	}
	WriteError(w, status, err.Error())
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	WriteServiceError(w, h.deps.Logger, r, err)
}

// DecodeJSON reads a bounded JSON body into v.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decoding request body: %w", ErrBadRequest, err)
	}
	return nil
}

// username returns the authenticated caller; an anonymous request is an
// authentication failure.
func username(r *http.Request) (string, error) {
	name := auth.Username(r.Context())
	if name == "" {
		return "", access.ErrAuthentication
	}
	return name, nil
}

package admin

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/txn2/dataset-lookup/pkg/access"
	"github.com/txn2/dataset-lookup/pkg/api"
	"github.com/txn2/dataset-lookup/pkg/audit"
)

// baseURIRequest names one base URI.
type baseURIRequest struct {
	BaseURI string `json:"base_uri"`
}

// listBaseURIs handles GET /api/v1/admin/base-uris.
//
// @Summary      List base URIs
// @Tags         Admin
// @Produce      json
// @Success      200  {array}   string
// @Failure      404  {object}  api.errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /admin/base-uris [get]
func (h *Handler) listBaseURIs(w http.ResponseWriter, r *http.Request) {
	uris, err := h.deps.Service.Resolver().Store().ListBaseURIs(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if uris == nil {
		uris = []string{}
	}
	api.WriteJSON(w, http.StatusOK, uris)
}

// registerBaseURI handles POST /api/v1/admin/base-uris.
//
// @Summary      Register a base URI
// @Description  Registering an existing base URI is a no-op.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        body  body  baseURIRequest  true  "Base URI"
// @Success      201  {object}  baseURIRequest
// @Failure      400  {object}  api.errorResponse
// @Failure      404  {object}  api.errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /admin/base-uris [post]
func (h *Handler) registerBaseURI(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req baseURIRequest
	err := api.DecodeJSON(w, r, &req)
	if err == nil {
		req.BaseURI = normalizeBaseURI(req.BaseURI)
		err = ValidateBaseURI(req.BaseURI)
	}
	if err == nil {
		err = h.deps.Service.Resolver().Store().RegisterBaseURI(r.Context(), req.BaseURI)
	}
	h.deps.Auditor.Record(r, audit.ActionRegisterBaseURI, req.BaseURI, nil, start, err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, req)
}

// ValidateBaseURI checks that s is an absolute URI such as s3://bucket or
// file:///srv/datasets.
func ValidateBaseURI(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("%w: base uri %q: %w", api.ErrBadRequest, s, err)
	}
	if u.Scheme == "" || (u.Host == "" && u.Path == "") {
		return fmt.Errorf("%w: base uri %q must be of the form scheme://name", api.ErrBadRequest, s)
	}
	return nil
}

// indexBaseURI handles POST /api/v1/admin/base-uris/index.
//
// @Summary      Index the datasets stored under a base URI
// @Description  Scans the storage behind a registered base URI and registers every valid dataset found.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        body  body  baseURIRequest  true  "Base URI"
// @Success      200  {object}  lookup.IndexReport
// @Failure      404  {object}  api.errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /admin/base-uris/index [post]
func (h *Handler) indexBaseURI(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req baseURIRequest
	err := api.DecodeJSON(w, r, &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	req.BaseURI = normalizeBaseURI(req.BaseURI)
	report, err := h.deps.Service.IndexBaseURI(r.Context(), req.BaseURI, h.deps.Scanner)
	params := map[string]any{}
	if report != nil {
		params["registered"] = len(report.Registered)
		params["skipped"] = len(report.Skipped)
	}
	h.deps.Auditor.Record(r, audit.ActionIndexBaseURI, req.BaseURI, params, start, err)
	switch {
	case errors.Is(err, access.ErrUnknownBaseURI):
		writeNotFound(w)
	case err != nil:
		h.fail(w, r, err)
	default:
		api.WriteJSON(w, http.StatusOK, report)
	}
}

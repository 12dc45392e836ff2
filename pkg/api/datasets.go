package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/txn2/dataset-lookup/pkg/audit"
	"github.com/txn2/dataset-lookup/pkg/dataset"
)

// registerResponse acknowledges a registration.
type registerResponse struct {
	UUID string `json:"uuid"`
	URI  string `json:"uri"`
}

// search handles POST /api/v1/search.
//
// @Summary      Search datasets
// @Description  Returns the datasets matching the query among the base URIs the caller may search. Lists are OR'ed, tags AND'ed and groups AND'ed.
// @Tags         Datasets
// @Accept       json
// @Produce      json
// @Param        query      body   dataset.Query  true   "Search query"
// @Param        page       query  integer        false  "Page number, 1-based (default: 1)"
// @Param        page_size  query  integer        false  "Results per page (default: 10, max: 100)"
// @Param        sort       query  string         false  "Sort keys, e.g. -frozen_at,name"
// @Success      200  {array}   dataset.Info
// @Header       200  {string}  X-Pagination  "Pagination metadata"
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /search [post]
func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var q dataset.Query
	if err := DecodeJSON(w, r, &q); err != nil {
		h.fail(w, r, err)
		return
	}
	err := h.paginatedSearch(w, r, q)
	h.deps.Auditor.Record(r, audit.ActionSearch, "", queryParams(q), start, err)
}

// listURIs handles GET /api/v1/uris.
//
// @Summary      List visible datasets
// @Description  Returns every dataset the caller may see, one page at a time.
// @Tags         Datasets
// @Produce      json
// @Param        page       query  integer  false  "Page number, 1-based (default: 1)"
// @Param        page_size  query  integer  false  "Results per page (default: 10, max: 100)"
// @Param        sort       query  string   false  "Sort keys, e.g. -frozen_at,name"
// @Success      200  {array}   dataset.Info
// @Header       200  {string}  X-Pagination  "Pagination metadata"
// @Failure      401  {object}  errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /uris [get]
func (h *Handler) listURIs(w http.ResponseWriter, r *http.Request) {
	_ = h.paginatedSearch(w, r, dataset.Query{})
}

func (h *Handler) paginatedSearch(w http.ResponseWriter, r *http.Request, q dataset.Query) error {
	user, err := username(r)
	if err != nil {
		h.fail(w, r, err)
		return err
	}
	page, err := parsePage(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return err
	}
	sort, err := dataset.ParseSort(r.URL.Query().Get("sort"))
	if err != nil {
		h.fail(w, r, err)
		return err
	}

	res, err := h.deps.Service.Search(r.Context(), user, q, &page, sort)
	if err != nil {
		h.fail(w, r, err)
		return err
	}
	SetPagination(w, page, res.Total)
	WriteJSON(w, http.StatusOK, res.Datasets)
	return nil
}

// getURI handles GET /api/v1/uris/{uri}.
//
// @Summary      Get a dataset
// @Description  Returns the dataset registered at a URI, given in suffix form (s3/bucket/uuid).
// @Tags         Datasets
// @Produce      json
// @Param        uri  path  string  true  "Dataset URI"
// @Success      200  {object}  dataset.Info
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /uris/{uri} [get]
func (h *Handler) getURI(w http.ResponseWriter, r *http.Request) {
	user, err := username(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	info, err := h.deps.Service.Get(r.Context(), user, URIFromPath(r.PathValue("uri")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, info.Summary())
}

// registerDataset handles PUT /api/v1/uris/{uri}.
//
// @Summary      Register a dataset
// @Description  Validates the dataset info and upserts it on (uuid, uri). Requires register permission on the base URI.
// @Tags         Datasets
// @Accept       json
// @Produce      json
// @Param        uri   path  string        true  "Dataset URI"
// @Param        info  body  dataset.Info  true  "Dataset info"
// @Success      200  {object}  registerResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /uris/{uri} [put]
func (h *Handler) registerDataset(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uri := URIFromPath(r.PathValue("uri"))
	err := h.register(w, r, uri)
	h.deps.Auditor.Record(r, audit.ActionRegisterDataset, uri, nil, start, err)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request, uri string) error {
	user, err := username(r)
	if err != nil {
		h.fail(w, r, err)
		return err
	}
	var info dataset.Info
	if err := DecodeJSON(w, r, &info); err != nil {
		h.fail(w, r, err)
		return err
	}
	if info.URI != uri {
		err := fmt.Errorf("%w: body uri %q does not match path uri %q", dataset.ErrValidation, info.URI, uri)
		h.fail(w, r, err)
		return err
	}

	uuid, err := h.deps.Service.Register(r.Context(), user, info)
	if err != nil {
		h.fail(w, r, err)
		return err
	}
	WriteJSON(w, http.StatusOK, registerResponse{UUID: uuid, URI: uri})
	return nil
}

// lookupUUID handles GET /api/v1/uuids/{uuid}.
//
// @Summary      Look up a dataset by UUID
// @Description  Returns every copy of the dataset the caller may see.
// @Tags         Datasets
// @Produce      json
// @Param        uuid  path  string  true  "Dataset UUID"
// @Success      200  {array}   dataset.Info
// @Failure      401  {object}  errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /uuids/{uuid} [get]
func (h *Handler) lookupUUID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uuid := r.PathValue("uuid")
	user, err := username(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	infos, err := h.deps.Service.Lookup(r.Context(), user, uuid)
	h.deps.Auditor.Record(r, audit.ActionLookup, uuid, nil, start, err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, infos)
}

// readme handles GET /api/v1/readmes/{uri}.
//
// @Summary      Get a dataset README
// @Tags         Documents
// @Produce      json
// @Param        uri  path  string  true  "Dataset URI"
// @Success      200  {string}  string
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /readmes/{uri} [get]
func (h *Handler) readme(w http.ResponseWriter, r *http.Request) {
	user, err := username(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	text, err := h.deps.Service.Readme(r.Context(), user, URIFromPath(r.PathValue("uri")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, text)
}

// manifest handles GET /api/v1/manifests/{uri}.
//
// @Summary      Get a dataset manifest
// @Tags         Documents
// @Produce      json
// @Param        uri  path  string  true  "Dataset URI"
// @Success      200  {object}  dataset.Manifest
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /manifests/{uri} [get]
func (h *Handler) manifest(w http.ResponseWriter, r *http.Request) {
	user, err := username(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.deps.Service.Manifest(r.Context(), user, URIFromPath(r.PathValue("uri")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, m)
}

// annotations handles GET /api/v1/annotations/{uri}.
//
// @Summary      Get dataset annotations
// @Tags         Documents
// @Produce      json
// @Param        uri  path  string  true  "Dataset URI"
// @Success      200  {object}  map[string]any
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /annotations/{uri} [get]
func (h *Handler) annotations(w http.ResponseWriter, r *http.Request) {
	user, err := username(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.deps.Service.Annotations(r.Context(), user, URIFromPath(r.PathValue("uri")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, a)
}

func queryParams(q dataset.Query) map[string]any {
	params := map[string]any{}
	if len(q.BaseURIs) > 0 {
		params["base_uris"] = q.BaseURIs
	}
	if len(q.CreatorUsernames) > 0 {
		params["creator_usernames"] = q.CreatorUsernames
	}
	if len(q.UUIDs) > 0 {
		params["uuids"] = q.UUIDs
	}
	if len(q.Tags) > 0 {
		params["tags"] = q.Tags
	}
	if q.FreeText != "" {
		params["free_text"] = q.FreeText
	}
	return params
}

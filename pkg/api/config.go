package api

import (
	"net/http"

	"github.com/txn2/dataset-lookup/pkg/access"
)

// configInfo handles GET /api/v1/config/info.
//
// @Summary      Show the server configuration
// @Description  Returns the merged settings with secrets masked.
// @Tags         Config
// @Produce      json
// @Success      200  {object}  map[string]any
// @Failure      401  {object}  errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /config/info [get]
func (h *Handler) configInfo(w http.ResponseWriter, r *http.Request) {
	if !h.registered(w, r) {
		return
	}
	WriteJSON(w, http.StatusOK, h.deps.Config.Published())
}

// configVersions handles GET /api/v1/config/versions.
//
// @Summary      Show component versions
// @Tags         Config
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /config/versions [get]
func (h *Handler) configVersions(w http.ResponseWriter, r *http.Request) {
	if !h.registered(w, r) {
		return
	}
	WriteJSON(w, http.StatusOK, h.deps.Config.Versions())
}

func (h *Handler) registered(w http.ResponseWriter, r *http.Request) bool {
	user, err := username(r)
	if err != nil {
		h.fail(w, r, err)
		return false
	}
	ok, err := h.deps.Service.Resolver().UserExists(r.Context(), user)
	if err != nil {
		h.fail(w, r, err)
		return false
	}
	if !ok {
		h.fail(w, r, access.ErrAuthentication)
		return false
	}
	if h.deps.Config == nil {
		WriteError(w, http.StatusNotFound, "configuration not published")
		return false
	}
	return true
}

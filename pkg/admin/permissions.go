package admin

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/txn2/dataset-lookup/pkg/access"
	"github.com/txn2/dataset-lookup/pkg/api"
	"github.com/txn2/dataset-lookup/pkg/audit"
)

// permissionInfo handles POST /api/v1/admin/permission/info.
//
// @Summary      Show the permissions on a base URI
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        body  body  baseURIRequest  true  "Base URI"
// @Success      200  {object}  access.PermissionInfo
// @Failure      404  {object}  api.errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /admin/permission/info [post]
func (h *Handler) permissionInfo(w http.ResponseWriter, r *http.Request) {
	var req baseURIRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	info, err := h.deps.Service.Resolver().Store().GetPermissionInfo(r.Context(), normalizeBaseURI(req.BaseURI))
	h.respondPermissions(w, r, info, err)
}

// updatePermissionsOnBaseURI handles POST /api/v1/admin/permission/update_on_base_uri.
//
// @Summary      Replace the permissions on a base URI
// @Description  The body becomes the complete permission set of the base URI. Users left out lose their rights on it.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        body  body  access.PermissionInfo  true  "Permissions"
// @Success      200  {object}  access.PermissionInfo
// @Failure      400  {object}  api.errorResponse
// @Failure      404  {object}  api.errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /admin/permission/update_on_base_uri [post]
func (h *Handler) updatePermissionsOnBaseURI(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var info access.PermissionInfo
	err := api.DecodeJSON(w, r, &info)
	var updated *access.PermissionInfo
	if err == nil {
		info.BaseURI = normalizeBaseURI(info.BaseURI)
		updated, err = h.replacePermissions(r, info)
	}
	h.deps.Auditor.Record(r, audit.ActionUpdatePermissions, info.BaseURI, permissionParams(info), start, err)
	h.respondPermissions(w, r, updated, err)
}

func (h *Handler) replacePermissions(r *http.Request, info access.PermissionInfo) (*access.PermissionInfo, error) {
	store := h.deps.Service.Resolver().Store()
	if err := store.PutPermissions(r.Context(), info); err != nil {
		return nil, err
	}
	return store.GetPermissionInfo(r.Context(), info.BaseURI)
}

// respondPermissions answers an unknown base URI with the same 404 a
// non-admin receives.
func (h *Handler) respondPermissions(w http.ResponseWriter, r *http.Request, info *access.PermissionInfo, err error) {
	switch {
	case errors.Is(err, access.ErrUnknownBaseURI):
		writeNotFound(w)
	case err != nil:
		h.fail(w, r, err)
	default:
		api.WriteJSON(w, http.StatusOK, info)
	}
}

func normalizeBaseURI(s string) string {
	return strings.TrimRight(s, "/")
}

func permissionParams(info access.PermissionInfo) map[string]any {
	return map[string]any{
		"search":   info.UsersWithSearchPermissions,
		"register": info.UsersWithRegisterPermissions,
		"admin":    info.UsersWithAdminPermissions,
	}
}

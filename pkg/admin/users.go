package admin

import (
	"fmt"
	"net/http"
	"time"

	"github.com/txn2/dataset-lookup/pkg/access"
	"github.com/txn2/dataset-lookup/pkg/api"
	"github.com/txn2/dataset-lookup/pkg/audit"
)

// listUsers handles GET /api/v1/admin/users.
//
// @Summary      List users
// @Tags         Admin
// @Produce      json
// @Success      200  {array}   access.User
// @Failure      404  {object}  api.errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /admin/users [get]
func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.deps.Service.Resolver().Store().ListUsers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if users == nil {
		users = []access.User{}
	}
	api.WriteJSON(w, http.StatusOK, users)
}

// registerUsers handles POST /api/v1/admin/users.
//
// @Summary      Register users
// @Description  Registers every listed user. Usernames already registered are left unchanged.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        body  body  []access.User  true  "Users"
// @Success      201  {array}   access.User
// @Failure      400  {object}  api.errorResponse
// @Failure      404  {object}  api.errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /admin/users [post]
func (h *Handler) registerUsers(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var users []access.User
	err := api.DecodeJSON(w, r, &users)
	if err == nil {
		err = validateUsers(users)
	}
	if err == nil {
		err = h.deps.Service.Resolver().Store().RegisterUsers(r.Context(), users)
	}
	h.deps.Auditor.Record(r, audit.ActionRegisterUsers, "", map[string]any{"count": len(users)}, start, err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, users)
}

func validateUsers(users []access.User) error {
	for _, u := range users {
		if u.Username == "" {
			return fmt.Errorf("%w: username is required", api.ErrBadRequest)
		}
	}
	return nil
}

// updateUser handles PUT /api/v1/admin/users/{username}.
//
// @Summary      Update a user
// @Description  Sets the admin flag of a registered user.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        username  path  string       true  "Username"
// @Param        body      body  access.User  true  "User"
// @Success      200  {object}  access.User
// @Failure      404  {object}  api.errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /admin/users/{username} [put]
func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := r.PathValue("username")
	var user access.User
	err := api.DecodeJSON(w, r, &user)
	if err == nil {
		user.Username = name
		err = h.deps.Service.Resolver().Store().UpdateUser(r.Context(), user)
	}
	h.deps.Auditor.Record(r, audit.ActionUpdateUser, name, map[string]any{"is_admin": user.IsAdmin}, start, err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, user)
}

// deleteUser handles DELETE /api/v1/admin/users/{username}.
//
// @Summary      Delete a user
// @Description  Removes the user and every permission they hold.
// @Tags         Admin
// @Param        username  path  string  true  "Username"
// @Success      204
// @Failure      404  {object}  api.errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /admin/users/{username} [delete]
func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := r.PathValue("username")
	err := h.deps.Service.Resolver().Store().DeleteUser(r.Context(), name)
	h.deps.Auditor.Record(r, audit.ActionDeleteUser, name, nil, start, err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package api

import (
	"net/http"
	"time"

	"github.com/txn2/dataset-lookup/pkg/access"
	"github.com/txn2/dataset-lookup/pkg/audit"
)

// me handles GET /api/v1/me.
//
// @Summary      Describe the caller
// @Description  Returns the caller's admin flag and the base URIs they may search and register on.
// @Tags         Users
// @Produce      json
// @Success      200  {object}  access.UserInfo
// @Failure      401  {object}  errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /me [get]
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	user, err := username(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeUserInfo(w, r, user)
}

// mySummary handles GET /api/v1/me/summary.
//
// @Summary      Summarize the caller's datasets
// @Description  Counts the datasets visible to the caller per creator, base URI and tag.
// @Tags         Users
// @Produce      json
// @Success      200  {object}  dataset.Summary
// @Failure      401  {object}  errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /me/summary [get]
func (h *Handler) mySummary(w http.ResponseWriter, r *http.Request) {
	user, err := username(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeSummary(w, r, user)
}

// userInfo handles GET /api/v1/users/{username}.
//
// @Summary      Describe a user
// @Description  Callers may describe themselves; admins may describe anyone. Anything else is reported as not found.
// @Tags         Users
// @Produce      json
// @Param        username  path  string  true  "Username"
// @Success      200  {object}  access.UserInfo
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /users/{username} [get]
func (h *Handler) userInfo(w http.ResponseWriter, r *http.Request) {
	target, ok := h.visibleUser(w, r)
	if !ok {
		return
	}
	h.writeUserInfo(w, r, target)
}

// userSummary handles GET /api/v1/users/{username}/summary.
//
// @Summary      Summarize a user's datasets
// @Description  Same visibility rules as the user endpoint.
// @Tags         Users
// @Produce      json
// @Param        username  path  string  true  "Username"
// @Success      200  {object}  dataset.Summary
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Router       /users/{username}/summary [get]
func (h *Handler) userSummary(w http.ResponseWriter, r *http.Request) {
	target, ok := h.visibleUser(w, r)
	if !ok {
		return
	}
	h.writeSummary(w, r, target)
}

// visibleUser resolves the {username} path value. Non-admins asking about
// someone else get the same response as for an unknown user.
func (h *Handler) visibleUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller, err := username(r)
	if err != nil {
		h.fail(w, r, err)
		return "", false
	}
	resolver := h.deps.Service.Resolver()
	exists, err := resolver.UserExists(r.Context(), caller)
	if err != nil {
		h.fail(w, r, err)
		return "", false
	}
	if !exists {
		h.fail(w, r, access.ErrAuthentication)
		return "", false
	}

	target := r.PathValue("username")
	if target == caller {
		return target, true
	}
	admin, err := resolver.IsAdmin(r.Context(), caller)
	if err != nil {
		h.fail(w, r, err)
		return "", false
	}
	if !admin {
		WriteError(w, http.StatusNotFound, access.ErrUnknownUser.Error())
		return "", false
	}
	exists, err = resolver.UserExists(r.Context(), target)
	if err != nil {
		h.fail(w, r, err)
		return "", false
	}
	if !exists {
		WriteError(w, http.StatusNotFound, access.ErrUnknownUser.Error())
		return "", false
	}
	return target, true
}

func (h *Handler) writeUserInfo(w http.ResponseWriter, r *http.Request, user string) {
	info, err := h.deps.Service.UserInfo(r.Context(), user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, info)
}

func (h *Handler) writeSummary(w http.ResponseWriter, r *http.Request, user string) {
	start := time.Now()
	summary, err := h.deps.Service.Summarize(r.Context(), user)
	h.deps.Auditor.Record(r, audit.ActionSummary, user, nil, start, err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, summary)
}

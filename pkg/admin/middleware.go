package admin

import (
	"log/slog"
	"net/http"

	"github.com/txn2/dataset-lookup/pkg/access"
	"github.com/txn2/dataset-lookup/pkg/api"
	"github.com/txn2/dataset-lookup/pkg/auth"
)

// notFoundMessage is the body of every admin 404, so a non-admin cannot
// tell a hidden route from a missing resource.
const notFoundMessage = "not found"

// RequireAdmin creates middleware that admits only registered admins.
// Everyone else, anonymous callers included, gets 404.
func RequireAdmin(resolver *access.Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := auth.Username(r.Context())
			if name == "" {
				writeNotFound(w)
				return
			}
			admin, err := resolver.IsAdmin(r.Context(), name)
			if err != nil {
				logger.ErrorContext(r.Context(), "admin check failed", "username", name, "error", err)
				api.WriteError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if !admin {
				writeNotFound(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeNotFound(w http.ResponseWriter) {
	api.WriteError(w, http.StatusNotFound, notFoundMessage)
}

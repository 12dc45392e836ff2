// Package http provides HTTP middleware for the dataset lookup server.
package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/txn2/dataset-lookup/pkg/auth"
)

// ExtractToken returns the Bearer token, or the X-API-Key header when no
// Bearer token is present.
func ExtractToken(r *http.Request) string {
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		if token := strings.TrimSpace(after); token != "" {
			return token
		}
	}
	return r.Header.Get("X-API-Key")
}

// AuthMiddleware extracts the token, authenticates it and stores the
// identity in the request context. A rejected token is always a 401; a
// missing token is a 401 only when requireAuth is set.
func AuthMiddleware(authn auth.Authenticator, requireAuth bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				if requireAuth {
					unauthorized(w, "missing authentication token")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := auth.WithToken(r.Context(), token)
			id, err := authn.Authenticate(ctx)
			if err != nil || id == nil {
				unauthorized(w, "invalid authentication token")
				return
			}
			ctx = auth.WithIdentity(ctx, id)
			SetUsername(ctx, id.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth returns middleware that requires an authenticated identity.
func RequireAuth(authn auth.Authenticator) func(http.Handler) http.Handler {
	return AuthMiddleware(authn, true)
}

// OptionalAuth returns middleware that allows anonymous requests.
func OptionalAuth(authn auth.Authenticator) func(http.Handler) http.Handler {
	return AuthMiddleware(authn, false)
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized: " + msg})
}

// Chain applies middleware so that the first listed runs outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

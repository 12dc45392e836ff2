package http

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

type contextKey int

const requestStateKey contextKey = iota

// requestState is shared by the middleware of one request. Inner middleware
// fill in the username for the outer logging middleware.
type requestState struct {
	mu       sync.Mutex
	id       string
	username string
}

// RequestID assigns every request an id, reusing a caller supplied
// X-Request-ID, and echoes it in the response.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			ctx := context.WithValue(r.Context(), requestStateKey, &requestState{id: id})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func state(ctx context.Context) *requestState {
	s, _ := ctx.Value(requestStateKey).(*requestState)
	return s
}

// GetRequestID returns the request id, or "" outside RequestID.
func GetRequestID(ctx context.Context) string {
	if s := state(ctx); s != nil {
		return s.id
	}
	return ""
}

// SetUsername records the authenticated username for request logging.
func SetUsername(ctx context.Context, username string) {
	if s := state(ctx); s != nil {
		s.mu.Lock()
		s.username = username
		s.mu.Unlock()
	}
}

func loggedUsername(ctx context.Context) string {
	s := state(ctx)
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// Package auth turns bearer tokens and API keys into registered usernames.
package auth

import (
	"context"
	"errors"
)

var (
	// ErrNoToken indicates the request carried no credential.
	ErrNoToken = errors.New("no token found in context")

	// ErrInvalidToken indicates the credential was rejected.
	ErrInvalidToken = errors.New("invalid token")
)

// contextKey is a private type for context keys.
type contextKey int

const (
	tokenContextKey contextKey = iota
	identityContextKey
)

// Identity is the authenticated caller. Whether Username is a registered
// user is decided by the access store, not here.
type Identity struct {
	Username string `json:"username"`
	AuthType string `json:"auth_type"` // "jwt", "apikey"
}

// Authenticator resolves the token stored in ctx into an identity.
type Authenticator interface {
	Authenticate(ctx context.Context) (*Identity, error)
}

// WithToken adds a raw token to the context.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// GetToken retrieves the raw token from the context.
func GetToken(ctx context.Context) string {
	if t, ok := ctx.Value(tokenContextKey).(string); ok {
		return t
	}
	return ""
}

// WithIdentity adds the authenticated identity to the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// GetIdentity retrieves the authenticated identity, or nil.
func GetIdentity(ctx context.Context) *Identity {
	if id, ok := ctx.Value(identityContextKey).(*Identity); ok {
		return id
	}
	return nil
}

// Username returns the authenticated username, or "".
func Username(ctx context.Context) string {
	if id := GetIdentity(ctx); id != nil {
		return id.Username
	}
	return ""
}

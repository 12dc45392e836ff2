// Package access stores users, base URIs and per-base-URI permissions, and
// resolves which base URIs a user may see.
package access

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrAuthentication indicates the identity is not a registered user.
	ErrAuthentication = errors.New("user not registered")

	// ErrAuthorization indicates a registered user lacks the required right.
	ErrAuthorization = errors.New("not authorized")

	// ErrUnknownBaseURI indicates the base URI is not registered.
	ErrUnknownBaseURI = errors.New("unknown base uri")

	// ErrUnknownUser indicates an administrative operation named a user that
	// is not registered.
	ErrUnknownUser = errors.New("unknown user")

	// ErrInvalidRight indicates an unrecognized right.
	ErrInvalidRight = errors.New("invalid right")
)

// Right is a permission level on one base URI.
type Right string

const (
	// RightSearch allows searching and reading datasets under a base URI.
	RightSearch Right = "search"

	// RightRegister allows registering datasets under a base URI.
	RightRegister Right = "register"

	// RightAdmin on a base URI implies every other right on it.
	RightAdmin Right = "admin"
)

// ParseRight validates a right name.
func ParseRight(s string) (Right, error) {
	switch r := Right(s); r {
	case RightSearch, RightRegister, RightAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRight, s)
	}
}

// Implies reports whether holding r grants want.
func (r Right) Implies(want Right) bool {
	return r == want || r == RightAdmin
}

// User is a registered identity.
type User struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// Permission grants one right on one base URI to one user.
type Permission struct {
	Username string `json:"username"`
	BaseURI  string `json:"base_uri"`
	Right    Right  `json:"right"`
}

// PermissionInfo lists who holds which right on a base URI.
type PermissionInfo struct {
	BaseURI                      string   `json:"base_uri"`
	UsersWithSearchPermissions   []string `json:"users_with_search_permissions"`
	UsersWithRegisterPermissions []string `json:"users_with_register_permissions"`
	UsersWithAdminPermissions    []string `json:"users_with_admin_permissions,omitempty"`
}

// Permissions expands the info into one row per (user, right).
func (p PermissionInfo) Permissions() []Permission {
	var out []Permission
	add := func(users []string, right Right) {
		for _, u := range users {
			out = append(out, Permission{Username: u, BaseURI: p.BaseURI, Right: right})
		}
	}
	add(p.UsersWithSearchPermissions, RightSearch)
	add(p.UsersWithRegisterPermissions, RightRegister)
	add(p.UsersWithAdminPermissions, RightAdmin)
	return out
}

// Usernames returns every distinct user named in the info.
func (p PermissionInfo) Usernames() []string {
	var names []string
	for _, perm := range p.Permissions() {
		names = append(names, perm.Username)
	}
	return uniqueSorted(names)
}

// UserInfo describes a user and the base URIs they hold rights on.
type UserInfo struct {
	Username                      string   `json:"username"`
	IsAdmin                       bool     `json:"is_admin"`
	SearchPermissionsOnBaseURIs   []string `json:"search_permissions_on_base_uris"`
	RegisterPermissionsOnBaseURIs []string `json:"register_permissions_on_base_uris"`
}

// Store persists users, base URIs and permissions. Writes are atomic at the
// storage boundary.
type Store interface {
	// RegisterUsers inserts users, skipping usernames that already exist.
	RegisterUsers(ctx context.Context, users []User) error

	// UpdateUser sets the admin flag of an existing user.
	UpdateUser(ctx context.Context, user User) error

	// DeleteUser removes a user and every permission they hold.
	DeleteUser(ctx context.Context, username string) error

	// GetUser returns a user or ErrUnknownUser.
	GetUser(ctx context.Context, username string) (*User, error)

	// ListUsers returns every user ordered by username.
	ListUsers(ctx context.Context) ([]User, error)

	// RegisterBaseURI registers a base URI; registering twice is a no-op.
	RegisterBaseURI(ctx context.Context, baseURI string) error

	// ListBaseURIs returns every base URI in ascending order.
	ListBaseURIs(ctx context.Context) ([]string, error)

	// BaseURIExists reports whether a base URI is registered.
	BaseURIExists(ctx context.Context, baseURI string) (bool, error)

	// GetPermissionInfo returns the permissions on a base URI.
	GetPermissionInfo(ctx context.Context, baseURI string) (*PermissionInfo, error)

	// PutPermissions replaces every permission on info.BaseURI with the
	// permissions listed in info.
	PutPermissions(ctx context.Context, info PermissionInfo) error

	// Grant adds a single permission if not already held.
	Grant(ctx context.Context, perm Permission) error

	// Grants reads a user together with their permissions and the registered
	// base URIs in one consistent snapshot.
	Grants(ctx context.Context, username string) (*Grants, error)
}

// Grants is a consistent snapshot of what one user may do.
type Grants struct {
	User        User
	Permissions []Permission
	BaseURIs    []string
}

// Allowed returns the registered base URIs on which the user holds a right
// implying want. Admin users are allowed every registered base URI.
func (g *Grants) Allowed(want Right) []string {
	if g.User.IsAdmin {
		return uniqueSorted(g.BaseURIs)
	}
	registered := make(map[string]bool, len(g.BaseURIs))
	for _, b := range g.BaseURIs {
		registered[b] = true
	}
	var out []string
	for _, p := range g.Permissions {
		if p.Username == g.User.Username && registered[p.BaseURI] && p.Right.Implies(want) {
			out = append(out, p.BaseURI)
		}
	}
	return uniqueSorted(out)
}

// Info returns the user info view of the snapshot.
func (g *Grants) Info() UserInfo {
	return UserInfo{
		Username:                      g.User.Username,
		IsAdmin:                       g.User.IsAdmin,
		SearchPermissionsOnBaseURIs:   g.Allowed(RightSearch),
		RegisterPermissionsOnBaseURIs: g.Allowed(RightRegister),
	}
}

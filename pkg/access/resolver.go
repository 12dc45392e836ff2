package access

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/txn2/dataset-lookup/pkg/dataset"
)

// Resolver answers permission questions from a Store.
type Resolver struct {
	store Store
}

// NewResolver creates a resolver over store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Store returns the underlying store.
func (r *Resolver) Store() Store {
	return r.store
}

// Grants returns the permission snapshot for username, translating an unknown
// user into ErrAuthentication.
func (r *Resolver) Grants(ctx context.Context, username string) (*Grants, error) {
	if username == "" {
		return nil, ErrAuthentication
	}
	g, err := r.store.Grants(ctx, username)
	if errors.Is(err, ErrUnknownUser) {
		return nil, fmt.Errorf("%w: %s", ErrAuthentication, username)
	}
	if err != nil {
		return nil, fmt.Errorf("reading grants: %w", err)
	}
	return g, nil
}

// AllowedBaseURIs returns the base URIs username may use with right, sorted.
// Admins are allowed every registered base URI.
func (r *Resolver) AllowedBaseURIs(ctx context.Context, username string, right Right) ([]string, error) {
	g, err := r.Grants(ctx, username)
	if err != nil {
		return nil, err
	}
	return g.Allowed(right), nil
}

// UserExists reports whether username is registered.
func (r *Resolver) UserExists(ctx context.Context, username string) (bool, error) {
	_, err := r.Grants(ctx, username)
	if errors.Is(err, ErrAuthentication) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// IsAdmin reports whether username is a registered admin.
func (r *Resolver) IsAdmin(ctx context.Context, username string) (bool, error) {
	g, err := r.Grants(ctx, username)
	if errors.Is(err, ErrAuthentication) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return g.User.IsAdmin, nil
}

// MayAccess reports whether username may read the dataset at uri.
func (r *Resolver) MayAccess(ctx context.Context, username, uri string) (bool, error) {
	allowed, err := r.AllowedBaseURIs(ctx, username, RightSearch)
	if err != nil {
		return false, err
	}
	return slices.Contains(allowed, dataset.BaseURIOf(uri)), nil
}

// MayRegister reports whether username may register datasets on baseURI.
func (r *Resolver) MayRegister(ctx context.Context, username, baseURI string) (bool, error) {
	allowed, err := r.AllowedBaseURIs(ctx, username, RightRegister)
	if err != nil {
		return false, err
	}
	return slices.Contains(allowed, baseURI), nil
}

// UserInfo returns the user and the base URIs they hold rights on.
func (r *Resolver) UserInfo(ctx context.Context, username string) (*UserInfo, error) {
	g, err := r.Grants(ctx, username)
	if err != nil {
		return nil, err
	}
	info := g.Info()
	return &info, nil
}

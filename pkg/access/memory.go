package access

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]User
	baseURIs map[string]bool
	// perms is keyed by base URI, then username, then right.
	perms map[string]map[string]map[Right]bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]User),
		baseURIs: make(map[string]bool),
		perms:    make(map[string]map[string]map[Right]bool),
	}
}

// RegisterUsers inserts users, skipping existing usernames.
func (s *MemoryStore) RegisterUsers(_ context.Context, users []User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		if _, ok := s.users[u.Username]; ok {
			continue
		}
		s.users[u.Username] = u
	}
	return nil
}

// UpdateUser sets the admin flag of an existing user.
func (s *MemoryStore) UpdateUser(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, user.Username)
	}
	s.users[user.Username] = user
	return nil
}

// DeleteUser removes a user and their permissions.
func (s *MemoryStore) DeleteUser(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, username)
	}
	delete(s.users, username)
	for _, byUser := range s.perms {
		delete(byUser, username)
	}
	return nil
}

// GetUser returns a user.
func (s *MemoryStore) GetUser(_ context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, username)
	}
	return &u, nil
}

// ListUsers returns users ordered by username.
func (s *MemoryStore) ListUsers(_ context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]User, 0, len(s.users))
	for _, name := range slices.Sorted(maps.Keys(s.users)) {
		users = append(users, s.users[name])
	}
	return users, nil
}

// RegisterBaseURI registers a base URI.
func (s *MemoryStore) RegisterBaseURI(_ context.Context, baseURI string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURIs[baseURI] = true
	return nil
}

// ListBaseURIs returns base URIs in ascending order.
func (s *MemoryStore) ListBaseURIs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uniqueSorted(slices.Collect(maps.Keys(s.baseURIs))), nil
}

// BaseURIExists reports whether a base URI is registered.
func (s *MemoryStore) BaseURIExists(_ context.Context, baseURI string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseURIs[baseURI], nil
}

// GetPermissionInfo returns the permissions on a base URI.
func (s *MemoryStore) GetPermissionInfo(_ context.Context, baseURI string) (*PermissionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.baseURIs[baseURI] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBaseURI, baseURI)
	}
	info := &PermissionInfo{
		BaseURI:                      baseURI,
		UsersWithSearchPermissions:   []string{},
		UsersWithRegisterPermissions: []string{},
	}
	for _, username := range slices.Sorted(maps.Keys(s.perms[baseURI])) {
		rights := s.perms[baseURI][username]
		if rights[RightSearch] {
			info.UsersWithSearchPermissions = append(info.UsersWithSearchPermissions, username)
		}
		if rights[RightRegister] {
			info.UsersWithRegisterPermissions = append(info.UsersWithRegisterPermissions, username)
		}
		if rights[RightAdmin] {
			info.UsersWithAdminPermissions = append(info.UsersWithAdminPermissions, username)
		}
	}
	return info, nil
}

// PutPermissions replaces every permission on the base URI.
func (s *MemoryStore) PutPermissions(_ context.Context, info PermissionInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.baseURIs[info.BaseURI] {
		return fmt.Errorf("%w: %s", ErrUnknownBaseURI, info.BaseURI)
	}
	for _, username := range info.Usernames() {
		if _, ok := s.users[username]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownUser, username)
		}
	}
	byUser := make(map[string]map[Right]bool)
	for _, p := range info.Permissions() {
		if byUser[p.Username] == nil {
			byUser[p.Username] = make(map[Right]bool)
		}
		byUser[p.Username][p.Right] = true
	}
	s.perms[info.BaseURI] = byUser
	return nil
}

// Grant adds a single permission.
func (s *MemoryStore) Grant(_ context.Context, perm Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[perm.Username]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, perm.Username)
	}
	if !s.baseURIs[perm.BaseURI] {
		return fmt.Errorf("%w: %s", ErrUnknownBaseURI, perm.BaseURI)
	}
	if s.perms[perm.BaseURI] == nil {
		s.perms[perm.BaseURI] = make(map[string]map[Right]bool)
	}
	if s.perms[perm.BaseURI][perm.Username] == nil {
		s.perms[perm.BaseURI][perm.Username] = make(map[Right]bool)
	}
	s.perms[perm.BaseURI][perm.Username][perm.Right] = true
	return nil
}

// Grants returns a snapshot of the user's permissions.
func (s *MemoryStore) Grants(_ context.Context, username string) (*Grants, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, username)
	}
	g := &Grants{
		User:     u,
		BaseURIs: slices.Sorted(maps.Keys(s.baseURIs)),
	}
	for baseURI, byUser := range s.perms {
		for right, held := range byUser[username] {
			if held {
				g.Permissions = append(g.Permissions, Permission{Username: username, BaseURI: baseURI, Right: right})
			}
		}
	}
	return g, nil
}

func uniqueSorted(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)

package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSnowWhite = "s3://snow-white"
	testMrMen     = "s3://mr-men"
)

func TestMemoryStoreUsers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.RegisterUsers(ctx, []User{{Username: "grumpy"}, {Username: "evil-witch", IsAdmin: true}}))
	// Existing users are skipped, not overwritten.
	require.NoError(t, s.RegisterUsers(ctx, []User{{Username: "grumpy", IsAdmin: true}, {Username: "sleepy"}}))

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []User{
		{Username: "evil-witch", IsAdmin: true},
		{Username: "grumpy"},
		{Username: "sleepy"},
	}, users)

	require.NoError(t, s.UpdateUser(ctx, User{Username: "grumpy", IsAdmin: true}))
	u, err := s.GetUser(ctx, "grumpy")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)

	assert.ErrorIs(t, s.UpdateUser(ctx, User{Username: "dopey"}), ErrUnknownUser)
	_, err = s.GetUser(ctx, "dopey")
	assert.ErrorIs(t, err, ErrUnknownUser)

	require.NoError(t, s.RegisterBaseURI(ctx, testSnowWhite))
	require.NoError(t, s.Grant(ctx, Permission{Username: "sleepy", BaseURI: testSnowWhite, Right: RightSearch}))
	require.NoError(t, s.DeleteUser(ctx, "sleepy"))
	assert.ErrorIs(t, s.DeleteUser(ctx, "sleepy"), ErrUnknownUser)

	info, err := s.GetPermissionInfo(ctx, testSnowWhite)
	require.NoError(t, err)
	assert.Empty(t, info.UsersWithSearchPermissions, "deleting a user drops their permissions")
}

func TestMemoryStoreBaseURIs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.RegisterBaseURI(ctx, testSnowWhite))
	require.NoError(t, s.RegisterBaseURI(ctx, testMrMen))
	require.NoError(t, s.RegisterBaseURI(ctx, testSnowWhite))

	uris, err := s.ListBaseURIs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{testMrMen, testSnowWhite}, uris)

	ok, err := s.BaseURIExists(ctx, testMrMen)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.BaseURIExists(ctx, "s3://nowhere")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStorePutPermissionsOverwrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.RegisterUsers(ctx, []User{{Username: "grumpy"}, {Username: "sleepy"}, {Username: "dopey"}}))
	require.NoError(t, s.RegisterBaseURI(ctx, testSnowWhite))

	require.NoError(t, s.PutPermissions(ctx, PermissionInfo{
		BaseURI:                      testSnowWhite,
		UsersWithSearchPermissions:   []string{"grumpy", "sleepy"},
		UsersWithRegisterPermissions: []string{"sleepy"},
	}))
	require.NoError(t, s.PutPermissions(ctx, PermissionInfo{
		BaseURI:                    testSnowWhite,
		UsersWithSearchPermissions: []string{"dopey"},
	}))

	info, err := s.GetPermissionInfo(ctx, testSnowWhite)
	require.NoError(t, err)
	assert.Equal(t, &PermissionInfo{
		BaseURI:                      testSnowWhite,
		UsersWithSearchPermissions:   []string{"dopey"},
		UsersWithRegisterPermissions: []string{},
	}, info)
}

func TestMemoryStorePutPermissionsRejectsUnknown(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.RegisterUsers(ctx, []User{{Username: "grumpy"}}))
	require.NoError(t, s.RegisterBaseURI(ctx, testSnowWhite))
	require.NoError(t, s.Grant(ctx, Permission{Username: "grumpy", BaseURI: testSnowWhite, Right: RightSearch}))

	err := s.PutPermissions(ctx, PermissionInfo{BaseURI: testMrMen})
	assert.ErrorIs(t, err, ErrUnknownBaseURI)

	err = s.PutPermissions(ctx, PermissionInfo{
		BaseURI:                    testSnowWhite,
		UsersWithSearchPermissions: []string{"nobody"},
	})
	assert.ErrorIs(t, err, ErrUnknownUser)

	info, err := s.GetPermissionInfo(ctx, testSnowWhite)
	require.NoError(t, err)
	assert.Equal(t, []string{"grumpy"}, info.UsersWithSearchPermissions, "rejected update writes nothing")

	_, err = s.GetPermissionInfo(ctx, testMrMen)
	assert.ErrorIs(t, err, ErrUnknownBaseURI)
}

func TestMemoryStoreGrant(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.RegisterUsers(ctx, []User{{Username: "grumpy"}}))
	require.NoError(t, s.RegisterBaseURI(ctx, testSnowWhite))

	assert.ErrorIs(t, s.Grant(ctx, Permission{Username: "nobody", BaseURI: testSnowWhite, Right: RightSearch}), ErrUnknownUser)
	assert.ErrorIs(t, s.Grant(ctx, Permission{Username: "grumpy", BaseURI: testMrMen, Right: RightSearch}), ErrUnknownBaseURI)

	perm := Permission{Username: "grumpy", BaseURI: testSnowWhite, Right: RightRegister}
	require.NoError(t, s.Grant(ctx, perm))
	require.NoError(t, s.Grant(ctx, perm))

	g, err := s.Grants(ctx, "grumpy")
	require.NoError(t, err)
	assert.Equal(t, []Permission{perm}, g.Permissions)
	assert.Equal(t, []string{testSnowWhite}, g.BaseURIs)
}

func TestPermissionInfoExpansion(t *testing.T) {
	info := PermissionInfo{
		BaseURI:                      testSnowWhite,
		UsersWithSearchPermissions:   []string{"grumpy", "sleepy"},
		UsersWithRegisterPermissions: []string{"sleepy"},
		UsersWithAdminPermissions:    []string{"doc"},
	}
	assert.Len(t, info.Permissions(), 4)
	assert.Equal(t, []string{"doc", "grumpy", "sleepy"}, info.Usernames())
}

func TestParseRight(t *testing.T) {
	r, err := ParseRight("register")
	require.NoError(t, err)
	assert.Equal(t, RightRegister, r)

	_, err = ParseRight("delete")
	assert.ErrorIs(t, err, ErrInvalidRight)

	assert.True(t, RightAdmin.Implies(RightSearch))
	assert.True(t, RightAdmin.Implies(RightRegister))
	assert.False(t, RightSearch.Implies(RightRegister))
	assert.False(t, RightRegister.Implies(RightSearch))
}

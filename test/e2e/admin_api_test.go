//go:build integration

package e2e

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/dataset-lookup/pkg/access"
	"github.com/txn2/dataset-lookup/pkg/audit"
	"github.com/txn2/dataset-lookup/pkg/dataset"
	"github.com/txn2/dataset-lookup/test/e2e/helpers"
)

func TestAdminAPI_HiddenFromNonAdmins(t *testing.T) {
	dsn := helpers.StartPostgres(t)
	ts := helpers.NewTestServer(t, helpers.PlatformConfig(t, dsn))

	paths := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/v1/admin/users", nil},
		{http.MethodPost, "/api/v1/admin/users", []access.User{{Username: "doc"}}},
		{http.MethodGet, "/api/v1/admin/base-uris", nil},
		{http.MethodPost, "/api/v1/admin/permission/info", map[string]string{"base_uri": helpers.SnowWhite}},
		{http.MethodGet, "/api/v1/admin/audit/events", nil},
		{http.MethodGet, "/api/v1/admin/no-such-route", nil},
	}

	t.Run("anonymous callers are rejected before the admin check", func(t *testing.T) {
		resp, err := ts.Client("").Get("/api/v1/admin/users")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.Status)
	})

	for _, key := range []string{helpers.GrumpyKey, helpers.DopeyKey} {
		client := ts.Client(key)
		for _, p := range paths {
			t.Run(helpers.Users[key]+" "+p.method+" "+p.path, func(t *testing.T) {
				resp, err := client.Do(p.method, p.path, p.body)
				require.NoError(t, err)
				assert.Equal(t, http.StatusNotFound, resp.Status, string(resp.Body))
			})
		}
	}

	t.Run("admin sees unknown routes as 404 too", func(t *testing.T) {
		resp, err := ts.Client(helpers.AdminKey).Get("/api/v1/admin/no-such-route")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.Status)
	})
}

func TestAdminAPI_Users(t *testing.T) {
	dsn := helpers.StartPostgres(t)
	ts := helpers.NewTestServer(t, helpers.PlatformConfig(t, dsn))
	admin := ts.Client(helpers.AdminKey)

	resp, err := admin.RegisterUsers(access.User{Username: "dopey"}, access.User{Username: "doc", IsAdmin: true})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.Status, string(resp.Body))

	resp, err = admin.RegisterUsers(access.User{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	resp, err = admin.Get("/api/v1/admin/users")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)
	var users []access.User
	require.NoError(t, resp.Decode(&users))
	assert.Equal(t, []access.User{
		{Username: "doc", IsAdmin: true},
		{Username: "dopey"},
		{Username: "evil-witch", IsAdmin: true},
		{Username: "grumpy"},
		{Username: "sleepy"},
	}, users)

	// dopey's key now identifies a registered user.
	s, resp, err := ts.Client(helpers.DopeyKey).Summary()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, 0, s.NumberOfDatasets)

	resp, err = admin.Do(http.MethodPut, "/api/v1/admin/users/dopey", access.User{IsAdmin: true})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)

	resp, err = ts.Client(helpers.DopeyKey).Get("/api/v1/admin/users")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status, "promoted users reach the admin API")

	resp, err = admin.Do(http.MethodPut, "/api/v1/admin/users/bashful", access.User{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)

	resp, err = admin.Do(http.MethodDelete, "/api/v1/admin/users/dopey", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.Status)

	resp, err = ts.Client(helpers.DopeyKey).Get("/api/v1/me/summary")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.Status, "deleted users are unknown again")
}

func TestAdminAPI_BaseURIsAndPermissions(t *testing.T) {
	dsn := helpers.StartPostgres(t)
	ts := helpers.NewTestServer(t, helpers.PlatformConfig(t, dsn))
	admin := ts.Client(helpers.AdminKey)
	sleepy := ts.Client(helpers.SleepyKey)

	const seven = "s3://seven-dwarfs"

	resp, err := admin.RegisterBaseURI("not a uri")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	resp, err = admin.RegisterBaseURI(seven + "/")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.Status, string(resp.Body))

	resp, err = admin.Get("/api/v1/admin/base-uris")
	require.NoError(t, err)
	var uris []string
	require.NoError(t, resp.Decode(&uris))
	assert.Equal(t, []string{helpers.MrMen, seven, helpers.SnowWhite}, uris)

	t.Run("a new base uri has no permissions", func(t *testing.T) {
		info, resp, err := admin.PermissionInfo(seven)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.Status)
		assert.Empty(t, info.UsersWithSearchPermissions)
		assert.Empty(t, info.UsersWithRegisterPermissions)
	})

	t.Run("unknown base uri", func(t *testing.T) {
		_, resp, err := admin.PermissionInfo("s3://nowhere")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.Status)
	})

	t.Run("update overwrites every right", func(t *testing.T) {
		info, resp, err := admin.UpdatePermissions(access.PermissionInfo{
			BaseURI:                      seven,
			UsersWithSearchPermissions:   []string{"sleepy"},
			UsersWithRegisterPermissions: []string{"sleepy"},
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.Status, string(resp.Body))
		assert.Equal(t, []string{"sleepy"}, info.UsersWithSearchPermissions)

		doc := dataset.Info{
			UUID:            "6e1d3b43-7c44-4b42-9a57-0e1e04a4b5a1",
			URI:             seven + "/6e1d3b43-7c44-4b42-9a57-0e1e04a4b5a1",
			Type:            dataset.TypeDataset,
			Name:            "doc",
			CreatorUsername: "sleepy",
		}
		resp, err = sleepy.Register(doc)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.Status, string(resp.Body))

		// Dropping sleepy from the list removes both rights.
		info, resp, err = admin.UpdatePermissions(access.PermissionInfo{
			BaseURI:                    seven,
			UsersWithSearchPermissions: []string{"grumpy"},
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.Status)
		assert.Equal(t, []string{"grumpy"}, info.UsersWithSearchPermissions)
		assert.Empty(t, info.UsersWithRegisterPermissions)

		infos, _, err := sleepy.Search(dataset.Query{BaseURIs: []string{seven}}, nil)
		require.NoError(t, err)
		assert.Empty(t, infos)

		infos, _, err = ts.Client(helpers.GrumpyKey).Search(dataset.Query{BaseURIs: []string{seven}}, nil)
		require.NoError(t, err)
		require.Len(t, infos, 1)
		assert.Equal(t, doc.URI, infos[0].URI)
	})

	t.Run("unknown users reject the whole update", func(t *testing.T) {
		_, resp, err := admin.UpdatePermissions(access.PermissionInfo{
			BaseURI:                    seven,
			UsersWithSearchPermissions: []string{"sleepy", "bashful"},
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.Status)

		info, _, err := admin.PermissionInfo(seven)
		require.NoError(t, err)
		assert.Equal(t, []string{"grumpy"}, info.UsersWithSearchPermissions)
	})
}

func TestAdminAPI_AuditEvents(t *testing.T) {
	dsn := helpers.StartPostgres(t)
	ts := helpers.NewTestServer(t, helpers.PlatformConfig(t, dsn))
	admin := ts.Client(helpers.AdminKey)
	grumpy := ts.Client(helpers.GrumpyKey)

	for range 3 {
		_, resp, err := grumpy.Search(dataset.Query{Tags: []string{"fruit"}}, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.Status)
	}
	resp, err := ts.Client(helpers.SleepyKey).Register(dataset.Info{
		UUID: "6e1d3b43-7c44-4b42-9a57-0e1e04a4b5a1",
		URI:  helpers.SnowWhite + "/6e1d3b43-7c44-4b42-9a57-0e1e04a4b5a1",
		Type: dataset.TypeDataset,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.Status)

	params := url.Values{"username": {"grumpy"}, "action": {string(audit.ActionSearch)}, "page_size": {"2"}}
	resp, err = admin.Get("/api/v1/admin/audit/events?" + params.Encode())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status, string(resp.Body))

	var events []audit.Event
	require.NoError(t, resp.Decode(&events))
	assert.Len(t, events, 2)
	for _, e := range events {
		assert.True(t, e.Success)
		assert.NotEmpty(t, e.RequestID)
		assert.Equal(t, []any{"fruit"}, e.Parameters["tags"])
	}
	p, err := resp.Pagination()
	require.NoError(t, err)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 2, p.TotalPages)

	params = url.Values{"success": {"false"}}
	resp, err = admin.Get("/api/v1/admin/audit/events?" + params.Encode())
	require.NoError(t, err)
	require.NoError(t, resp.Decode(&events))
	require.Len(t, events, 1)
	assert.Equal(t, "sleepy", events[0].Username)
	assert.Equal(t, audit.ActionRegisterDataset, events[0].Action)

	resp, err = admin.Get("/api/v1/admin/audit/breakdown?group_by=action")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)
	var breakdown []audit.BreakdownEntry
	require.NoError(t, resp.Decode(&breakdown))
	require.NotEmpty(t, breakdown)
	assert.Equal(t, string(audit.ActionSearch), breakdown[0].Dimension)
	assert.Equal(t, 3, breakdown[0].Count)
}

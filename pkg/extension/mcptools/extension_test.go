package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/dataset-lookup/pkg/access"
	"github.com/txn2/dataset-lookup/pkg/audit"
	"github.com/txn2/dataset-lookup/pkg/auth"
	"github.com/txn2/dataset-lookup/pkg/dataset"
	"github.com/txn2/dataset-lookup/pkg/index/memory"
	"github.com/txn2/dataset-lookup/pkg/lookup"
	"github.com/txn2/dataset-lookup/pkg/plugin"
)

const (
	baseSnow = "s3://snow-white"
	baseMen  = "s3://mr-men"
	testUser = "X-Test-User"
)

func uuidN(n int) string {
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", n)
}

// newCatalog lets grumpy search both base URIs and sleepy only snow-white.
func newCatalog(t *testing.T) *lookup.Service {
	t.Helper()
	ctx := context.Background()
	store := access.NewMemoryStore()
	require.NoError(t, store.RegisterUsers(ctx, []access.User{
		{Username: "grumpy"}, {Username: "sleepy"}, {Username: "evil-witch", IsAdmin: true},
	}))
	for _, base := range []string{baseSnow, baseMen} {
		require.NoError(t, store.RegisterBaseURI(ctx, base))
	}
	require.NoError(t, store.PutPermissions(ctx, access.PermissionInfo{
		BaseURI: baseSnow, UsersWithSearchPermissions: []string{"grumpy", "sleepy"},
	}))
	require.NoError(t, store.PutPermissions(ctx, access.PermissionInfo{
		BaseURI: baseMen, UsersWithSearchPermissions: []string{"grumpy"},
	}))

	idx := memory.New()
	svc := lookup.NewService(access.NewResolver(store), idx, idx)
	for n, d := range []struct {
		base string
		tags []string
	}{
		{baseSnow, []string{"fruit"}},
		{baseSnow, []string{"evil", "fruit"}},
		{baseMen, []string{"evil"}},
	} {
		_, err := svc.Register(ctx, "evil-witch", dataset.Info{
			UUID:            uuidN(n + 1),
			URI:             d.base + "/" + uuidN(n+1),
			Type:            dataset.TypeDataset,
			Name:            fmt.Sprintf("apples-%d", n+1),
			CreatorUsername: "queen",
			Tags:            d.tags,
			Readme:          "---\ndescription: apples\n",
		})
		require.NoError(t, err)
	}
	return svc
}

func newExtension(t *testing.T) *Extension {
	t.Helper()
	ext, err := New(nil, newCatalog(t), nil)
	require.NoError(t, err)
	return ext
}

// connect opens an in-memory client session to the server built for username.
func connect(t *testing.T, ext *Extension, username string) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	t1, t2 := mcp.NewInMemoryTransports()

	serverSession, err := ext.Server(username).Connect(ctx, t1, nil)
	require.NoError(t, err)
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()
		_ = serverSession.Close()
	})
	return session
}

func callText(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return tc.Text, res.IsError
}

func TestNew(t *testing.T) {
	_, err := New(nil, nil, nil)
	assert.ErrorIs(t, err, ErrNoCatalog)

	ext, err := New(map[string]any{"name": "agents", "prefix": "tools/"}, newCatalog(t), nil)
	require.NoError(t, err)
	assert.Equal(t, "agents", ext.Name())
	assert.Equal(t, "/tools", ext.Prefix())
	assert.Equal(t, Kind, ext.Kind())
	assert.Equal(t, Version, ext.Version())
	assert.Empty(t, ext.SecretKeys())
	assert.Equal(t, "/tools", ext.Config()["prefix"])
	assert.NoError(t, ext.RegisterDataset(context.Background(), dataset.Info{}))
	assert.NotNil(t, ext.Handler())

	_, err = NewExtension(context.Background(), nil, plugin.Env{})
	assert.ErrorIs(t, err, ErrNoCatalog)
}

func TestListTools(t *testing.T) {
	session := connect(t, newExtension(t), "grumpy")
	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{ToolSearch, ToolLookup, ToolSummarize, ToolReadme}, names)
}

func TestSearchTool(t *testing.T) {
	ext := newExtension(t)

	tests := []struct {
		name  string
		user  string
		args  map[string]any
		want  int
		total int
	}{
		{name: "everything visible", user: "grumpy", args: map[string]any{}, want: 3, total: 3},
		{name: "scoped to permitted base uris", user: "sleepy", args: map[string]any{}, want: 2, total: 2},
		{name: "tags are and-ed", user: "grumpy", args: map[string]any{"tags": []string{"evil", "fruit"}}, want: 1, total: 1},
		{name: "paged", user: "grumpy", args: map[string]any{"page": 2, "page_size": 2}, want: 1, total: 3},
		{name: "forbidden base uri is empty", user: "sleepy", args: map[string]any{"base_uris": []string{baseMen}}, want: 0, total: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := callText(t, connect(t, ext, tt.user), ToolSearch, tt.args)
			require.False(t, isErr, text)

			var res dataset.Result
			require.NoError(t, json.Unmarshal([]byte(text), &res))
			assert.Len(t, res.Datasets, tt.want)
			assert.Equal(t, tt.total, res.Total)
		})
	}
}

func TestSearchToolErrors(t *testing.T) {
	ext := newExtension(t)

	text, isErr := callText(t, connect(t, ext, "grumpy"), ToolSearch, map[string]any{"sort": "colour"})
	assert.True(t, isErr)
	assert.Contains(t, text, "colour")

	text, isErr = callText(t, connect(t, ext, "stranger"), ToolSearch, map[string]any{})
	assert.True(t, isErr)
	assert.Contains(t, text, access.ErrAuthentication.Error())
}

func TestLookupTool(t *testing.T) {
	ext := newExtension(t)

	text, isErr := callText(t, connect(t, ext, "grumpy"), ToolLookup, map[string]any{"uuid": uuidN(3)})
	require.False(t, isErr, text)
	var infos []dataset.Info
	require.NoError(t, json.Unmarshal([]byte(text), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, baseMen+"/"+uuidN(3), infos[0].URI)

	text, isErr = callText(t, connect(t, ext, "sleepy"), ToolLookup, map[string]any{"uuid": uuidN(3)})
	require.False(t, isErr, text)
	assert.JSONEq(t, `[]`, text)
}

func TestSummarizeTool(t *testing.T) {
	text, isErr := callText(t, connect(t, newExtension(t), "sleepy"), ToolSummarize, map[string]any{})
	require.False(t, isErr, text)

	var summary dataset.Summary
	require.NoError(t, json.Unmarshal([]byte(text), &summary))
	assert.Equal(t, 2, summary.NumberOfDatasets)
	assert.Equal(t, map[string]int{"evil": 1, "fruit": 2}, summary.DatasetsPerTag)
	assert.Equal(t, []string{baseSnow}, summary.BaseURIs)
}

func TestReadmeTool(t *testing.T) {
	ext := newExtension(t)

	text, isErr := callText(t, connect(t, ext, "grumpy"), ToolReadme, map[string]any{"uri": baseMen + "/" + uuidN(3)})
	require.False(t, isErr, text)
	assert.Equal(t, "---\ndescription: apples\n", text)

	text, isErr = callText(t, connect(t, ext, "sleepy"), ToolReadme, map[string]any{"uri": baseMen + "/" + uuidN(3)})
	assert.True(t, isErr)
	assert.Contains(t, text, access.ErrAuthorization.Error())

	text, isErr = callText(t, connect(t, ext, "grumpy"), ToolReadme, map[string]any{"uri": baseMen + "/" + uuidN(9)})
	assert.True(t, isErr)
	assert.Contains(t, text, dataset.ErrUnknownURI.Error())
}

func TestToolCallsAudited(t *testing.T) {
	log := audit.NewMemoryLogger(0)
	ext, err := NewExtension(context.Background(), nil, plugin.Env{Catalog: newCatalog(t), Audit: log})
	require.NoError(t, err)
	mcpExt, ok := ext.(*Extension)
	require.True(t, ok)

	_, isErr := callText(t, connect(t, mcpExt, "grumpy"), ToolSearch, map[string]any{"tags": []string{"evil"}})
	require.False(t, isErr)
	_, isErr = callText(t, connect(t, mcpExt, "sleepy"), ToolReadme, map[string]any{"uri": baseMen + "/" + uuidN(3)})
	require.True(t, isErr)

	events, err := log.Query(context.Background(), audit.QueryFilter{Action: audit.ActionToolCall})
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Newest first.
	assert.Equal(t, "sleepy", events[0].Username)
	assert.Equal(t, baseMen+"/"+uuidN(3), events[0].Resource)
	assert.Equal(t, ToolReadme, events[0].Parameters["tool"])
	assert.False(t, events[0].Success)

	assert.Equal(t, "grumpy", events[1].Username)
	assert.Equal(t, ToolSearch, events[1].Parameters["tool"])
	assert.True(t, events[1].Success)
}

type userRoundTripper struct {
	user string
	base http.RoundTripper
}

func (u *userRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set(testUser, u.user)
	return u.base.RoundTrip(req) //nolint:wrapcheck // test transport
}

// TestHandlerBindsCaller drives the tools over streamable HTTP with the
// identity set by upstream middleware.
func TestHandlerBindsCaller(t *testing.T) {
	ext := newExtension(t)
	withIdentity := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithIdentity(r.Context(), &auth.Identity{Username: r.Header.Get(testUser)})
		ext.Handler().ServeHTTP(w, r.WithContext(ctx))
	})
	srv := httptest.NewServer(withIdentity)
	defer srv.Close()

	for user, want := range map[string]int{"grumpy": 3, "sleepy": 2} {
		client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0"}, nil)
		session, err := client.Connect(context.Background(), &mcp.StreamableClientTransport{
			Endpoint:   srv.URL,
			HTTPClient: &http.Client{Transport: &userRoundTripper{user: user, base: http.DefaultTransport}},
		}, nil)
		require.NoError(t, err)

		text, isErr := callText(t, session, ToolSummarize, map[string]any{})
		require.False(t, isErr, text)
		var summary dataset.Summary
		require.NoError(t, json.Unmarshal([]byte(text), &summary))
		assert.Equal(t, want, summary.NumberOfDatasets, user)
		_ = session.Close()
	}
}

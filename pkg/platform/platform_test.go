package platform

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/dataset-lookup/pkg/access"
	auditpg "github.com/txn2/dataset-lookup/pkg/audit/postgres"
	"github.com/txn2/dataset-lookup/pkg/auth"
	"github.com/txn2/dataset-lookup/pkg/dataset"
	"github.com/txn2/dataset-lookup/pkg/extension/mcptools"
	indexpg "github.com/txn2/dataset-lookup/pkg/index/postgres"
	"github.com/txn2/dataset-lookup/pkg/plugin"
)

const snowWhite = "s3://snow-white"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bootstrappedConfig(t *testing.T) *Config {
	t.Helper()
	cfg := validConfig(t)
	cfg.Plugins = append(cfg.Plugins, plugin.Def{Type: plugin.CategoryExtension, Kind: mcptools.Kind})
	cfg.Bootstrap = BootstrapConfig{
		Users: []BootstrapUser{
			{Username: "grumpy"},
			{Username: "evil-witch", IsAdmin: true},
		},
		BaseURIs: []string{snowWhite},
		Permissions: []BootstrapPermission{
			{BaseURI: snowWhite, Search: []string{"grumpy"}, Register: []string{"grumpy"}},
		},
	}
	return cfg
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background())
	assert.ErrorContains(t, err, "config is required")
}

func TestPlatform_MemoryLifecycle(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, WithConfig(bootstrappedConfig(t)), WithLogger(quietLogger()))
	require.NoError(t, err)

	assert.Nil(t, p.DB())
	assert.Nil(t, p.Scanner())
	assert.Nil(t, p.AuditLogger(), "audit is disabled by default")
	assert.NotNil(t, p.Authenticator())
	require.Len(t, p.Plugins().Extensions, 1)
	assert.Equal(t, "/mcp", p.Plugins().Extensions[0].Prefix())
	assert.Equal(t, mcptools.Version, p.Settings().Versions()["extension/mcp"])
	assert.False(t, p.Health().IsReady())

	require.NoError(t, p.Start(ctx))
	assert.True(t, p.Health().IsReady())

	admin, err := p.Service().Resolver().IsAdmin(ctx, "evil-witch")
	require.NoError(t, err)
	assert.True(t, admin)

	uuid, err := p.Service().Register(ctx, "grumpy", dataset.Info{
		UUID: "af6727bf-29c7-43dd-b42f-a5d7ede28337",
		URI:  snowWhite + "/af6727bf-29c7-43dd-b42f-a5d7ede28337",
		Type: "dataset",
		Name: "apple",
		Tags: []string{"fruit"},
	})
	require.NoError(t, err)
	assert.Equal(t, "af6727bf-29c7-43dd-b42f-a5d7ede28337", uuid)

	res, err := p.Service().Search(ctx, "grumpy", dataset.Query{FreeText: "apple"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	require.NoError(t, p.Stop(ctx))
	assert.False(t, p.Health().IsReady())
}

func TestPlatform_StartTwice(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, WithConfig(validConfig(t)), WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, p.Start(ctx))
	assert.ErrorContains(t, p.Start(ctx), "already started")
	require.NoError(t, p.Stop(ctx))
}

func TestNew_PostgresPluginWithoutDatabase(t *testing.T) {
	cfg := validConfig(t)
	cfg.Plugins[0].Kind = indexpg.Kind

	_, err := New(context.Background(), WithConfig(cfg), WithLogger(quietLogger()))
	require.Error(t, err)
	assert.ErrorIs(t, err, indexpg.ErrNoDatabase)
}

func TestNew_InjectedDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	cfg := validConfig(t)
	cfg.Audit.Enabled = true

	ctx := context.Background()
	p, err := New(ctx, WithConfig(cfg), WithDB(db), WithLogger(quietLogger()))
	require.NoError(t, err)

	assert.Same(t, db, p.DB())
	assert.IsType(t, &auditpg.Store{}, p.AuditLogger())

	require.NoError(t, p.Start(ctx))
	require.NoError(t, p.Stop(ctx))

	// The caller owns the connection, so Stop leaves it open.
	require.NoError(t, db.PingContext(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_InjectedComponents(t *testing.T) {
	store := access.NewMemoryStore()
	authn := auth.NewChainedAuthenticator()

	p, err := New(context.Background(),
		WithConfig(validConfig(t)),
		WithAccessStore(store),
		WithAuthenticator(authn),
		WithPlugins(DefaultPlugins()),
		WithLogger(quietLogger()))
	require.NoError(t, err)

	assert.Same(t, store, p.Service().Resolver().Store())
	assert.Same(t, authn, p.Authenticator())
}

func TestNew_Authenticators(t *testing.T) {
	hash, err := auth.HashKey("grumpys-key")
	require.NoError(t, err)

	cfg := validConfig(t)
	cfg.Auth.APIKeys = []auth.APIKey{{Name: "ci", Username: "robot", KeyHash: hash}}

	p, err := New(context.Background(), WithConfig(cfg), WithLogger(quietLogger()))
	require.NoError(t, err)

	issuer, err := cfg.Auth.TokenIssuer()
	require.NoError(t, err)
	token, err := issuer.Issue("grumpy", false)
	require.NoError(t, err)

	id, err := p.Authenticator().Authenticate(auth.WithToken(context.Background(), token))
	require.NoError(t, err)
	assert.Equal(t, "grumpy", id.Username)

	id, err = p.Authenticator().Authenticate(auth.WithToken(context.Background(), "grumpys-key"))
	require.NoError(t, err)
	assert.Equal(t, "robot", id.Username)

	_, err = p.Authenticator().Authenticate(auth.WithToken(context.Background(), "nope"))
	assert.Error(t, err)
}

func TestNew_BadJWTKeyFile(t *testing.T) {
	cfg := validConfig(t)
	cfg.Auth.JWT = JWTConfig{PublicKeyFile: "/nonexistent/key.pem"}

	_, err := New(context.Background(), WithConfig(cfg), WithLogger(quietLogger()))
	assert.ErrorContains(t, err, "auth.jwt")
}

func TestBootstrap_OverwritesPermissions(t *testing.T) {
	ctx := context.Background()
	store := access.NewMemoryStore()
	require.NoError(t, store.RegisterUsers(ctx, []access.User{{Username: "sleepy"}}))
	require.NoError(t, store.RegisterBaseURI(ctx, snowWhite))
	require.NoError(t, store.PutPermissions(ctx, access.PermissionInfo{
		BaseURI:                    snowWhite,
		UsersWithSearchPermissions: []string{"sleepy"},
	}))

	p, err := New(ctx, WithConfig(bootstrappedConfig(t)), WithAccessStore(store), WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, p.Start(ctx))
	defer func() { _ = p.Stop(ctx) }()

	info, err := store.GetPermissionInfo(ctx, snowWhite)
	require.NoError(t, err)
	assert.Equal(t, []string{"grumpy"}, info.UsersWithSearchPermissions)
	assert.Equal(t, []string{"grumpy"}, info.UsersWithRegisterPermissions)
}

func TestOpenDB(t *testing.T) {
	_, err := OpenDB(DatabaseConfig{})
	assert.ErrorContains(t, err, "not configured")

	// sql.Open is lazy, so no server is contacted.
	db, err := OpenDB(DatabaseConfig{DSN: "postgres://lookup@localhost:1/lookup", MaxOpenConns: 3, MaxIdleConns: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, db.Stats().MaxOpenConnections)
	require.NoError(t, db.Close())
}

func TestPlatform_CloseWithoutStart(t *testing.T) {
	p, err := New(context.Background(),
		WithConfig(validConfig(t)),
		WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

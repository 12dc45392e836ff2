package platform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/dataset-lookup/pkg/auth"
	"github.com/txn2/dataset-lookup/pkg/dataset"
	"github.com/txn2/dataset-lookup/pkg/index/memory"
	"github.com/txn2/dataset-lookup/pkg/plugin"
)

// secretPlugin reports one secret and one public setting.
type secretPlugin struct {
	*memory.Index
}

func (secretPlugin) Kind() string { return "vault" }

func (secretPlugin) Config() map[string]any {
	return map[string]any{"endpoint": "https://vault.local", "token": "s.abcdef"}
}

func (secretPlugin) SecretKeys() []string { return []string{"token"} }

func (secretPlugin) RegisterDataset(context.Context, dataset.Info) error { return nil }

func TestNewSettings(t *testing.T) {
	cfg := validConfig(t)
	cfg.Database.DSN = "postgres://lookup:hunter2@db:5432/lookup?sslmode=disable"
	cfg.Auth.APIKeys = []auth.APIKey{{Name: "ci", Username: "robot", KeyHash: "$2a$10$hash"}}

	set := &plugin.Set{Search: memory.New(), Retrieve: secretPlugin{memory.New()}}
	s, err := NewSettings(cfg, set)
	require.NoError(t, err)

	pub := s.Published()
	authSection := pub["auth"].(map[string]any)
	assert.Equal(t, plugin.Mask, authSection["jwt"].(map[string]any)["secret"])
	key := authSection["api_keys"].([]any)[0].(map[string]any)
	assert.Equal(t, plugin.Mask, key["key_hash"])
	assert.Equal(t, "robot", key["username"])

	dsn := pub["database"].(map[string]any)["dsn"].(string)
	assert.NotContains(t, dsn, "hunter2")
	assert.Contains(t, dsn, "postgres://lookup:")
	assert.Contains(t, dsn, "@db:5432/lookup")

	plugins := pub["plugins"].([]any)
	require.Len(t, plugins, 2)
	retrieve := plugins[1].(map[string]any)
	assert.Equal(t, "retrieve", retrieve["type"])
	assert.Equal(t, "vault", retrieve["kind"])
	assert.Equal(t, map[string]any{"endpoint": "https://vault.local", "token": plugin.Mask}, retrieve["config"])

	assert.Equal(t, map[string]string{
		"dataset-lookup": Version,
		"config":         CurrentConfigVersion,
		"search/memory":  memory.Version,
		"retrieve/vault": memory.Version,
	}, s.Versions())

	// The source config is untouched.
	assert.Equal(t, testSecret, cfg.Auth.JWT.Secret)
	assert.Equal(t, "$2a$10$hash", cfg.Auth.APIKeys[0].KeyHash)
}

func TestSettingsAreImmutable(t *testing.T) {
	s, err := NewSettings(validConfig(t), &plugin.Set{Search: memory.New(), Retrieve: memory.New()})
	require.NoError(t, err)

	pub := s.Published()
	pub["server"] = "tampered"
	assert.NotEqual(t, "tampered", s.Published()["server"])

	v := s.Versions()
	v["config"] = "v0"
	assert.Equal(t, CurrentConfigVersion, s.Versions()["config"])
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "", maskDSN(""))
	assert.Equal(t, plugin.Mask, maskDSN("host=db user=lookup password=hunter2"))
	assert.Equal(t, "postgres://db/lookup", maskDSN("postgres://db/lookup"))
	assert.NotContains(t, maskDSN("postgres://u:p4ss@db/lookup"), "p4ss")
}

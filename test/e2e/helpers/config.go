//go:build integration

// Package helpers provides test utilities for E2E testing.
package helpers

import (
	"os"
	"testing"
	"time"

	"github.com/txn2/dataset-lookup/pkg/auth"
	"github.com/txn2/dataset-lookup/pkg/plugin"
	"github.com/txn2/dataset-lookup/pkg/platform"
)

// API keys used across e2e tests. Each maps to the username of the same
// name in Users.
const (
	AdminKey  = "e2e-evil-witch-key"
	GrumpyKey = "e2e-grumpy-key"
	SleepyKey = "e2e-sleepy-key"
	DopeyKey  = "e2e-dopey-key"
)

// Users maps every e2e API key to its username. dopey is never registered.
var Users = map[string]string{
	AdminKey:  "evil-witch",
	GrumpyKey: "grumpy",
	SleepyKey: "sleepy",
	DopeyKey:  "dopey",
}

// Base URIs seeded by the default bootstrap.
const (
	SnowWhite = "s3://snow-white"
	MrMen     = "s3://mr-men"
)

// E2EConfig holds configuration for E2E tests.
type E2EConfig struct {
	// PostgresDSN points at an existing database. When empty a container is
	// started.
	PostgresDSN string

	Timeout time.Duration
}

// DefaultE2EConfig returns E2E configuration from environment variables with defaults.
func DefaultE2EConfig() *E2EConfig {
	return &E2EConfig{
		PostgresDSN: os.Getenv("E2E_POSTGRES_DSN"),
		Timeout:     getEnvDuration("E2E_TIMEOUT", 30*time.Second),
	}
}

// getEnvDuration returns the environment variable as a duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// PlatformConfig returns a configuration running every store on dsn: the
// postgres search and retrieve plugins, audit, the mcp extension and the
// default bootstrap.
func PlatformConfig(t *testing.T, dsn string) *platform.Config {
	t.Helper()

	keys := make([]auth.APIKey, 0, len(Users))
	for key, user := range Users {
		hash, err := auth.HashKey(key)
		if err != nil {
			t.Fatalf("hashing api key: %v", err)
		}
		keys = append(keys, auth.APIKey{Name: user, Username: user, KeyHash: hash})
	}

	cfg, err := platform.ParseConfig([]byte("logging:\n  level: warn\n"))
	if err != nil {
		t.Fatalf("parsing config: %v", err)
	}
	cfg.Server.Name = "e2e-dataset-lookup"
	cfg.Database.DSN = dsn
	cfg.Database.MigrateOnStart = true
	cfg.Auth.APIKeys = keys
	cfg.Audit.Enabled = true
	cfg.Swagger.Enabled = true
	cfg.Plugins = []plugin.Def{
		{Type: plugin.CategorySearch, Kind: "postgres"},
		{Type: plugin.CategoryRetrieve, Kind: "postgres"},
		{Type: plugin.CategoryExtension, Kind: "mcp"},
	}
	cfg.Bootstrap = platform.BootstrapConfig{
		Users: []platform.BootstrapUser{
			{Username: "evil-witch", IsAdmin: true},
			{Username: "grumpy"},
			{Username: "sleepy"},
		},
		BaseURIs: []string{SnowWhite, MrMen},
		Permissions: []platform.BootstrapPermission{
			{BaseURI: SnowWhite, Search: []string{"grumpy", "sleepy"}, Register: []string{"grumpy"}},
			{BaseURI: MrMen, Search: []string{"grumpy"}},
		},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid e2e config: %v", err)
	}
	return cfg
}

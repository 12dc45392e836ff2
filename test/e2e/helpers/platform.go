//go:build integration

package helpers

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/txn2/dataset-lookup/internal/server"
	"github.com/txn2/dataset-lookup/pkg/platform"
)

// StartPostgres returns the DSN of a database for the test: the one named by
// E2E_POSTGRES_DSN, or a fresh container.
func StartPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	if dsn := DefaultE2EConfig().PostgresDSN; dsn != "" {
		if err := WaitForPostgres(ctx, dsn, DefaultWaitConfig()); err != nil {
			t.Fatalf("waiting for postgres: %v", err)
		}
		truncateAll(t, dsn)
		return dsn
	}

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("lookup"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting postgres connection string: %v", err)
	}
	return dsn
}

// truncateAll empties every table of a shared database so tests start from
// the bootstrap state.
func truncateAll(t *testing.T, dsn string) {
	t.Helper()
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer func() { _ = db.Close() }()

	_, err = db.Exec(`DO $$ BEGIN
		IF to_regclass('public.users') IS NOT NULL THEN
			TRUNCATE users, base_uris, permissions, datasets, dataset_documents, audit_logs CASCADE;
		END IF;
	END $$`)
	if err != nil {
		t.Fatalf("truncating tables: %v", err)
	}
}

// TestServer is a started platform behind an httptest server.
type TestServer struct {
	Platform *platform.Platform
	Server   *httptest.Server
}

// URL returns the base URL of the server.
func (s *TestServer) URL() string { return s.Server.URL }

// Client returns an API client authenticating with key.
func (s *TestServer) Client(key string) *Client {
	return NewClient(s.Server.URL, key)
}

// NewTestServer starts a platform for cfg and serves it. Both are stopped
// when the test ends.
func NewTestServer(t *testing.T, cfg *platform.Config) *TestServer {
	t.Helper()
	ctx := context.Background()

	p, err := platform.New(ctx,
		platform.WithConfig(cfg),
		platform.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("creating platform: %v", err)
	}
	if err := p.Start(ctx); err != nil {
		_ = p.Close()
		t.Fatalf("starting platform: %v", err)
	}

	handler, err := server.Handler(p)
	if err != nil {
		_ = p.Stop(ctx)
		t.Fatalf("building handler: %v", err)
	}
	ts := httptest.NewServer(handler)
	t.Cleanup(func() {
		ts.Close()
		_ = p.Stop(ctx)
	})

	if err := WaitForReady(ctx, ts.URL, DefaultWaitConfig()); err != nil {
		t.Fatalf("waiting for readiness: %v", err)
	}
	return &TestServer{Platform: p, Server: ts}
}

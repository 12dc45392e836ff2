//go:build integration

package helpers

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// WaitConfig bounds a readiness poll.
type WaitConfig struct {
	Timeout  time.Duration
	Interval time.Duration
}

// DefaultWaitConfig returns default wait configuration.
func DefaultWaitConfig() WaitConfig {
	return WaitConfig{Timeout: time.Minute, Interval: 500 * time.Millisecond}
}

// poll calls check every interval until it succeeds, the timeout passes or
// ctx ends. The last check error is returned on timeout.
func poll(ctx context.Context, cfg WaitConfig, what string, check func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		err := check(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s not ready within %v: %w", what, cfg.Timeout, err)
		case <-ticker.C:
		}
	}
}

// WaitForPostgres waits until dsn accepts connections.
func WaitForPostgres(ctx context.Context, dsn string, cfg WaitConfig) error {
	return poll(ctx, cfg, "postgres", func(ctx context.Context) error {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		return db.PingContext(ctx)
	})
}

// WaitForReady waits until the readiness probe under baseURL answers 200.
func WaitForReady(ctx context.Context, baseURL string, cfg WaitConfig) error {
	client := &http.Client{Timeout: 5 * time.Second}
	return poll(ctx, cfg, baseURL, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/readyz", http.NoBody)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("readyz answered %d", resp.StatusCode)
		}
		return nil
	})
}

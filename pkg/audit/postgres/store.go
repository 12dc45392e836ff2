// Package postgres keeps the audit trail in the audit_logs table.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/txn2/dataset-lookup/pkg/audit"
)

const (
	defaultRetentionDays = 90

	// maxPrealloc bounds the slice capacity reserved from a caller's limit.
	maxPrealloc = 1000
)

var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// auditColumns is the column order of every insert and select.
var auditColumns = []string{
	"id", "timestamp", "duration_ms", "request_id", "username",
	"action", "resource", "parameters", "success", "error_message",
}

// Config configures the store.
type Config struct {
	// RetentionDays is how long events are kept. Zero means 90 days.
	RetentionDays int
	Logger        *slog.Logger
}

// Store is an audit.Logger over PostgreSQL.
type Store struct {
	db        *sql.DB
	retention int
	logger    *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a store on db. The audit_logs table comes from the migrations.
func New(db *sql.DB, cfg Config) *Store {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = defaultRetentionDays
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Store{db: db, retention: cfg.RetentionDays, logger: cfg.Logger}
}

// Log inserts one event. Parameters are stored as a JSON object.
func (s *Store) Log(ctx context.Context, e audit.Event) error {
	params := []byte("{}")
	if e.Parameters != nil {
		if b, err := json.Marshal(e.Parameters); err == nil {
			params = b
		}
	}

	query, args, err := psq.Insert("audit_logs").
		Columns(auditColumns...).
		Values(e.ID, e.Timestamp, e.DurationMS, e.RequestID, e.Username,
			string(e.Action), e.Resource, params, e.Success, e.ErrorMessage).
		ToSql()
	if err != nil {
		return fmt.Errorf("building audit insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}
	return nil
}

// where narrows qb to the events f matches.
func where(qb sq.SelectBuilder, f audit.QueryFilter) sq.SelectBuilder {
	eq := sq.Eq{}
	if f.ID != "" {
		eq["id"] = f.ID
	}
	if f.Username != "" {
		eq["username"] = f.Username
	}
	if f.Action != "" {
		eq["action"] = string(f.Action)
	}
	if f.Resource != "" {
		eq["resource"] = f.Resource
	}
	if f.Success != nil {
		eq["success"] = *f.Success
	}
	qb = within(qb, f.StartTime, f.EndTime)
	if len(eq) > 0 {
		qb = qb.Where(eq)
	}
	return qb
}

// within limits qb to a time window; nil bounds are open.
func within(qb sq.SelectBuilder, start, end *time.Time) sq.SelectBuilder {
	if start != nil {
		qb = qb.Where(sq.GtOrEq{"timestamp": *start})
	}
	if end != nil {
		qb = qb.Where(sq.LtOrEq{"timestamp": *end})
	}
	return qb
}

// Query returns matching events, newest first.
func (s *Store) Query(ctx context.Context, f audit.QueryFilter) ([]audit.Event, error) {
	qb := where(psq.Select(auditColumns...).From("audit_logs"), f).OrderBy("timestamp DESC")
	if f.Limit > 0 {
		qb = qb.Limit(uint64(f.Limit)) // #nosec G115 -- checked positive
	}
	if f.Offset > 0 {
		qb = qb.Offset(uint64(f.Offset)) // #nosec G115 -- checked positive
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building audit query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := make([]audit.Event, 0, min(max(f.Limit, 0), maxPrealloc))
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit log rows: %w", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (audit.Event, error) {
	var (
		e      audit.Event
		action string
		params []byte
	)
	if err := rows.Scan(&e.ID, &e.Timestamp, &e.DurationMS, &e.RequestID, &e.Username,
		&action, &e.Resource, &params, &e.Success, &e.ErrorMessage); err != nil {
		return e, fmt.Errorf("scanning audit log row: %w", err)
	}
	e.Action = audit.Action(action)
	if len(params) > 0 {
		// A malformed row still reports who did what.
		_ = json.Unmarshal(params, &e.Parameters)
	}
	return e, nil
}

// Count returns the number of matching events.
func (s *Store) Count(ctx context.Context, f audit.QueryFilter) (int, error) {
	query, args, err := where(psq.Select("COUNT(*)").From("audit_logs"), f).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting audit logs: %w", err)
	}
	return n, nil
}

// Breakdown groups events by f.GroupBy, largest group first.
func (s *Store) Breakdown(ctx context.Context, f audit.BreakdownFilter) ([]audit.BreakdownEntry, error) {
	dim, err := audit.ParseBreakdownDimension(string(f.GroupBy))
	if err != nil {
		return nil, err
	}

	// dim is one of the fixed column names accepted above.
	qb := psq.Select(
		fmt.Sprintf("COALESCE(%s, '') AS dimension", dim),
		"COUNT(*) AS count",
		"CAST(COUNT(*) FILTER (WHERE success = true) AS FLOAT) / COUNT(*) AS success_rate",
		"COALESCE(AVG(duration_ms), 0) AS avg_duration_ms",
	).From("audit_logs")
	qb = within(qb, f.StartTime, f.EndTime).
		GroupBy("dimension").
		OrderBy("count DESC", "dimension ASC").
		Limit(uint64(f.ClampedLimit())) // #nosec G115 -- clamped to [1, 100]

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building breakdown query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying breakdown: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []audit.BreakdownEntry{}
	for rows.Next() {
		var b audit.BreakdownEntry
		if err := rows.Scan(&b.Dimension, &b.Count, &b.SuccessRate, &b.AvgDurationMS); err != nil {
			return nil, fmt.Errorf("scanning breakdown row: %w", err)
		}
		entries = append(entries, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating breakdown rows: %w", err)
	}
	return entries, nil
}

// Cleanup deletes events past the retention period and returns how many
// were removed.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -s.retention)
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning up audit logs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// StartCleanupRoutine runs Cleanup now and then every interval until Close.
func (s *Store) StartCleanupRoutine(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			s.cleanupOnce(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *Store) cleanupOnce(ctx context.Context) {
	n, err := s.Cleanup(ctx)
	switch {
	case err != nil && ctx.Err() == nil:
		s.logger.Warn("audit cleanup failed", "error", err)
	case n > 0:
		s.logger.Info("expired audit events removed", "count", n, "retention_days", s.retention)
	}
}

// Close stops the cleanup routine, if running, and waits for it to exit.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.cancel = nil
	}
	return nil
}

// Verify interface compliance.
var _ audit.Logger = (*Store)(nil)

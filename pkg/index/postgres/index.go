// Package postgres provides PostgreSQL-backed search and retrieve plugins.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/txn2/dataset-lookup/pkg/dataset"
	"github.com/txn2/dataset-lookup/pkg/plugin"
)

// Kind is the plugin kind of the PostgreSQL plugins.
const Kind = "postgres"

// Version of the PostgreSQL plugins.
const Version = "1.0.0"

const (
	defaultQueryCapacity = 100
	textSearchConfig     = "simple"
)

// ErrNoDatabase indicates the plugin was configured without a database.
var ErrNoDatabase = errors.New("postgres plugin requires database.dsn")

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// summaryColumns lists the columns returned by searches, in scan order.
var summaryColumns = []string{
	"uuid", "uri", "base_uri", "type", "name", "creator_username",
	"frozen_at", "created_at", "number_of_items", "size_in_bytes", "tags",
}

// Index implements plugin.Search over the datasets table.
type Index struct {
	db *sql.DB
}

// New creates a PostgreSQL dataset index.
func New(db *sql.DB) *Index {
	return &Index{db: db}
}

// NewSearch is the search plugin factory.
func NewSearch(_ context.Context, _ map[string]any, env plugin.Env) (plugin.Search, error) {
	if env.DB == nil {
		return nil, ErrNoDatabase
	}
	return New(env.DB), nil
}

// Kind implements plugin.Plugin.
func (*Index) Kind() string { return Kind }

// Version implements plugin.Plugin.
func (*Index) Version() string { return Version }

// Config implements plugin.Plugin.
func (*Index) Config() map[string]any {
	return map[string]any{"text_search_config": textSearchConfig}
}

// SecretKeys implements plugin.Plugin.
func (*Index) SecretKeys() []string { return nil }

// RegisterDataset upserts the descriptor on (uuid, uri).
func (x *Index) RegisterDataset(ctx context.Context, info dataset.Info) error {
	tags := info.Tags
	if tags == nil {
		tags = []string{}
	}
	query, args, err := psq.Insert("datasets").
		Columns(append(summaryColumns[:len(summaryColumns):len(summaryColumns)], "readme", "search_text")...).
		Values(
			info.UUID, info.URI, info.BaseURI, info.Type, info.Name, info.CreatorUsername,
			info.FrozenAt, info.CreatedAt, info.NumberOfItems, info.SizeInBytes, pq.Array(tags),
			info.Readme,
			sq.Expr("to_tsvector('"+textSearchConfig+"', ?)", searchText(&info)),
		).
		Suffix(`ON CONFLICT (uuid, uri) DO UPDATE SET
			base_uri = EXCLUDED.base_uri,
			type = EXCLUDED.type,
			name = EXCLUDED.name,
			creator_username = EXCLUDED.creator_username,
			frozen_at = EXCLUDED.frozen_at,
			created_at = EXCLUDED.created_at,
			number_of_items = EXCLUDED.number_of_items,
			size_in_bytes = EXCLUDED.size_in_bytes,
			tags = EXCLUDED.tags,
			readme = EXCLUDED.readme,
			search_text = EXCLUDED.search_text,
			registered_at = NOW()`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building dataset upsert: %w", err)
	}
	if _, err := x.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting dataset: %w", err)
	}
	return nil
}

// searchText concatenates the fields covered by free text search.
func searchText(info *dataset.Info) string {
	return strings.Join([]string{
		info.Name, info.CreatorUsername, info.URI, info.Readme, strings.Join(info.Tags, " "),
	}, " ")
}

// applyFilter adds filter conditions to a SELECT builder. An empty base URI
// scope matches nothing.
func applyFilter(qb sq.SelectBuilder, f dataset.Filter) sq.SelectBuilder {
	if len(f.BaseURIs) == 0 {
		return qb.Where("FALSE")
	}
	qb = qb.Where(sq.Eq{"base_uri": f.BaseURIs})
	if len(f.CreatorUsernames) > 0 {
		qb = qb.Where(sq.Eq{"creator_username": f.CreatorUsernames})
	}
	if len(f.UUIDs) > 0 {
		qb = qb.Where(sq.Eq{"uuid": f.UUIDs})
	}
	if len(f.Tags) > 0 {
		qb = qb.Where(sq.Expr("tags @> ?", pq.Array(f.Tags)))
	}
	if tokens := dataset.Tokenize(f.FreeText); len(tokens) > 0 {
		qb = qb.Where(sq.Expr("search_text @@ to_tsquery('"+textSearchConfig+"', ?)", strings.Join(tokens, " | ")))
	}
	return qb
}

// applySort adds ORDER BY clauses. Field names are validated by
// dataset.ParseSort and match column names.
func applySort(qb sq.SelectBuilder, s dataset.Sort) sq.SelectBuilder {
	byURI := false
	for _, f := range s.OrDefault() {
		dir := "ASC"
		if f.Desc {
			dir = "DESC"
		}
		qb = qb.OrderBy(f.Field + " " + dir)
		byURI = byURI || f.Field == "uri"
	}
	if !byURI {
		qb = qb.OrderBy("uri ASC")
	}
	return qb
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Find returns matching descriptors in summary shape.
func (x *Index) Find(ctx context.Context, filter dataset.Filter, page *dataset.Page, sort dataset.Sort) ([]dataset.Info, error) {
	return find(ctx, x.db, filter, page, sort)
}

// Count returns the number of matching descriptors.
func (x *Index) Count(ctx context.Context, filter dataset.Filter) (int, error) {
	return count(ctx, x.db, filter)
}

// FindPage returns one page of matches and the total match count, both read
// inside one read-only repeatable-read transaction.
func (x *Index) FindPage(ctx context.Context, filter dataset.Filter, page dataset.Page, sort dataset.Sort) ([]dataset.Info, int, error) {
	tx, err := x.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return nil, 0, fmt.Errorf("beginning search transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	infos, err := find(ctx, tx, filter, &page, sort)
	if err != nil {
		return nil, 0, err
	}
	total, err := count(ctx, tx, filter)
	if err != nil {
		return nil, 0, err
	}
	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("committing search transaction: %w", err)
	}
	return infos, total, nil
}

func find(ctx context.Context, q querier, filter dataset.Filter, page *dataset.Page, sort dataset.Sort) ([]dataset.Info, error) {
	qb := applyFilter(psq.Select(summaryColumns...).From("datasets"), filter)
	qb = applySort(qb, sort)
	capacity := defaultQueryCapacity
	if page != nil {
		qb = qb.Limit(uint64(page.Size)).Offset(uint64(page.Offset())) //nolint:gosec // page is normalized
		capacity = page.Size
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building dataset query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying datasets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	infos := make([]dataset.Info, 0, capacity)
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dataset rows: %w", err)
	}
	return infos, nil
}

func count(ctx context.Context, q querier, filter dataset.Filter) (int, error) {
	query, args, err := applyFilter(psq.Select("COUNT(*)").From("datasets"), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting datasets: %w", err)
	}
	return n, nil
}

// Get returns the descriptor registered at uri in summary shape.
func (x *Index) Get(ctx context.Context, uri string) (*dataset.Info, error) {
	query, args, err := psq.Select(summaryColumns...).From("datasets").
		Where(sq.Eq{"uri": uri}).
		OrderBy("registered_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building dataset lookup: %w", err)
	}
	info, err := scanInfo(x.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", dataset.ErrUnknownURI, uri)
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInfo(row scanner) (dataset.Info, error) {
	var info dataset.Info
	err := row.Scan(
		&info.UUID,
		&info.URI,
		&info.BaseURI,
		&info.Type,
		&info.Name,
		&info.CreatorUsername,
		&info.FrozenAt,
		&info.CreatedAt,
		&info.NumberOfItems,
		&info.SizeInBytes,
		pq.Array(&info.Tags),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return info, err
	}
	if err != nil {
		return info, fmt.Errorf("scanning dataset row: %w", err)
	}
	if info.Tags == nil {
		info.Tags = []string{}
	}
	return info, nil
}

// Verify interface compliance.
var (
	_ plugin.Search     = (*Index)(nil)
	_ plugin.PageSearch = (*Index)(nil)
)

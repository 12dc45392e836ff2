package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/txn2/dataset-lookup/pkg/dataset"
	"github.com/txn2/dataset-lookup/pkg/plugin"
)

// Documents implements plugin.Retrieve over the dataset_documents table. It
// keeps the readme, manifest and annotations sent at registration.
type Documents struct {
	db *sql.DB
}

// NewDocuments creates a PostgreSQL document store.
func NewDocuments(db *sql.DB) *Documents {
	return &Documents{db: db}
}

// NewRetrieve is the retrieve plugin factory.
func NewRetrieve(_ context.Context, _ map[string]any, env plugin.Env) (plugin.Retrieve, error) {
	if env.DB == nil {
		return nil, ErrNoDatabase
	}
	return NewDocuments(env.DB), nil
}

// Kind implements plugin.Plugin.
func (*Documents) Kind() string { return Kind }

// Version implements plugin.Plugin.
func (*Documents) Version() string { return Version }

// Config implements plugin.Plugin.
func (*Documents) Config() map[string]any { return map[string]any{} }

// SecretKeys implements plugin.Plugin.
func (*Documents) SecretKeys() []string { return nil }

// RegisterDataset stores the documents of the dataset at info.URI,
// replacing what was stored before.
func (d *Documents) RegisterDataset(ctx context.Context, info dataset.Info) error {
	manifest := info.Manifest
	if manifest == nil {
		manifest = &dataset.Manifest{Items: map[string]dataset.ManifestItem{}}
	}
	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	annotations := info.Annotations
	if annotations == nil {
		annotations = map[string]any{}
	}
	annotationsJSON, err := json.Marshal(annotations)
	if err != nil {
		return fmt.Errorf("marshaling annotations: %w", err)
	}

	query, args, err := psq.Insert("dataset_documents").
		Columns("uri", "uuid", "readme", "manifest", "annotations").
		Values(info.URI, info.UUID, info.Readme, manifestJSON, annotationsJSON).
		Suffix(`ON CONFLICT (uri) DO UPDATE SET
			uuid = EXCLUDED.uuid,
			readme = EXCLUDED.readme,
			manifest = EXCLUDED.manifest,
			annotations = EXCLUDED.annotations`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building document upsert: %w", err)
	}
	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting documents: %w", err)
	}
	return nil
}

// Readme returns the README stored for uri.
func (d *Documents) Readme(ctx context.Context, uri string) (string, error) {
	var readme string
	if err := d.scalar(ctx, "readme", uri, &readme); err != nil {
		return "", err
	}
	return readme, nil
}

// Manifest returns the manifest stored for uri.
func (d *Documents) Manifest(ctx context.Context, uri string) (*dataset.Manifest, error) {
	var raw []byte
	if err := d.scalar(ctx, "manifest", uri, &raw); err != nil {
		return nil, err
	}
	var m dataset.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if m.Items == nil {
		m.Items = map[string]dataset.ManifestItem{}
	}
	return &m, nil
}

// Annotations returns the annotations stored for uri.
func (d *Documents) Annotations(ctx context.Context, uri string) (map[string]any, error) {
	var raw []byte
	if err := d.scalar(ctx, "annotations", uri, &raw); err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding annotations: %w", err)
	}
	return out, nil
}

// scalar reads one column of the document row for uri. column is one of a
// fixed set of names chosen by the callers above.
func (d *Documents) scalar(ctx context.Context, column, uri string, dest any) error {
	query, args, err := psq.Select(column).From("dataset_documents").
		Where("uri = ?", uri).
		ToSql()
	if err != nil {
		return fmt.Errorf("building %s query: %w", column, err)
	}
	err = d.db.QueryRowContext(ctx, query, args...).Scan(dest)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", dataset.ErrUnknownURI, uri)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", column, err)
	}
	return nil
}

// Verify interface compliance.
var _ plugin.Retrieve = (*Documents)(nil)

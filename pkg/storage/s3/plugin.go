package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/txn2/dataset-lookup/pkg/dataset"
	"github.com/txn2/dataset-lookup/pkg/plugin"
	"github.com/txn2/dataset-lookup/pkg/storage"
)

// Kind is the plugin kind of the S3 retrieve plugin.
const Kind = "s3"

// Version of the S3 retrieve plugin.
const Version = "1.0.0"

// Plugin serves readmes, manifests and annotations from the dtool layout in
// the bucket. Registration does not write to storage.
type Plugin struct {
	reader   *storage.Reader
	settings map[string]any
}

// NewPlugin creates the retrieve plugin over a reader. settings is the
// plugin's published configuration.
func NewPlugin(reader *storage.Reader, settings map[string]any) *Plugin {
	if settings == nil {
		settings = map[string]any{}
	}
	return &Plugin{reader: reader, settings: settings}
}

// ConfigFrom reads client settings from a plugin config block.
func ConfigFrom(cfg map[string]any) Config {
	return Config{
		Region:          plugin.String(cfg, "region", defaultRegion),
		Endpoint:        plugin.String(cfg, "endpoint", ""),
		AccessKeyID:     plugin.String(cfg, "access_key_id", ""),
		SecretAccessKey: plugin.String(cfg, "secret_access_key", ""),
		SessionToken:    plugin.String(cfg, "session_token", ""),
		UsePathStyle:    plugin.Bool(cfg, "use_path_style", false),
		Timeout:         plugin.Duration(cfg, "timeout", defaultTimeout),
	}
}

// LayoutFrom reads dtool key templates from a plugin config block.
func LayoutFrom(cfg map[string]any) (*storage.Layout, error) {
	return storage.NewLayout(storage.LayoutConfig{ //nolint:wrapcheck // already descriptive
		AdminKey:          plugin.String(cfg, "admin_key", ""),
		ReadmeKey:         plugin.String(cfg, "readme_key", ""),
		ManifestKey:       plugin.String(cfg, "manifest_key", ""),
		TagsPrefix:        plugin.String(cfg, "tags_prefix", ""),
		AnnotationsPrefix: plugin.String(cfg, "annotations_prefix", ""),
	})
}

// NewReaderFromConfig builds a dtool reader on an S3 client configured from
// a plugin config block.
func NewReaderFromConfig(ctx context.Context, cfg map[string]any) (*storage.Reader, error) {
	layout, err := LayoutFrom(cfg)
	if err != nil {
		return nil, err
	}
	client, err := NewFromConfig(ctx, ConfigFrom(cfg))
	if err != nil {
		return nil, err
	}
	return storage.NewReader(client, layout), nil
}

// NewRetrieve is the retrieve plugin factory.
func NewRetrieve(ctx context.Context, cfg map[string]any, _ plugin.Env) (plugin.Retrieve, error) {
	reader, err := NewReaderFromConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating s3 retrieve plugin: %w", err)
	}
	return NewPlugin(reader, cfg), nil
}

// Kind implements plugin.Plugin.
func (*Plugin) Kind() string { return Kind }

// Version implements plugin.Plugin.
func (*Plugin) Version() string { return Version }

// Config implements plugin.Plugin.
func (p *Plugin) Config() map[string]any { return p.settings }

// SecretKeys implements plugin.Plugin.
func (*Plugin) SecretKeys() []string {
	return []string{"secret_access_key", "session_token"}
}

// RegisterDataset implements plugin.Plugin. Documents are read from storage
// on demand.
func (*Plugin) RegisterDataset(context.Context, dataset.Info) error {
	return nil
}

// Readme implements plugin.Retrieve.
func (p *Plugin) Readme(ctx context.Context, uri string) (string, error) {
	readme, err := p.reader.Readme(ctx, uri)
	return readme, unknownURI(err, uri)
}

// Manifest implements plugin.Retrieve.
func (p *Plugin) Manifest(ctx context.Context, uri string) (*dataset.Manifest, error) {
	m, err := p.reader.Manifest(ctx, uri)
	return m, unknownURI(err, uri)
}

// Annotations implements plugin.Retrieve.
func (p *Plugin) Annotations(ctx context.Context, uri string) (map[string]any, error) {
	a, err := p.reader.Annotations(ctx, uri)
	return a, unknownURI(err, uri)
}

// Scan reads every dataset stored under baseURI. It lets the plugin serve
// as the base URI indexer.
func (p *Plugin) Scan(ctx context.Context, baseURI string) ([]dataset.Info, []storage.Skipped, error) {
	return p.reader.Scan(ctx, baseURI) //nolint:wrapcheck // reader errors carry the uri
}

// Close releases the storage client.
func (p *Plugin) Close() error {
	return p.reader.Provider().Close() //nolint:wrapcheck // passthrough
}

// unknownURI maps missing objects to dataset.ErrUnknownURI.
func unknownURI(err error, uri string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s: %w", dataset.ErrUnknownURI, uri, err)
	}
	return err
}

// Verify interface compliance.
var _ plugin.Retrieve = (*Plugin)(nil)

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/yosida95/uritemplate/v3"
	"gopkg.in/yaml.v3"

	"github.com/txn2/dataset-lookup/pkg/dataset"
)

// Default dtool key templates. Templates expand the variables prefix (the
// base URI key prefix, empty or ending in "/") and uuid.
const (
	DefaultAdminKey          = "{+prefix}{uuid}/dtool"
	DefaultReadmeKey         = "{+prefix}{uuid}/README.yml"
	DefaultManifestKey       = "{+prefix}{uuid}/manifest.json"
	DefaultTagsPrefix        = "{+prefix}{uuid}/tags/"
	DefaultAnnotationsPrefix = "{+prefix}{uuid}/annotations/"
)

const (
	annotationSuffix = ".json"
	uuidLength       = 36
)

var (
	// ErrInvalidReadme indicates a README that is not valid YAML.
	ErrInvalidReadme = errors.New("readme is not valid yaml")

	// ErrInvalidDataset indicates unreadable administrative metadata.
	ErrInvalidDataset = errors.New("invalid dtool dataset")
)

// LayoutConfig overrides the default key templates. Empty fields keep the
// default.
type LayoutConfig struct {
	AdminKey          string
	ReadmeKey         string
	ManifestKey       string
	TagsPrefix        string
	AnnotationsPrefix string
}

// Layout locates the parts of a dtool dataset within a bucket.
type Layout struct {
	admin       *uritemplate.Template
	readme      *uritemplate.Template
	manifest    *uritemplate.Template
	tags        *uritemplate.Template
	annotations *uritemplate.Template
}

// NewLayout parses the key templates.
func NewLayout(cfg LayoutConfig) (*Layout, error) {
	var errs []error
	parse := func(name, tmpl, def string) *uritemplate.Template {
		if tmpl == "" {
			tmpl = def
		}
		t, err := uritemplate.New(tmpl)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s template %q: %w", name, tmpl, err))
		}
		return t
	}
	l := &Layout{
		admin:       parse("admin", cfg.AdminKey, DefaultAdminKey),
		readme:      parse("readme", cfg.ReadmeKey, DefaultReadmeKey),
		manifest:    parse("manifest", cfg.ManifestKey, DefaultManifestKey),
		tags:        parse("tags", cfg.TagsPrefix, DefaultTagsPrefix),
		annotations: parse("annotations", cfg.AnnotationsPrefix, DefaultAnnotationsPrefix),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return l, nil
}

// DefaultLayout returns the standard dtool layout.
func DefaultLayout() *Layout {
	l, err := NewLayout(LayoutConfig{})
	if err != nil {
		panic(err)
	}
	return l
}

func (*Layout) key(t *uritemplate.Template, loc Location, uuid string) (string, error) {
	vars := uritemplate.Values{}
	vars.Set("prefix", uritemplate.String(loc.Prefix))
	vars.Set("uuid", uritemplate.String(uuid))
	key, err := t.Expand(vars)
	if err != nil {
		return "", fmt.Errorf("expanding key template: %w", err)
	}
	return key, nil
}

// adminMetadata is the dtool administrative metadata document.
type adminMetadata struct {
	UUID             string  `json:"uuid"`
	Type             string  `json:"type"`
	Name             string  `json:"name"`
	CreatorUsername  string  `json:"creator_username"`
	FrozenAt         float64 `json:"frozen_at"`
	CreatedAt        float64 `json:"created_at"`
	DtoolcoreVersion string  `json:"dtoolcore_version"`
}

// Skipped records a dataset left out of a scan.
type Skipped struct {
	URI    string `json:"uri"`
	Reason string `json:"reason"`
}

// Reader reads dtool datasets through a Provider.
type Reader struct {
	provider Provider
	layout   *Layout
}

// NewReader creates a reader. A nil layout uses DefaultLayout.
func NewReader(p Provider, layout *Layout) *Reader {
	if layout == nil {
		layout = DefaultLayout()
	}
	return &Reader{provider: p, layout: layout}
}

// Provider returns the underlying provider.
func (r *Reader) Provider() Provider {
	return r.provider
}

// splitURI splits a dataset URI into its base location and uuid.
func splitURI(uri string) (Location, string, error) {
	uri = strings.TrimRight(uri, "/")
	base := dataset.BaseURIOf(uri)
	if base == uri {
		return Location{}, "", fmt.Errorf("dataset uri %q has no base uri", uri)
	}
	loc, err := ParseLocation(base)
	if err != nil {
		return Location{}, "", err
	}
	return loc, path.Base(uri), nil
}

func (r *Reader) get(ctx context.Context, t *uritemplate.Template, loc Location, uuid string) ([]byte, error) {
	key, err := r.layout.key(t, loc, uuid)
	if err != nil {
		return nil, err
	}
	body, err := r.provider.GetObject(ctx, loc.Bucket, key)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return body, nil
}

// UUIDs lists the dataset uuids stored under a base URI.
func (r *Reader) UUIDs(ctx context.Context, baseURI string) ([]string, error) {
	loc, err := ParseLocation(baseURI)
	if err != nil {
		return nil, err
	}
	_, prefixes, err := r.provider.ListObjects(ctx, loc.Bucket, loc.Prefix, "/")
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", baseURI, err)
	}
	uuids := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		name := strings.TrimSuffix(strings.TrimPrefix(p, loc.Prefix), "/")
		if len(name) == uuidLength {
			uuids = append(uuids, name)
		}
	}
	return uuids, nil
}

// Readme returns the raw README of the dataset at uri.
func (r *Reader) Readme(ctx context.Context, uri string) (string, error) {
	loc, uuid, err := splitURI(uri)
	if err != nil {
		return "", err
	}
	body, err := r.get(ctx, r.layout.readme, loc, uuid)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Manifest returns the manifest of the dataset at uri.
func (r *Reader) Manifest(ctx context.Context, uri string) (*dataset.Manifest, error) {
	loc, uuid, err := splitURI(uri)
	if err != nil {
		return nil, err
	}
	body, err := r.get(ctx, r.layout.manifest, loc, uuid)
	if err != nil {
		return nil, err
	}
	var m dataset.Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest of %s: %w", uri, err)
	}
	if m.Items == nil {
		m.Items = map[string]dataset.ManifestItem{}
	}
	return &m, nil
}

// Tags returns the tags of the dataset at uri.
func (r *Reader) Tags(ctx context.Context, uri string) ([]string, error) {
	loc, uuid, err := splitURI(uri)
	if err != nil {
		return nil, err
	}
	prefix, err := r.layout.key(r.layout.tags, loc, uuid)
	if err != nil {
		return nil, err
	}
	objects, _, err := r.provider.ListObjects(ctx, loc.Bucket, prefix, "")
	if err != nil {
		return nil, fmt.Errorf("listing tags of %s: %w", uri, err)
	}
	tags := make([]string, 0, len(objects))
	for _, obj := range objects {
		if tag := strings.TrimPrefix(obj.Key, prefix); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags, nil
}

// Annotations returns the annotations of the dataset at uri, keyed by name.
func (r *Reader) Annotations(ctx context.Context, uri string) (map[string]any, error) {
	loc, uuid, err := splitURI(uri)
	if err != nil {
		return nil, err
	}
	prefix, err := r.layout.key(r.layout.annotations, loc, uuid)
	if err != nil {
		return nil, err
	}
	objects, _, err := r.provider.ListObjects(ctx, loc.Bucket, prefix, "")
	if err != nil {
		return nil, fmt.Errorf("listing annotations of %s: %w", uri, err)
	}
	out := make(map[string]any, len(objects))
	for _, obj := range objects {
		name, ok := strings.CutSuffix(strings.TrimPrefix(obj.Key, prefix), annotationSuffix)
		if !ok || name == "" {
			continue
		}
		body, err := r.provider.GetObject(ctx, loc.Bucket, obj.Key)
		if err != nil {
			return nil, fmt.Errorf("reading annotation %s: %w", name, err)
		}
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, fmt.Errorf("decoding annotation %s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// Info assembles the full descriptor of the dataset at uri. A README that is
// not valid YAML yields ErrInvalidReadme.
func (r *Reader) Info(ctx context.Context, uri string) (*dataset.Info, error) {
	loc, uuid, err := splitURI(uri)
	if err != nil {
		return nil, err
	}
	body, err := r.get(ctx, r.layout.admin, loc, uuid)
	if err != nil {
		return nil, err
	}
	var admin adminMetadata
	if err := json.Unmarshal(body, &admin); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDataset, uri, err)
	}

	readme, err := r.Readme(ctx, uri)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	var doc any
	if err := yaml.Unmarshal([]byte(readme), &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidReadme, uri, err)
	}

	manifest, err := r.Manifest(ctx, uri)
	if errors.Is(err, ErrNotFound) {
		manifest = &dataset.Manifest{Items: map[string]dataset.ManifestItem{}}
	} else if err != nil {
		return nil, err
	}
	if manifest.DtoolcoreVersion == "" {
		manifest.DtoolcoreVersion = admin.DtoolcoreVersion
	}

	tags, err := r.Tags(ctx, uri)
	if err != nil {
		return nil, err
	}
	annotations, err := r.Annotations(ctx, uri)
	if err != nil {
		return nil, err
	}

	info := &dataset.Info{
		UUID:            admin.UUID,
		URI:             loc.DatasetURI(uuid),
		BaseURI:         loc.String(),
		Type:            admin.Type,
		Name:            admin.Name,
		CreatorUsername: admin.CreatorUsername,
		FrozenAt:        admin.FrozenAt,
		CreatedAt:       admin.CreatedAt,
		NumberOfItems:   len(manifest.Items),
		Tags:            tags,
		Readme:          readme,
		Manifest:        manifest,
		Annotations:     annotations,
	}
	for _, item := range manifest.Items {
		info.SizeInBytes += item.SizeInBytes
	}
	return info, nil
}

// Scan reads every dataset under baseURI. Datasets with invalid
// administrative metadata or README are reported as skipped; storage
// failures abort the scan.
func (r *Reader) Scan(ctx context.Context, baseURI string) ([]dataset.Info, []Skipped, error) {
	loc, err := ParseLocation(baseURI)
	if err != nil {
		return nil, nil, err
	}
	uuids, err := r.UUIDs(ctx, baseURI)
	if err != nil {
		return nil, nil, err
	}

	infos := make([]dataset.Info, 0, len(uuids))
	var skipped []Skipped
	for _, uuid := range uuids {
		uri := loc.DatasetURI(uuid)
		info, err := r.Info(ctx, uri)
		switch {
		case errors.Is(err, ErrInvalidReadme), errors.Is(err, ErrInvalidDataset), errors.Is(err, ErrNotFound):
			skipped = append(skipped, Skipped{URI: uri, Reason: err.Error()})
		case err != nil:
			return nil, nil, err
		default:
			infos = append(infos, *info)
		}
	}
	return infos, skipped, nil
}

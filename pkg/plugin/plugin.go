// Package plugin defines the search, retrieve and extension plugin
// capabilities and the registry that instantiates them from configuration.
package plugin

import (
	"context"
	"net/http"

	"github.com/txn2/dataset-lookup/pkg/dataset"
)

// Category groups plugins by where they hook into the service.
type Category string

const (
	// CategorySearch is the dataset index.
	CategorySearch Category = "search"

	// CategoryRetrieve serves readmes, manifests and annotations.
	CategoryRetrieve Category = "retrieve"

	// CategoryExtension adds routes and registration hooks.
	CategoryExtension Category = "extension"
)

// Plugin is the behavior shared by every plugin category.
type Plugin interface {
	// Kind identifies the implementation, e.g. "postgres".
	Kind() string

	// Version is reported by the versions endpoint.
	Version() string

	// RegisterDataset is called for every validated, authorized registration.
	RegisterDataset(ctx context.Context, info dataset.Info) error

	// Config returns the plugin's contribution to the published settings.
	Config() map[string]any

	// SecretKeys lists Config keys that must never be shown in clear text.
	SecretKeys() []string
}

// Search is the dataset index. RegisterDataset upserts on (uuid, uri).
type Search interface {
	Plugin

	// Find returns descriptors matching filter, in summary shape. A nil page
	// returns every match.
	Find(ctx context.Context, filter dataset.Filter, page *dataset.Page, sort dataset.Sort) ([]dataset.Info, error)

	// Count returns the number of descriptors matching filter.
	Count(ctx context.Context, filter dataset.Filter) (int, error)

	// Get returns the descriptor registered at uri or dataset.ErrUnknownURI.
	Get(ctx context.Context, uri string) (*dataset.Info, error)
}

// PageSearch is implemented by search plugins that read one page and the
// total match count from the same snapshot, so Total agrees with the page
// under concurrent registration.
type PageSearch interface {
	FindPage(ctx context.Context, filter dataset.Filter, page dataset.Page, sort dataset.Sort) ([]dataset.Info, int, error)
}

// Retrieve serves dataset documents. Methods return dataset.ErrUnknownURI
// when nothing is known about uri.
type Retrieve interface {
	Plugin

	Readme(ctx context.Context, uri string) (string, error)
	Manifest(ctx context.Context, uri string) (*dataset.Manifest, error)
	Annotations(ctx context.Context, uri string) (map[string]any, error)
}

// Extension mounts additional routes under Prefix.
type Extension interface {
	Plugin

	// Name is unique among extensions.
	Name() string

	// Prefix is the path the handler is mounted at, e.g. "/mcp".
	Prefix() string

	// Handler serves requests below Prefix. Requests reaching it are
	// authenticated.
	Handler() http.Handler
}

// Catalog is the permission-scoped view of the index available to
// extensions. Every method acts on behalf of username.
type Catalog interface {
	Search(ctx context.Context, username string, q dataset.Query, page *dataset.Page, sort dataset.Sort) (*dataset.Result, error)
	Lookup(ctx context.Context, username, uuid string) ([]dataset.Info, error)
	Summarize(ctx context.Context, username string) (*dataset.Summary, error)
	Readme(ctx context.Context, username, uri string) (string, error)
}

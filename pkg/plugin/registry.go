package plugin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/txn2/dataset-lookup/pkg/audit"
)

var (
	// ErrNoSearchPlugin indicates no search plugin is enabled.
	ErrNoSearchPlugin = errors.New("no search plugin configured")

	// ErrTooManySearchPlugins indicates more than one search plugin is enabled.
	ErrTooManySearchPlugins = errors.New("too many search plugins; there can be only one")

	// ErrNoRetrievePlugin indicates no retrieve plugin is enabled.
	ErrNoRetrievePlugin = errors.New("no retrieve plugin configured")

	// ErrTooManyRetrievePlugins indicates more than one retrieve plugin is enabled.
	ErrTooManyRetrievePlugins = errors.New("too many retrieve plugins; there can be only one")

	// ErrUnknownKind indicates no factory is registered for a kind.
	ErrUnknownKind = errors.New("unknown plugin kind")
)

// Def declares one plugin instance in configuration.
type Def struct {
	Type    Category       `yaml:"type"`
	Kind    string         `yaml:"kind"`
	Enabled *bool          `yaml:"enabled"`
	Config  map[string]any `yaml:"config"`
}

// IsEnabled reports whether the definition is active. Definitions are enabled
// unless explicitly disabled.
func (d Def) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// Env carries shared dependencies into factories.
type Env struct {
	// DB is nil when no database is configured.
	DB *sql.DB

	// Catalog is available to extensions only.
	Catalog Catalog

	// Audit is nil when auditing is disabled.
	Audit audit.Logger

	Logger *slog.Logger
}

// SearchFactory creates a search plugin.
type SearchFactory func(ctx context.Context, cfg map[string]any, env Env) (Search, error)

// RetrieveFactory creates a retrieve plugin.
type RetrieveFactory func(ctx context.Context, cfg map[string]any, env Env) (Retrieve, error)

// ExtensionFactory creates an extension.
type ExtensionFactory func(ctx context.Context, cfg map[string]any, env Env) (Extension, error)

// Registry maps plugin kinds to factories.
type Registry struct {
	mu         sync.RWMutex
	search     map[string]SearchFactory
	retrieve   map[string]RetrieveFactory
	extensions map[string]ExtensionFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		search:     make(map[string]SearchFactory),
		retrieve:   make(map[string]RetrieveFactory),
		extensions: make(map[string]ExtensionFactory),
	}
}

// RegisterSearch registers a search plugin factory for kind.
func (r *Registry) RegisterSearch(kind string, f SearchFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.search[kind] = f
}

// RegisterRetrieve registers a retrieve plugin factory for kind.
func (r *Registry) RegisterRetrieve(kind string, f RetrieveFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retrieve[kind] = f
}

// RegisterExtension registers an extension factory for kind.
func (r *Registry) RegisterExtension(kind string, f ExtensionFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extensions[kind] = f
}

// Kinds returns the registered kinds of a category, sorted.
func (r *Registry) Kinds(c Category) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var kinds []string
	switch c {
	case CategorySearch:
		for k := range r.search {
			kinds = append(kinds, k)
		}
	case CategoryRetrieve:
		for k := range r.retrieve {
			kinds = append(kinds, k)
		}
	case CategoryExtension:
		for k := range r.extensions {
			kinds = append(kinds, k)
		}
	}
	sort.Strings(kinds)
	return kinds
}

// Set holds the active plugins.
type Set struct {
	Search     Search
	Retrieve   Retrieve
	Extensions []Extension
}

// All returns every active plugin, search first.
func (s *Set) All() []Plugin {
	all := []Plugin{s.Search, s.Retrieve}
	for _, e := range s.Extensions {
		all = append(all, e)
	}
	return all
}

// Validate checks that exactly one search and exactly one retrieve plugin
// are enabled among defs.
func Validate(defs []Def) error {
	var searches, retrieves int
	for _, d := range defs {
		if !d.IsEnabled() {
			continue
		}
		switch d.Type {
		case CategorySearch:
			searches++
		case CategoryRetrieve:
			retrieves++
		case CategoryExtension:
		default:
			return fmt.Errorf("plugin %q: unknown type %q", d.Kind, d.Type)
		}
	}
	var errs []error
	switch {
	case searches == 0:
		errs = append(errs, ErrNoSearchPlugin)
	case searches > 1:
		errs = append(errs, ErrTooManySearchPlugins)
	}
	switch {
	case retrieves == 0:
		errs = append(errs, ErrNoRetrievePlugin)
	case retrieves > 1:
		errs = append(errs, ErrTooManyRetrievePlugins)
	}
	return errors.Join(errs...)
}

// BuildCore validates defs and instantiates the search and retrieve plugins.
// Extensions are built separately with BuildExtensions once a Catalog exists.
func (r *Registry) BuildCore(ctx context.Context, defs []Def, env Env) (*Set, error) {
	if err := Validate(defs); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	set := &Set{}
	for _, d := range defs {
		if !d.IsEnabled() {
			continue
		}
		switch d.Type {
		case CategorySearch:
			f, ok := r.search[d.Kind]
			if !ok {
				return nil, fmt.Errorf("%w: search/%s", ErrUnknownKind, d.Kind)
			}
			p, err := f(ctx, d.Config, env)
			if err != nil {
				return nil, fmt.Errorf("creating search plugin %s: %w", d.Kind, err)
			}
			set.Search = p
		case CategoryRetrieve:
			f, ok := r.retrieve[d.Kind]
			if !ok {
				return nil, fmt.Errorf("%w: retrieve/%s", ErrUnknownKind, d.Kind)
			}
			p, err := f(ctx, d.Config, env)
			if err != nil {
				return nil, fmt.Errorf("creating retrieve plugin %s: %w", d.Kind, err)
			}
			set.Retrieve = p
		}
	}
	return set, nil
}

// BuildExtensions instantiates every enabled extension in defs and appends
// it to set. Extension names must be unique.
func (r *Registry) BuildExtensions(ctx context.Context, set *Set, defs []Def, env Env) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := map[string]bool{}
	for _, d := range defs {
		if !d.IsEnabled() || d.Type != CategoryExtension {
			continue
		}
		f, ok := r.extensions[d.Kind]
		if !ok {
			return fmt.Errorf("%w: extension/%s", ErrUnknownKind, d.Kind)
		}
		ext, err := f(ctx, d.Config, env)
		if err != nil {
			return fmt.Errorf("creating extension %s: %w", d.Kind, err)
		}
		if seen[ext.Name()] {
			return fmt.Errorf("extension %s registered twice", ext.Name())
		}
		seen[ext.Name()] = true
		set.Extensions = append(set.Extensions, ext)
	}
	return nil
}

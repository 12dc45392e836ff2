// Package memory provides an in-process dataset index that serves as both
// the search and the retrieve plugin.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/txn2/dataset-lookup/pkg/dataset"
	"github.com/txn2/dataset-lookup/pkg/plugin"
)

// Kind is the plugin kind of the in-memory index.
const Kind = "memory"

// Version of the in-memory index.
const Version = "1.0.0"

type key struct {
	uuid string
	uri  string
}

// entry is a stored descriptor. seq orders registrations; a re-registration
// takes a new seq.
type entry struct {
	info dataset.Info
	seq  uint64
}

// Index keeps dataset descriptors in memory, keyed by (uuid, uri). When one
// uri is registered under several uuids, lookups by uri return the most
// recently registered copy.
type Index struct {
	mu       sync.RWMutex
	datasets map[key]entry
	seq      uint64
}

// New creates an empty index.
func New() *Index {
	return &Index{datasets: make(map[key]entry)}
}

// NewSearch is the search plugin factory.
func NewSearch(_ context.Context, _ map[string]any, _ plugin.Env) (plugin.Search, error) {
	return New(), nil
}

// NewRetrieve is the retrieve plugin factory. It keeps its own copy of every
// registered descriptor.
func NewRetrieve(_ context.Context, _ map[string]any, _ plugin.Env) (plugin.Retrieve, error) {
	return New(), nil
}

// Kind implements plugin.Plugin.
func (*Index) Kind() string { return Kind }

// Version implements plugin.Plugin.
func (*Index) Version() string { return Version }

// Config implements plugin.Plugin.
func (*Index) Config() map[string]any { return map[string]any{} }

// SecretKeys implements plugin.Plugin.
func (*Index) SecretKeys() []string { return nil }

// RegisterDataset inserts the descriptor or replaces the one with the same
// (uuid, uri).
func (x *Index) RegisterDataset(_ context.Context, info dataset.Info) error {
	info.Tags = slices.Clone(info.Tags)
	x.mu.Lock()
	defer x.mu.Unlock()
	x.seq++
	x.datasets[key{uuid: info.UUID, uri: info.URI}] = entry{info: info, seq: x.seq}
	return nil
}

// matching returns every match in summary shape, sorted.
func (x *Index) matching(filter dataset.Filter, sort dataset.Sort) []dataset.Info {
	x.mu.RLock()
	matches := make([]dataset.Info, 0)
	for _, e := range x.datasets {
		if filter.Match(&e.info) {
			matches = append(matches, e.info.Summary())
		}
	}
	x.mu.RUnlock()

	slices.SortFunc(matches, func(a, b dataset.Info) int { return sort.Compare(&a, &b) })
	return matches
}

// Find returns matching descriptors in summary shape.
func (x *Index) Find(_ context.Context, filter dataset.Filter, page *dataset.Page, sort dataset.Sort) ([]dataset.Info, error) {
	matches := x.matching(filter, sort)
	if page != nil {
		start, end := page.Bounds(len(matches))
		matches = matches[start:end]
	}
	return matches, nil
}

// FindPage returns one page of matches and the total, read under one lock.
func (x *Index) FindPage(_ context.Context, filter dataset.Filter, page dataset.Page, sort dataset.Sort) ([]dataset.Info, int, error) {
	matches := x.matching(filter, sort)
	start, end := page.Bounds(len(matches))
	return matches[start:end], len(matches), nil
}

// Count returns the number of matching descriptors.
func (x *Index) Count(_ context.Context, filter dataset.Filter) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n := 0
	for _, e := range x.datasets {
		if filter.Match(&e.info) {
			n++
		}
	}
	return n, nil
}

// Get returns the descriptor registered at uri in summary shape.
func (x *Index) Get(_ context.Context, uri string) (*dataset.Info, error) {
	info, ok := x.byURI(uri)
	if !ok {
		return nil, fmt.Errorf("%w: %s", dataset.ErrUnknownURI, uri)
	}
	summary := info.Summary()
	return &summary, nil
}

// Readme returns the README registered with the dataset at uri.
func (x *Index) Readme(_ context.Context, uri string) (string, error) {
	info, ok := x.byURI(uri)
	if !ok {
		return "", fmt.Errorf("%w: %s", dataset.ErrUnknownURI, uri)
	}
	return info.Readme, nil
}

// Manifest returns the manifest registered with the dataset at uri.
func (x *Index) Manifest(_ context.Context, uri string) (*dataset.Manifest, error) {
	info, ok := x.byURI(uri)
	if !ok {
		return nil, fmt.Errorf("%w: %s", dataset.ErrUnknownURI, uri)
	}
	if info.Manifest == nil {
		return &dataset.Manifest{Items: map[string]dataset.ManifestItem{}}, nil
	}
	return info.Manifest, nil
}

// Annotations returns the annotations registered with the dataset at uri.
func (x *Index) Annotations(_ context.Context, uri string) (map[string]any, error) {
	info, ok := x.byURI(uri)
	if !ok {
		return nil, fmt.Errorf("%w: %s", dataset.ErrUnknownURI, uri)
	}
	if info.Annotations == nil {
		return map[string]any{}, nil
	}
	return info.Annotations, nil
}

// Len returns the number of stored descriptors.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.datasets)
}

// byURI returns the most recently registered descriptor at uri.
func (x *Index) byURI(uri string) (dataset.Info, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var latest entry
	found := false
	for k, e := range x.datasets {
		if k.uri == uri && (!found || e.seq > latest.seq) {
			latest, found = e, true
		}
	}
	return latest.info, found
}

// Verify interface compliance.
var (
	_ plugin.Search     = (*Index)(nil)
	_ plugin.PageSearch = (*Index)(nil)
	_ plugin.Retrieve   = (*Index)(nil)
)

package lookup

import (
	"context"
	"fmt"
	"slices"

	"github.com/txn2/dataset-lookup/pkg/access"
	"github.com/txn2/dataset-lookup/pkg/dataset"
	"github.com/txn2/dataset-lookup/pkg/plugin"
	"github.com/txn2/dataset-lookup/pkg/storage"
)

// Service answers dataset requests on behalf of a user. Every read is scoped
// to the base URIs the user may search.
type Service struct {
	resolver *access.Resolver
	search   plugin.Search
	retrieve plugin.Retrieve
	hooks    []plugin.Plugin
}

// NewService creates a service over the resolver and the core plugins.
func NewService(resolver *access.Resolver, search plugin.Search, retrieve plugin.Retrieve) *Service {
	return &Service{resolver: resolver, search: search, retrieve: retrieve}
}

// AddRegistrationHooks appends plugins that receive every registered
// dataset after the retrieve plugin and before the search plugin. Call
// before serving.
func (s *Service) AddRegistrationHooks(hooks ...plugin.Plugin) {
	s.hooks = append(s.hooks, hooks...)
}

// Resolver returns the permission resolver.
func (s *Service) Resolver() *access.Resolver {
	return s.resolver
}

// Search returns one page of the datasets matching q that username may see.
// A nil page returns every match.
func (s *Service) Search(ctx context.Context, username string, q dataset.Query, page *dataset.Page, sort dataset.Sort) (*dataset.Result, error) {
	allowed, err := s.resolver.AllowedBaseURIs(ctx, username, access.RightSearch)
	if err != nil {
		return nil, err
	}
	return s.searchScoped(ctx, q, allowed, page, sort)
}

func (s *Service) searchScoped(ctx context.Context, q dataset.Query, allowed []string, page *dataset.Page, sort dataset.Sort) (*dataset.Result, error) {
	scoped, ok := Scope(q, allowed)
	if !ok {
		return &dataset.Result{Datasets: []dataset.Info{}}, nil
	}
	filter := scoped.Filter()

	var (
		infos []dataset.Info
		total int
	)
	if page == nil {
		all, err := s.search.Find(ctx, filter, nil, sort)
		if err != nil {
			return nil, fmt.Errorf("searching datasets: %w", err)
		}
		infos, total = all, len(all)
	} else {
		p := *page
		p.Normalize()
		var err error
		if infos, total, err = s.findPage(ctx, filter, p, sort); err != nil {
			return nil, err
		}
	}
	if infos == nil {
		infos = []dataset.Info{}
	}
	return &dataset.Result{Datasets: infos, Total: total}, nil
}

// findPage reads a page and the total from one snapshot when the search
// plugin supports it. Otherwise the two are separate reads and the total may
// differ from the page under concurrent registration.
func (s *Service) findPage(ctx context.Context, filter dataset.Filter, page dataset.Page, sort dataset.Sort) ([]dataset.Info, int, error) {
	if ps, ok := s.search.(plugin.PageSearch); ok {
		infos, total, err := ps.FindPage(ctx, filter, page, sort)
		if err != nil {
			return nil, 0, fmt.Errorf("searching datasets: %w", err)
		}
		return infos, total, nil
	}
	infos, err := s.search.Find(ctx, filter, &page, sort)
	if err != nil {
		return nil, 0, fmt.Errorf("searching datasets: %w", err)
	}
	total, err := s.search.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("counting datasets: %w", err)
	}
	return infos, total, nil
}

// Lookup returns every copy of the dataset uuid that username may see.
func (s *Service) Lookup(ctx context.Context, username, uuid string) ([]dataset.Info, error) {
	res, err := s.Search(ctx, username, dataset.Query{UUIDs: []string{uuid}}, nil, nil)
	if err != nil {
		return nil, err
	}
	return res.Datasets, nil
}

// Summarize aggregates every dataset username may see. The visible set is
// read once and aggregated in memory.
func (s *Service) Summarize(ctx context.Context, username string) (*dataset.Summary, error) {
	res, err := s.Search(ctx, username, dataset.Query{}, nil, nil)
	if err != nil {
		return nil, err
	}
	summary := dataset.Summarize(res.Datasets)
	return &summary, nil
}

// authorize checks that username may read the dataset at uri and that it is
// registered. Unregistered users get access.ErrAuthentication, users without
// search rights on the base URI access.ErrAuthorization and unknown URIs
// dataset.ErrUnknownURI.
func (s *Service) authorize(ctx context.Context, username, uri string) (*dataset.Info, error) {
	ok, err := s.resolver.MayAccess(ctx, username, uri)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", access.ErrAuthorization, uri)
	}
	info, err := s.search.Get(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("getting dataset: %w", err)
	}
	return info, nil
}

// Get returns the dataset registered at uri.
func (s *Service) Get(ctx context.Context, username, uri string) (*dataset.Info, error) {
	return s.authorize(ctx, username, uri)
}

// Readme returns the README of the dataset at uri.
func (s *Service) Readme(ctx context.Context, username, uri string) (string, error) {
	if _, err := s.authorize(ctx, username, uri); err != nil {
		return "", err
	}
	readme, err := s.retrieve.Readme(ctx, uri)
	if err != nil {
		return "", fmt.Errorf("retrieving readme: %w", err)
	}
	return readme, nil
}

// Manifest returns the manifest of the dataset at uri.
func (s *Service) Manifest(ctx context.Context, username, uri string) (*dataset.Manifest, error) {
	if _, err := s.authorize(ctx, username, uri); err != nil {
		return nil, err
	}
	m, err := s.retrieve.Manifest(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("retrieving manifest: %w", err)
	}
	return m, nil
}

// Annotations returns the annotations of the dataset at uri.
func (s *Service) Annotations(ctx context.Context, username, uri string) (map[string]any, error) {
	if _, err := s.authorize(ctx, username, uri); err != nil {
		return nil, err
	}
	a, err := s.retrieve.Annotations(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("retrieving annotations: %w", err)
	}
	return a, nil
}

// UserInfo returns the user and the base URIs they hold rights on.
func (s *Service) UserInfo(ctx context.Context, username string) (*access.UserInfo, error) {
	return s.resolver.UserInfo(ctx, username)
}

// Register validates info and upserts it on behalf of username. It returns
// the dataset uuid. Nothing is written when validation or authorization
// fails. The uri must sit directly under the base uri; a blank base uri is
// derived from it.
func (s *Service) Register(ctx context.Context, username string, info dataset.Info) (string, error) {
	g, err := s.resolver.Grants(ctx, username)
	if err != nil {
		return "", err
	}
	if err := info.Validate(); err != nil {
		return "", err
	}
	info.Normalize()
	if parent := dataset.BaseURIOf(info.URI); info.BaseURI != parent {
		return "", fmt.Errorf("%w: uri %s is not under base uri %s", dataset.ErrValidation, info.URI, info.BaseURI)
	}

	switch {
	case g.User.IsAdmin && !slices.Contains(g.BaseURIs, info.BaseURI):
		return "", fmt.Errorf("%w: %s", access.ErrUnknownBaseURI, info.BaseURI)
	case !slices.Contains(g.Allowed(access.RightRegister), info.BaseURI):
		return "", fmt.Errorf("%w: %s", access.ErrAuthorization, info.BaseURI)
	}

	if err := s.registerPlugins(ctx, info); err != nil {
		return "", err
	}
	return info.UUID, nil
}

// registerPlugins writes info to the retrieve plugin, then the hooks, then
// the search plugin. Every read goes through the search plugin, so a failed
// registration never leaves a new dataset visible.
func (s *Service) registerPlugins(ctx context.Context, info dataset.Info) error {
	if err := s.retrieve.RegisterDataset(ctx, info); err != nil {
		return fmt.Errorf("storing dataset documents: %w", err)
	}
	for _, h := range s.hooks {
		if err := h.RegisterDataset(ctx, info); err != nil {
			return fmt.Errorf("registering dataset with %s plugin: %w", h.Kind(), err)
		}
	}
	if err := s.search.RegisterDataset(ctx, info); err != nil {
		return fmt.Errorf("indexing dataset: %w", err)
	}
	return nil
}

// Scanner reads every dataset stored under a base URI.
type Scanner interface {
	Scan(ctx context.Context, baseURI string) ([]dataset.Info, []storage.Skipped, error)
}

// IndexReport summarizes one base URI indexing run.
type IndexReport struct {
	BaseURI    string            `json:"base_uri"`
	Registered []string          `json:"registered"`
	Skipped    []storage.Skipped `json:"skipped"`
}

// IndexBaseURI registers every valid dataset the scanner finds under a
// registered base URI. Datasets failing validation, or stored under another
// base URI, are skipped.
func (s *Service) IndexBaseURI(ctx context.Context, baseURI string, scanner Scanner) (*IndexReport, error) {
	exists, err := s.resolver.Store().BaseURIExists(ctx, baseURI)
	if err != nil {
		return nil, fmt.Errorf("checking base uri: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", access.ErrUnknownBaseURI, baseURI)
	}

	infos, skipped, err := scanner.Scan(ctx, baseURI)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", baseURI, err)
	}

	report := &IndexReport{BaseURI: baseURI, Registered: []string{}, Skipped: skipped}
	if report.Skipped == nil {
		report.Skipped = []storage.Skipped{}
	}
	for _, info := range infos {
		if err := info.Validate(); err != nil {
			report.Skipped = append(report.Skipped, storage.Skipped{URI: info.URI, Reason: err.Error()})
			continue
		}
		info.Normalize()
		if info.BaseURI != baseURI {
			report.Skipped = append(report.Skipped, storage.Skipped{
				URI:    info.URI,
				Reason: fmt.Sprintf("stored under base uri %s", info.BaseURI),
			})
			continue
		}
		if err := s.registerPlugins(ctx, info); err != nil {
			return report, err
		}
		report.Registered = append(report.Registered, info.URI)
	}
	return report, nil
}

// Verify interface compliance.
var _ plugin.Catalog = (*Service)(nil)

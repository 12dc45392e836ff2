package platform

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/txn2/dataset-lookup/pkg/access"
	accesspg "github.com/txn2/dataset-lookup/pkg/access/postgres"
	"github.com/txn2/dataset-lookup/pkg/audit"
	auditpg "github.com/txn2/dataset-lookup/pkg/audit/postgres"
	"github.com/txn2/dataset-lookup/pkg/auth"
	"github.com/txn2/dataset-lookup/pkg/database/migrate"
	"github.com/txn2/dataset-lookup/pkg/extension/mcptools"
	"github.com/txn2/dataset-lookup/pkg/health"
	"github.com/txn2/dataset-lookup/pkg/index/memory"
	indexpg "github.com/txn2/dataset-lookup/pkg/index/postgres"
	"github.com/txn2/dataset-lookup/pkg/lookup"
	"github.com/txn2/dataset-lookup/pkg/plugin"
	"github.com/txn2/dataset-lookup/pkg/storage/s3"
)

// auditCleanupInterval is how often expired audit events are purged.
const auditCleanupInterval = 24 * time.Hour

// Platform is the assembled service: stores, plugins, the lookup service and
// the ambient components the HTTP layer needs.
type Platform struct {
	config    *Config
	logger    *slog.Logger
	lifecycle *Lifecycle

	db      *sql.DB
	ownsDB  bool
	store   access.Store
	plugins *plugin.Set
	service *lookup.Service
	scanner lookup.Scanner

	auditLogger   audit.Logger
	auditStore    *auditpg.Store
	authenticator auth.Authenticator
	health        *health.Checker
	settings      *Settings
}

// DefaultPlugins returns a registry holding every built-in plugin kind.
func DefaultPlugins() *plugin.Registry {
	r := plugin.NewRegistry()
	r.RegisterSearch(memory.Kind, memory.NewSearch)
	r.RegisterSearch(indexpg.Kind, indexpg.NewSearch)
	r.RegisterRetrieve(memory.Kind, memory.NewRetrieve)
	r.RegisterRetrieve(indexpg.Kind, indexpg.NewRetrieve)
	r.RegisterRetrieve(s3.Kind, s3.NewRetrieve)
	r.RegisterExtension(mcptools.Kind, mcptools.NewExtension)
	return r
}

// New creates a new platform instance. The configuration must already be
// valid.
func New(ctx context.Context, opts ...Option) (*Platform, error) {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Config == nil {
		return nil, errors.New("config is required")
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	p := &Platform{
		config:    options.Config,
		logger:    options.Logger,
		lifecycle: NewLifecycle(options.Logger),
		health:    health.NewChecker(),
	}

	if err := p.initializeComponents(ctx, options); err != nil {
		p.closeOwned()
		return nil, fmt.Errorf("initializing components: %w", err)
	}
	return p, nil
}

// initializeComponents initializes all platform components.
func (p *Platform) initializeComponents(ctx context.Context, opts *Options) error {
	if err := p.initDatabase(opts); err != nil {
		return err
	}
	p.initAccess(opts)
	p.initAudit(opts)
	if err := p.initPlugins(ctx, opts); err != nil {
		return err
	}
	if err := p.initAuth(opts); err != nil {
		return err
	}

	settings, err := NewSettings(p.config, p.plugins)
	if err != nil {
		return err
	}
	p.settings = settings
	p.registerLifecycle()
	return nil
}

// initDatabase adopts the injected connection or opens one from config.
func (p *Platform) initDatabase(opts *Options) error {
	if opts.DB != nil {
		p.db = opts.DB
	} else if p.config.Database.DSN != "" {
		db, err := OpenDB(p.config.Database)
		if err != nil {
			return err
		}
		p.db = db
		p.ownsDB = true
	}
	if p.db != nil {
		p.health.AddDependency("database", p.db)
	}
	return nil
}

// OpenDB opens a PostgreSQL connection pool sized by cfg.
func OpenDB(cfg DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database.dsn is not configured")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// initAccess picks the user and permission store.
func (p *Platform) initAccess(opts *Options) {
	switch {
	case opts.AccessStore != nil:
		p.store = opts.AccessStore
	case p.db != nil:
		p.store = accesspg.New(p.db)
	default:
		p.logger.Warn("no database configured; users and permissions are kept in memory")
		p.store = access.NewMemoryStore()
	}
}

// initPlugins builds the core plugins, the lookup service on top of them and
// then the extensions, which see the service as their catalog.
func (p *Platform) initPlugins(ctx context.Context, opts *Options) error {
	registry := opts.Plugins
	if registry == nil {
		registry = DefaultPlugins()
	}
	env := plugin.Env{DB: p.db, Audit: p.auditLogger, Logger: p.logger}

	set, err := registry.BuildCore(ctx, p.config.Plugins, env)
	if err != nil {
		return fmt.Errorf("building plugins: %w", err)
	}
	p.plugins = set
	p.service = lookup.NewService(access.NewResolver(p.store), set.Search, set.Retrieve)

	env.Catalog = p.service
	if err := registry.BuildExtensions(ctx, set, p.config.Plugins, env); err != nil {
		return fmt.Errorf("building extensions: %w", err)
	}
	for _, ext := range set.Extensions {
		p.service.AddRegistrationHooks(ext)
	}

	if sc, ok := set.Retrieve.(lookup.Scanner); ok {
		p.scanner = sc
	}
	p.logger.Info("plugins ready",
		"search", set.Search.Kind(),
		"retrieve", set.Retrieve.Kind(),
		"extensions", len(set.Extensions))
	return nil
}

// initAudit selects the audit logger. Audit is off unless enabled.
func (p *Platform) initAudit(opts *Options) {
	switch {
	case opts.AuditLogger != nil:
		p.auditLogger = opts.AuditLogger
	case !p.config.Audit.Enabled:
	case p.db != nil:
		p.auditStore = auditpg.New(p.db, auditpg.Config{
			RetentionDays: p.config.Audit.RetentionDays,
			Logger:        p.logger,
		})
		p.auditLogger = p.auditStore
	default:
		p.auditLogger = audit.NewMemoryLogger(0)
	}
}

// initAuth builds the authenticator chain: JWT first, then API keys.
func (p *Platform) initAuth(opts *Options) error {
	if opts.Authenticator != nil {
		p.authenticator = opts.Authenticator
		return nil
	}

	var chain []auth.Authenticator
	if p.config.Auth.JWT.Enabled() {
		cfg, err := p.config.Auth.JWT.Load()
		if err != nil {
			return err
		}
		jwtAuth, err := auth.NewJWTAuthenticator(cfg)
		if err != nil {
			return fmt.Errorf("creating JWT authenticator: %w", err)
		}
		chain = append(chain, jwtAuth)
	}
	if len(p.config.Auth.APIKeys) > 0 {
		keyAuth, err := auth.NewAPIKeyAuthenticator(p.config.Auth.APIKeys)
		if err != nil {
			return fmt.Errorf("creating API key authenticator: %w", err)
		}
		chain = append(chain, keyAuth)
	}
	if len(chain) == 0 {
		return errors.New("no authenticator configured")
	}
	p.authenticator = auth.NewChainedAuthenticator(chain...)
	return nil
}

// registerLifecycle orders startup: schema, audit cleanup, seed data,
// readiness. Stop runs in reverse, so an owned database closes last.
func (p *Platform) registerLifecycle() {
	if p.ownsDB {
		p.lifecycle.RegisterCloser("database", p.db)
	}
	if p.config.Database.MigrateOnStart && p.db != nil {
		p.lifecycle.OnStart("migrate", func(context.Context) error {
			return migrate.Run(p.db, p.logger)
		})
	}
	if store := p.auditStore; store != nil {
		p.lifecycle.OnStart("audit-cleanup", func(context.Context) error {
			store.StartCleanupRoutine(auditCleanupInterval)
			return nil
		})
		p.lifecycle.RegisterCloser("audit", store)
	}
	p.lifecycle.OnStart("bootstrap", p.bootstrap)
	for _, pl := range p.plugins.All() {
		if c, ok := pl.(io.Closer); ok {
			p.lifecycle.RegisterCloser(pl.Kind()+" plugin", c)
		}
	}
	p.lifecycle.OnStart("ready", func(context.Context) error {
		p.health.SetReady()
		return nil
	})
}

// bootstrap applies the configured seed users, base URIs and permissions.
func (p *Platform) bootstrap(ctx context.Context) error {
	b := p.config.Bootstrap
	if len(b.Users) == 0 && len(b.BaseURIs) == 0 && len(b.Permissions) == 0 {
		return nil
	}

	users := make([]access.User, 0, len(b.Users))
	for _, u := range b.Users {
		users = append(users, access.User{Username: u.Username, IsAdmin: u.IsAdmin})
	}
	if err := p.store.RegisterUsers(ctx, users); err != nil {
		return fmt.Errorf("bootstrapping users: %w", err)
	}
	for _, u := range users {
		if err := p.store.UpdateUser(ctx, u); err != nil {
			return fmt.Errorf("bootstrapping user %s: %w", u.Username, err)
		}
	}
	for _, base := range b.BaseURIs {
		if err := p.store.RegisterBaseURI(ctx, base); err != nil {
			return fmt.Errorf("bootstrapping base uri %s: %w", base, err)
		}
	}
	for _, perm := range b.Permissions {
		err := p.store.PutPermissions(ctx, access.PermissionInfo{
			BaseURI:                      perm.BaseURI,
			UsersWithSearchPermissions:   perm.Search,
			UsersWithRegisterPermissions: perm.Register,
		})
		if err != nil {
			return fmt.Errorf("bootstrapping permissions on %s: %w", perm.BaseURI, err)
		}
	}
	p.logger.Info("bootstrap applied",
		"users", len(users), "base_uris", len(b.BaseURIs), "permissions", len(b.Permissions))
	return nil
}

// closeOwned releases what New opened when initialization fails.
func (p *Platform) closeOwned() {
	if p.plugins != nil {
		for _, pl := range p.plugins.All() {
			if c, ok := pl.(io.Closer); ok {
				_ = c.Close()
			}
		}
	}
	if p.ownsDB && p.db != nil {
		_ = p.db.Close()
	}
}

// Start runs migrations and bootstrap, then marks the platform ready.
func (p *Platform) Start(ctx context.Context) error {
	return p.lifecycle.Start(ctx)
}

// Stop drains readiness and releases every resource.
func (p *Platform) Stop(ctx context.Context) error {
	p.health.SetDraining()
	return p.lifecycle.Stop(ctx)
}

// Close releases a platform that was never started; a started platform is
// stopped instead.
func (p *Platform) Close() error {
	if p.lifecycle.IsStarted() {
		return p.Stop(context.Background())
	}
	p.closeOwned()
	return nil
}

// Config returns the platform configuration.
func (p *Platform) Config() *Config { return p.config }

// Logger returns the platform logger.
func (p *Platform) Logger() *slog.Logger { return p.logger }

// DB returns the database connection, or nil.
func (p *Platform) DB() *sql.DB { return p.db }

// Service returns the lookup service.
func (p *Platform) Service() *lookup.Service { return p.service }

// Plugins returns the active plugins.
func (p *Platform) Plugins() *plugin.Set { return p.plugins }

// Scanner returns the base URI indexer, or nil when the retrieve plugin
// cannot scan storage.
func (p *Platform) Scanner() lookup.Scanner { return p.scanner }

// AuditLogger returns the audit logger, or nil when audit is disabled.
func (p *Platform) AuditLogger() audit.Logger { return p.auditLogger }

// Authenticator returns the request authenticator.
func (p *Platform) Authenticator() auth.Authenticator { return p.authenticator }

// Health returns the readiness checker.
func (p *Platform) Health() *health.Checker { return p.health }

// Settings returns the published settings.
func (p *Platform) Settings() *Settings { return p.settings }

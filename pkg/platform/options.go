package platform

import (
	"database/sql"
	"log/slog"

	"github.com/txn2/dataset-lookup/pkg/access"
	"github.com/txn2/dataset-lookup/pkg/audit"
	"github.com/txn2/dataset-lookup/pkg/auth"
	"github.com/txn2/dataset-lookup/pkg/plugin"
)

// Options overrides what New would otherwise build from Config. Unset
// fields are built from configuration.
type Options struct {
	Config *Config

	// DB is opened from database.dsn when nil. A supplied DB is not closed
	// by the platform.
	DB *sql.DB

	// AccessStore is PostgreSQL-backed with a database and in-memory without.
	AccessStore access.Store

	// AuditLogger defaults per audit.enabled and the database.
	AuditLogger audit.Logger

	// Authenticator chains the configured API keys and JWT validation.
	Authenticator auth.Authenticator

	// Plugins defaults to DefaultPlugins.
	Plugins *plugin.Registry

	Logger *slog.Logger
}

// Option sets one of the Options.
type Option func(*Options)

// WithConfig supplies the parsed configuration.
func WithConfig(cfg *Config) Option {
	return func(o *Options) {
		o.Config = cfg
	}
}

// WithDB shares an open database. The caller keeps ownership.
func WithDB(db *sql.DB) Option {
	return func(o *Options) {
		o.DB = db
	}
}

// WithAccessStore replaces the user and permission store.
func WithAccessStore(store access.Store) Option {
	return func(o *Options) {
		o.AccessStore = store
	}
}

// WithAuditLogger replaces the audit trail.
func WithAuditLogger(logger audit.Logger) Option {
	return func(o *Options) {
		o.AuditLogger = logger
	}
}

// WithAuthenticator replaces request authentication.
func WithAuthenticator(authn auth.Authenticator) Option {
	return func(o *Options) {
		o.Authenticator = authn
	}
}

// WithPlugins replaces the registry plugin kinds are resolved from.
func WithPlugins(reg *plugin.Registry) Option {
	return func(o *Options) {
		o.Plugins = reg
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// Package platform assembles the dataset lookup service from configuration.
package platform

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/txn2/dataset-lookup/pkg/audit"
	"github.com/txn2/dataset-lookup/pkg/auth"
	"github.com/txn2/dataset-lookup/pkg/plugin"
)

// Config holds the complete service configuration.
type Config struct {
	APIVersion string          `yaml:"apiVersion"`
	Server     ServerConfig    `yaml:"server"`
	Logging    LoggingConfig   `yaml:"logging"`
	Database   DatabaseConfig  `yaml:"database"`
	Auth       AuthConfig      `yaml:"auth"`
	Audit      audit.Config    `yaml:"audit"`
	Swagger    SwaggerConfig   `yaml:"swagger"`
	Bootstrap  BootstrapConfig `yaml:"bootstrap"`
	Plugins    []plugin.Def    `yaml:"plugins"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Name            string        `yaml:"name"`
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DatabaseConfig configures the PostgreSQL connection. An empty DSN runs the
// service without a database.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MigrateOnStart  bool          `yaml:"migrate_on_start"`
}

// AuthConfig configures authentication.
type AuthConfig struct {
	JWT     JWTConfig     `yaml:"jwt"`
	APIKeys []auth.APIKey `yaml:"api_keys"`
}

// JWTConfig configures bearer tokens. Secret selects HS256, key files RS256.
type JWTConfig struct {
	Secret         string        `yaml:"secret"`
	PublicKeyFile  string        `yaml:"public_key_file"`
	PrivateKeyFile string        `yaml:"private_key_file"`
	Issuer         string        `yaml:"issuer"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
}

// Enabled reports whether any signing material is configured.
func (c JWTConfig) Enabled() bool {
	return c.Secret != "" || c.PublicKeyFile != "" || c.PrivateKeyFile != ""
}

// Load reads key files and returns the authenticator configuration.
func (c JWTConfig) Load() (auth.JWTConfig, error) {
	cfg := auth.JWTConfig{Issuer: c.Issuer, TTL: c.TokenTTL}
	if c.Secret != "" {
		cfg.Secret = []byte(c.Secret)
	}
	if err := cfg.LoadRSAKeys(c.PublicKeyFile, c.PrivateKeyFile); err != nil {
		return auth.JWTConfig{}, fmt.Errorf("auth.jwt: %w", err)
	}
	return cfg, nil
}

// TokenIssuer creates an issuer for the token command.
func (c AuthConfig) TokenIssuer() (*auth.TokenIssuer, error) {
	if !c.JWT.Enabled() {
		return nil, errors.New("auth.jwt is not configured")
	}
	cfg, err := c.JWT.Load()
	if err != nil {
		return nil, err
	}
	issuer, err := auth.NewTokenIssuer(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating token issuer: %w", err)
	}
	return issuer, nil
}

// SwaggerConfig configures the API documentation UI.
type SwaggerConfig struct {
	Enabled bool `yaml:"enabled"`
}

// BootstrapConfig seeds users, base URIs and permissions on start. Listed
// entries are authoritative: admin flags are set as given and permissions
// replace those stored for the base URI.
type BootstrapConfig struct {
	Users       []BootstrapUser       `yaml:"users"`
	BaseURIs    []string              `yaml:"base_uris"`
	Permissions []BootstrapPermission `yaml:"permissions"`
}

// BootstrapUser declares one user.
type BootstrapUser struct {
	Username string `yaml:"username"`
	IsAdmin  bool   `yaml:"is_admin"`
}

// BootstrapPermission declares the permissions on one base URI.
type BootstrapPermission struct {
	BaseURI  string   `yaml:"base_uri"`
	Search   []string `yaml:"search"`
	Register []string `yaml:"register"`
}

// LoadConfig loads configuration from a file.
// The path is expected to come from command line arguments, controlled by the administrator.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration, expanding ${VAR} references and
// applying defaults.
func ParseConfig(data []byte) (*Config, error) {
	if _, err := checkConfigVersion(peekVersion(data)); err != nil {
		return nil, err
	}

	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

const (
	defaultServerName      = "dataset-lookup"
	defaultAddress         = ":8080"
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultShutdownTimeout = 15 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	defaultRetentionDays   = 90
)

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.APIVersion == "" {
		cfg.APIVersion = CurrentConfigVersion
	}
	if cfg.Server.Name == "" {
		cfg.Server.Name = defaultServerName
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = defaultAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = defaultMaxOpenConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = defaultConnMaxLifetime
	}
	if cfg.Auth.JWT.Issuer == "" {
		cfg.Auth.JWT.Issuer = defaultServerName
	}
	if cfg.Auth.JWT.TokenTTL == 0 {
		cfg.Auth.JWT.TokenTTL = auth.DefaultTokenTTL
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = defaultRetentionDays
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		add("logging.level: %w", err)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		add("logging.format must be json or text, got %q", c.Logging.Format)
	}

	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		add("database.max_idle_conns (%d) exceeds max_open_conns (%d)", c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Database.MigrateOnStart && c.Database.DSN == "" {
		add("database.migrate_on_start requires database.dsn")
	}

	if !c.Auth.JWT.Enabled() && len(c.Auth.APIKeys) == 0 {
		add("auth: configure auth.jwt or auth.api_keys")
	}
	for i, k := range c.Auth.APIKeys {
		if k.Name == "" || k.Username == "" || k.KeyHash == "" {
			add("auth.api_keys[%d]: name, username and key_hash are required", i)
		}
	}

	if c.Audit.RetentionDays < 0 {
		add("audit.retention_days must not be negative")
	}

	if err := plugin.Validate(c.Plugins); err != nil {
		add("plugins: %w", err)
	}
	for _, d := range c.Plugins {
		if d.IsEnabled() && d.Kind == "postgres" && c.Database.DSN == "" {
			add("plugins: %s/postgres requires database.dsn", d.Type)
		}
	}

	for i, p := range c.Bootstrap.Permissions {
		if p.BaseURI == "" {
			add("bootstrap.permissions[%d]: base_uri is required", i)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %w", errors.Join(errs...))
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return level, nil
}

// NewLogger builds the process logger described by cfg.
func NewLogger(cfg LoggingConfig, w io.Writer) *slog.Logger {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

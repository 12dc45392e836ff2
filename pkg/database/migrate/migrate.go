// Package migrate applies the embedded PostgreSQL schema with golang-migrate.
package migrate

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrations embed.FS

// migrator is the part of *migrate.Migrate a Runner drives.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
}

// openMigrator is replaced in tests.
var openMigrator = func(db *sql.DB) (migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("creating postgres driver: %w", err)
	}
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("creating migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}

// Status describes the schema of a database.
type Status struct {
	// Version is 0 on a database that was never migrated.
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
	// Latest is the highest version shipped with the binary.
	Latest uint `json:"latest"`
}

// Current reports whether the database is at the latest clean version.
func (s Status) Current() bool { return !s.Dirty && s.Version == s.Latest }

// Runner moves a database between schema versions.
type Runner struct {
	m      migrator
	logger *slog.Logger
}

// New creates a runner for db.
func New(db *sql.DB, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := openMigrator(db)
	if err != nil {
		return nil, err
	}
	return &Runner{m: m, logger: logger}, nil
}

// Run brings db up to the latest version.
func Run(db *sql.DB, logger *slog.Logger) error {
	r, err := New(db, logger)
	if err != nil {
		return err
	}
	return r.Up()
}

// Up applies every pending migration. Applying nothing is not an error.
func (r *Runner) Up() error {
	if err := ignoreNoChange(r.m.Up()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	st, err := r.Status()
	if err != nil {
		return err
	}
	if st.Dirty {
		r.logger.Warn("database schema is dirty", "version", st.Version)
	} else {
		r.logger.Info("database schema up to date", "version", st.Version)
	}
	return nil
}

// Down reverts every migration, dropping all data.
func (r *Runner) Down() error {
	if err := ignoreNoChange(r.m.Down()); err != nil {
		return fmt.Errorf("rolling back migrations: %w", err)
	}
	return nil
}

// Steps applies n migrations, or reverts -n when n is negative.
func (r *Runner) Steps(n int) error {
	if err := ignoreNoChange(r.m.Steps(n)); err != nil {
		return fmt.Errorf("stepping migrations: %w", err)
	}
	return nil
}

// Status reads the current version.
func (r *Runner) Status() (Status, error) {
	latest, err := Latest()
	if err != nil {
		return Status{}, err
	}
	version, dirty, err := r.m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return Status{}, fmt.Errorf("getting migration version: %w", err)
	}
	return Status{Version: version, Dirty: dirty, Latest: latest}, nil
}

// Latest returns the highest embedded migration version.
func Latest() (uint, error) {
	entries, err := fs.ReadDir(migrations, "migrations")
	if err != nil {
		return 0, fmt.Errorf("reading embedded migrations: %w", err)
	}
	var latest uint
	for _, e := range entries {
		prefix, _, ok := strings.Cut(e.Name(), "_")
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(prefix, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("migration %s: %w", e.Name(), err)
		}
		latest = max(latest, uint(v))
	}
	return latest, nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

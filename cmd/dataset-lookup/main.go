// Package main provides the entry point for the dataset-lookup server and its
// administration commands.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/txn2/dataset-lookup/pkg/platform"
)

const usage = `Usage: dataset-lookup [-config FILE] COMMAND [ARGS]

Commands:
  serve                                  run the HTTP server
  migrate up|down|version|steps N        manage the database schema
  user add [-admin] NAME...              register users
  user update [-admin] NAME              set or clear the admin flag
  user delete NAME                       remove a user and their permissions
  user list                              list users
  base-uri add URI                       register a base URI
  base-uri list                          list base URIs
  base-uri index URI                     register every dataset stored under URI
  permission search|register URI NAME... grant a right on a base URI
  token [-forever] NAME                  issue a bearer token
  config show                            print the effective settings, secrets masked
  config versions                        print component versions
  version                                print the version

Flags:
`

// defaultConfigEnv names the environment variable holding the config path.
const defaultConfigEnv = "DATASET_LOOKUP_CONFIG"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cli carries what every command needs.
type cli struct {
	cfg    *platform.Config
	logger *slog.Logger
	out    io.Writer

	// opts are appended to the platform options; tests inject stores here.
	opts []platform.Option
}

func run(ctx context.Context, args []string, out io.Writer, opts ...platform.Option) error {
	fs := flag.NewFlagSet("dataset-lookup", flag.ContinueOnError)
	fs.SetOutput(out)
	defaultConfig := os.Getenv(defaultConfigEnv)
	if defaultConfig == "" {
		defaultConfig = "config.yaml"
	}
	configPath := fs.String("config", defaultConfig, "Path to configuration file (env "+defaultConfigEnv+")")
	fs.Usage = func() {
		fmt.Fprint(out, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("missing command")
	}
	cmd, cmdArgs := rest[0], rest[1:]

	if cmd == "version" {
		fmt.Fprintf(out, "dataset-lookup version %s\n", platform.Version)
		return nil
	}

	cfg, err := platform.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := platform.NewLogger(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	c := &cli{cfg: cfg, logger: logger, out: out, opts: opts}
	switch cmd {
	case "serve":
		return c.serve(ctx)
	case "migrate":
		return c.migrate(ctx, cmdArgs)
	case "user":
		return c.user(ctx, cmdArgs)
	case "base-uri":
		return c.baseURI(ctx, cmdArgs)
	case "permission":
		return c.permission(ctx, cmdArgs)
	case "token":
		return c.token(cmdArgs)
	case "config":
		return c.config(ctx, cmdArgs)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// platform assembles the service from the loaded configuration.
func (c *cli) platform(ctx context.Context) (*platform.Platform, error) {
	opts := append([]platform.Option{
		platform.WithConfig(c.cfg),
		platform.WithLogger(c.logger),
	}, c.opts...)
	p, err := platform.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating platform: %w", err)
	}
	return p, nil
}

// persistent assembles the service and fails when it has no database, since
// changes made against the in-memory store would be lost on exit.
func (c *cli) persistent(ctx context.Context) (*platform.Platform, error) {
	p, err := c.platform(ctx)
	if err != nil {
		return nil, err
	}
	if p.DB() == nil {
		_ = p.Close()
		return nil, errors.New("this command requires database.dsn")
	}
	return p, nil
}

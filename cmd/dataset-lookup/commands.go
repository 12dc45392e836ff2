package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/txn2/dataset-lookup/internal/server"
	"github.com/txn2/dataset-lookup/pkg/access"
	"github.com/txn2/dataset-lookup/pkg/database/migrate"
	"github.com/txn2/dataset-lookup/pkg/platform"
)

func (c *cli) serve(ctx context.Context) error {
	p, err := c.platform(ctx)
	if err != nil {
		return err
	}
	s, err := server.New(p)
	if err != nil {
		_ = p.Close()
		return err
	}
	return s.Run(ctx)
}

func (c *cli) migrate(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: migrate up|down|version|steps N")
	}
	p, err := c.persistent(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()
	r, err := migrate.New(p.DB(), c.logger)
	if err != nil {
		return err
	}

	switch args[0] {
	case "up":
		err = r.Up()
	case "down":
		err = r.Down()
	case "steps":
		if len(args) != 2 {
			return errors.New("usage: migrate steps N")
		}
		n, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			return fmt.Errorf("steps: %w", convErr)
		}
		err = r.Steps(n)
	case "version":
	default:
		return fmt.Errorf("unknown migrate command %q", args[0])
	}
	if err != nil {
		return err
	}

	st, err := r.Status()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "schema version %d of %d (dirty: %t)\n", st.Version, st.Latest, st.Dirty)
	return nil
}

// withStore runs fn against the persistent user and permission store.
func (c *cli) withStore(ctx context.Context, fn func(access.Store) error) error {
	p, err := c.persistent(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()
	return fn(p.Service().Resolver().Store())
}

func (c *cli) user(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: user add|update|delete|list")
	}
	sub, rest := args[0], args[1:]

	fs := flag.NewFlagSet("user "+sub, flag.ContinueOnError)
	fs.SetOutput(c.out)
	admin := fs.Bool("admin", false, "Grant admin rights")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	names := fs.Args()

	switch sub {
	case "add":
		if len(names) == 0 {
			return errors.New("usage: user add [-admin] NAME...")
		}
		users := make([]access.User, 0, len(names))
		for _, n := range names {
			users = append(users, access.User{Username: n, IsAdmin: *admin})
		}
		return c.withStore(ctx, func(s access.Store) error {
			if err := s.RegisterUsers(ctx, users); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "registered %d user(s)\n", len(users))
			return nil
		})
	case "update":
		if len(names) != 1 {
			return errors.New("usage: user update [-admin] NAME")
		}
		return c.withStore(ctx, func(s access.Store) error {
			return s.UpdateUser(ctx, access.User{Username: names[0], IsAdmin: *admin})
		})
	case "delete":
		if len(names) != 1 {
			return errors.New("usage: user delete NAME")
		}
		return c.withStore(ctx, func(s access.Store) error {
			return s.DeleteUser(ctx, names[0])
		})
	case "list":
		return c.withStore(ctx, func(s access.Store) error {
			users, err := s.ListUsers(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "USERNAME\tADMIN")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%t\n", u.Username, u.IsAdmin)
			}
			return tw.Flush()
		})
	default:
		return fmt.Errorf("unknown user command %q", sub)
	}
}

func (c *cli) baseURI(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: base-uri add|list|index")
	}
	switch args[0] {
	case "add":
		if len(args) != 2 {
			return errors.New("usage: base-uri add URI")
		}
		return c.withStore(ctx, func(s access.Store) error {
			return s.RegisterBaseURI(ctx, args[1])
		})
	case "list":
		return c.withStore(ctx, func(s access.Store) error {
			uris, err := s.ListBaseURIs(ctx)
			if err != nil {
				return err
			}
			for _, u := range uris {
				fmt.Fprintln(c.out, u)
			}
			return nil
		})
	case "index":
		if len(args) != 2 {
			return errors.New("usage: base-uri index URI")
		}
		return c.index(ctx, args[1])
	default:
		return fmt.Errorf("unknown base-uri command %q", args[0])
	}
}

func (c *cli) index(ctx context.Context, baseURI string) error {
	p, err := c.persistent(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	if p.Scanner() == nil {
		return fmt.Errorf("retrieve plugin %q cannot scan storage", p.Plugins().Retrieve.Kind())
	}
	report, err := p.Service().IndexBaseURI(ctx, baseURI, p.Scanner())
	if err != nil {
		return err
	}
	return writeJSON(c.out, report)
}

func (c *cli) permission(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return errors.New("usage: permission search|register URI NAME...")
	}
	right, err := access.ParseRight(args[0])
	if err != nil || right == access.RightAdmin {
		return fmt.Errorf("%w: %s", access.ErrInvalidRight, args[0])
	}
	baseURI, names := args[1], args[2:]
	return c.withStore(ctx, func(s access.Store) error {
		for _, n := range names {
			if err := s.Grant(ctx, access.Permission{Username: n, BaseURI: baseURI, Right: right}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *cli) token(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(c.out)
	forever := fs.Bool("forever", false, "Issue a token that never expires")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: token [-forever] NAME")
	}

	issuer, err := c.cfg.Auth.TokenIssuer()
	if err != nil {
		return err
	}
	token, err := issuer.Issue(fs.Arg(0), *forever)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, token)
	return nil
}

func (c *cli) config(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: config show|versions")
	}
	p, err := c.platform(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	switch args[0] {
	case "show":
		enc := yaml.NewEncoder(c.out)
		enc.SetIndent(2)
		if err := enc.Encode(p.Settings().Published()); err != nil {
			return fmt.Errorf("encoding settings: %w", err)
		}
		return enc.Close()
	case "versions":
		return printVersions(c.out, p.Settings())
	default:
		return fmt.Errorf("unknown config command %q", args[0])
	}
}

func printVersions(w io.Writer, s *platform.Settings) error {
	versions := s.Versions()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range slices.Sorted(maps.Keys(versions)) {
		fmt.Fprintf(tw, "%s\t%s\n", name, versions[name])
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Package server exposes an assembled platform over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/txn2/dataset-lookup/internal/apidocs" // registers the swagger document
	"github.com/txn2/dataset-lookup/pkg/admin"
	"github.com/txn2/dataset-lookup/pkg/api"
	dlhttp "github.com/txn2/dataset-lookup/pkg/http"
	"github.com/txn2/dataset-lookup/pkg/platform"
)

// Server serves the REST API, the admin API, health probes and every
// extension route of a platform.
type Server struct {
	platform *platform.Platform
	logger   *slog.Logger
	http     *http.Server
}

// New creates a server for p. It fails when two extensions claim the same
// route prefix.
func New(p *platform.Platform) (*Server, error) {
	handler, err := Handler(p)
	if err != nil {
		return nil, err
	}
	cfg := p.Config().Server
	return &Server{
		platform: p,
		logger:   p.Logger(),
		http: &http.Server{
			Addr:              cfg.Address,
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadTimeout,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
	}, nil
}

// Handler builds the HTTP routing for p.
func Handler(p *platform.Platform) (http.Handler, error) {
	logger := p.Logger()
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", p.Health().LivenessHandler())
	mux.Handle("GET /readyz", p.Health().ReadinessHandler())
	if p.Config().Swagger.Enabled {
		mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	}

	authed := dlhttp.RequireAuth(p.Authenticator())
	auditor := api.NewAuditor(p.AuditLogger(), logger)

	mux.Handle("/api/v1/", authed(api.NewHandler(api.Deps{
		Service: p.Service(),
		Config:  p.Settings(),
		Auditor: auditor,
		Logger:  logger,
	})))
	mux.Handle("/api/v1/admin/", authed(admin.NewHandler(admin.Deps{
		Service:     p.Service(),
		AuditLogger: p.AuditLogger(),
		Auditor:     auditor,
		Scanner:     p.Scanner(),
		Logger:      logger,
	})))

	seen := map[string]string{}
	for _, ext := range p.Plugins().Extensions {
		prefix := strings.TrimSuffix(ext.Prefix(), "/")
		if prefix == "" || prefix == "/api" || strings.HasPrefix(prefix, "/api/") {
			return nil, fmt.Errorf("extension %s: prefix %q is reserved", ext.Name(), ext.Prefix())
		}
		if other, ok := seen[prefix]; ok {
			return nil, fmt.Errorf("extension %s: prefix %q already used by %s", ext.Name(), prefix, other)
		}
		seen[prefix] = ext.Name()

		h := authed(ext.Handler())
		mux.Handle(prefix, h)
		mux.Handle(prefix+"/", h)
		logger.Info("extension mounted", "name", ext.Name(), "prefix", prefix)
	}

	return dlhttp.Chain(mux, dlhttp.RequestID(), dlhttp.Logging(logger)), nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve starts the platform, serves on ln until ctx is done or the listener
// fails, then drains in-flight requests and stops the platform within the
// configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.platform.Start(ctx); err != nil {
		_ = ln.Close()
		return fmt.Errorf("starting platform: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()
	s.logger.Info("listening", "address", ln.Addr().String())

	var serveErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("serving http: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.platform.Config().Server.ShutdownTimeout)
	defer cancel()

	s.platform.Health().SetDraining()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		serveErr = errors.Join(serveErr, fmt.Errorf("shutting down http server: %w", err))
	}
	if err := s.platform.Stop(shutdownCtx); err != nil {
		serveErr = errors.Join(serveErr, fmt.Errorf("stopping platform: %w", err))
	}
	return serveErr
}

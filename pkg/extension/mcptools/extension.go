// Package mcptools exposes the dataset catalog to agents as MCP tools over
// streamable HTTP.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/dataset-lookup/pkg/audit"
	"github.com/txn2/dataset-lookup/pkg/auth"
	"github.com/txn2/dataset-lookup/pkg/dataset"
	dlhttp "github.com/txn2/dataset-lookup/pkg/http"
	"github.com/txn2/dataset-lookup/pkg/plugin"
)

const (
	// Kind is the plugin kind.
	Kind = "mcp"

	// Version is the extension version.
	Version = "1.0.0"

	defaultName   = "mcp"
	defaultPrefix = "/mcp"
)

// ErrNoCatalog indicates the extension was built without a catalog.
var ErrNoCatalog = errors.New("mcp extension requires a catalog")

// Extension serves the catalog tools. Every request gets its own stateless
// MCP server bound to the caller's username.
type Extension struct {
	name         string
	prefix       string
	instructions string
	catalog      plugin.Catalog
	audit        audit.Logger
	logger       *slog.Logger
	handler      http.Handler
}

// New creates the extension from its plugin config.
func New(cfg map[string]any, catalog plugin.Catalog, logger *slog.Logger) (*Extension, error) {
	if catalog == nil {
		return nil, ErrNoCatalog
	}
	if logger == nil {
		logger = slog.Default()
	}
	prefix := "/" + strings.Trim(plugin.String(cfg, "prefix", defaultPrefix), "/")
	e := &Extension{
		name:         plugin.String(cfg, "name", defaultName),
		prefix:       prefix,
		instructions: plugin.String(cfg, "instructions", defaultInstructions),
		catalog:      catalog,
		logger:       logger,
	}
	e.handler = mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return e.server(auth.Username(r.Context()), dlhttp.GetRequestID(r.Context()))
	}, &mcp.StreamableHTTPOptions{Stateless: true, JSONResponse: true})
	return e, nil
}

// NewExtension is the plugin factory.
func NewExtension(_ context.Context, cfg map[string]any, env plugin.Env) (plugin.Extension, error) {
	e, err := New(cfg, env.Catalog, env.Logger)
	if err != nil {
		return nil, err
	}
	e.audit = env.Audit
	return e, nil
}

const defaultInstructions = "Search and inspect the datasets you are permitted to see. " +
	"Start with summarize_datasets, narrow with search_datasets and read a dataset's README with get_readme."

// Name implements plugin.Extension.
func (e *Extension) Name() string { return e.name }

// Prefix implements plugin.Extension.
func (e *Extension) Prefix() string { return e.prefix }

// Handler implements plugin.Extension.
func (e *Extension) Handler() http.Handler { return e.handler }

// Kind implements plugin.Plugin.
func (*Extension) Kind() string { return Kind }

// Version implements plugin.Plugin.
func (*Extension) Version() string { return Version }

// RegisterDataset implements plugin.Plugin. The tools read through the
// catalog, so there is nothing to keep in sync.
func (*Extension) RegisterDataset(context.Context, dataset.Info) error { return nil }

// Config implements plugin.Plugin.
func (e *Extension) Config() map[string]any {
	return map[string]any{"name": e.name, "prefix": e.prefix}
}

// SecretKeys implements plugin.Plugin.
func (*Extension) SecretKeys() []string { return nil }

// Server builds an MCP server whose tools act on behalf of username.
func (e *Extension) Server(username string) *mcp.Server {
	return e.server(username, "")
}

func (e *Extension) server(username, requestID string) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{Name: "dataset-lookup", Version: Version}, &mcp.ServerOptions{
		Instructions: e.instructions,
	})
	t := &tools{
		catalog:   e.catalog,
		username:  username,
		requestID: requestID,
		audit:     e.audit,
		logger:    e.logger,
	}
	t.register(s)
	return s
}

// Verify interface compliance.
var _ plugin.Extension = (*Extension)(nil)

// jsonResult renders v as the text content of a tool result.
func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encoding result: %w", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

// errorResult reports err inside the tool result, where MCP clients expect
// tool failures.
func errorResult(err error) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{ //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError, not as Go errors
		Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + err.Error()}},
		IsError: true,
	}, nil, nil
}

package mcptools

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/dataset-lookup/pkg/access"
	"github.com/txn2/dataset-lookup/pkg/audit"
	"github.com/txn2/dataset-lookup/pkg/dataset"
	"github.com/txn2/dataset-lookup/pkg/plugin"
)

// Tool names.
const (
	ToolSearch    = "search_datasets"
	ToolLookup    = "lookup_dataset"
	ToolSummarize = "summarize_datasets"
	ToolReadme    = "get_readme"
)

// errInternal replaces errors whose detail must not reach the client.
var errInternal = errors.New("internal error")

type tools struct {
	catalog   plugin.Catalog
	username  string
	requestID string
	audit     audit.Logger
	logger    *slog.Logger
}

type searchInput struct {
	BaseURIs         []string `json:"base_uris,omitempty" jsonschema:"only datasets stored under one of these base URIs"`
	CreatorUsernames []string `json:"creator_usernames,omitempty" jsonschema:"only datasets created by one of these users"`
	UUIDs            []string `json:"uuids,omitempty" jsonschema:"only datasets with one of these uuids"`
	Tags             []string `json:"tags,omitempty" jsonschema:"only datasets carrying every one of these tags"`
	FreeText         string   `json:"free_text,omitempty" jsonschema:"words matched against name, README and tags"`
	Page             int      `json:"page,omitempty" jsonschema:"1-based page number"`
	PageSize         int      `json:"page_size,omitempty" jsonschema:"results per page, at most 100"`
	Sort             string   `json:"sort,omitempty" jsonschema:"comma separated fields, prefix with - for descending, e.g. -frozen_at,name"`
}

type lookupInput struct {
	UUID string `json:"uuid" jsonschema:"the dataset uuid"`
}

type readmeInput struct {
	URI string `json:"uri" jsonschema:"the dataset URI, e.g. s3://bucket/uuid"`
}

type summarizeInput struct{}

func (t *tools) register(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name:        ToolSearch,
		Description: "Search the datasets you may see. List filters match any value; tags must all be present.",
	}, t.search)
	mcp.AddTool(s, &mcp.Tool{
		Name:        ToolLookup,
		Description: "List every copy of a dataset you may see, by uuid.",
	}, t.lookup)
	mcp.AddTool(s, &mcp.Tool{
		Name:        ToolSummarize,
		Description: "Count the datasets you may see per creator, base URI and tag.",
	}, t.summarize)
	mcp.AddTool(s, &mcp.Tool{
		Name:        ToolReadme,
		Description: "Read the README of a dataset.",
	}, t.readme)
}

func (t *tools) search(ctx context.Context, _ *mcp.CallToolRequest, in searchInput) (*mcp.CallToolResult, any, error) {
	sort, err := dataset.ParseSort(in.Sort)
	if err != nil {
		return errorResult(err)
	}
	page := &dataset.Page{Number: in.Page, Size: in.PageSize}
	q := dataset.Query{
		BaseURIs:         in.BaseURIs,
		CreatorUsernames: in.CreatorUsernames,
		UUIDs:            in.UUIDs,
		Tags:             in.Tags,
		FreeText:         in.FreeText,
	}
	start := time.Now()
	res, err := t.catalog.Search(ctx, t.username, q, page, sort)
	t.record(ctx, ToolSearch, "", map[string]any{
		"base_uris": in.BaseURIs, "creator_usernames": in.CreatorUsernames,
		"uuids": in.UUIDs, "tags": in.Tags, "free_text": in.FreeText,
	}, start, err)
	if err != nil {
		return t.fail(ToolSearch, err)
	}
	return jsonResult(res)
}

func (t *tools) lookup(ctx context.Context, _ *mcp.CallToolRequest, in lookupInput) (*mcp.CallToolResult, any, error) {
	start := time.Now()
	infos, err := t.catalog.Lookup(ctx, t.username, in.UUID)
	t.record(ctx, ToolLookup, in.UUID, nil, start, err)
	if err != nil {
		return t.fail(ToolLookup, err)
	}
	if infos == nil {
		infos = []dataset.Info{}
	}
	return jsonResult(infos)
}

func (t *tools) summarize(ctx context.Context, _ *mcp.CallToolRequest, _ summarizeInput) (*mcp.CallToolResult, any, error) {
	start := time.Now()
	summary, err := t.catalog.Summarize(ctx, t.username)
	t.record(ctx, ToolSummarize, "", nil, start, err)
	if err != nil {
		return t.fail(ToolSummarize, err)
	}
	return jsonResult(summary)
}

func (t *tools) readme(ctx context.Context, _ *mcp.CallToolRequest, in readmeInput) (*mcp.CallToolResult, any, error) {
	start := time.Now()
	text, err := t.catalog.Readme(ctx, t.username, in.URI)
	t.record(ctx, ToolReadme, in.URI, nil, start, err)
	if err != nil {
		return t.fail(ToolReadme, err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// record writes a tool_call audit event naming the tool. Without an audit
// logger it does nothing.
func (t *tools) record(ctx context.Context, tool, resource string, params map[string]any, start time.Time, err error) {
	if t.audit == nil {
		return
	}
	if params == nil {
		params = map[string]any{}
	}
	params["tool"] = tool
	event := audit.NewEvent(audit.ActionToolCall).
		WithUser(t.username).
		WithRequestID(t.requestID).
		WithResource(resource).
		WithParameters(params).
		WithResult(err, time.Since(start).Milliseconds())
	if logErr := t.audit.Log(ctx, *event); logErr != nil {
		t.logger.WarnContext(ctx, "failed to record audit event", "tool", tool, "error", logErr)
	}
}

// fail reports domain errors as they are and hides anything else.
func (t *tools) fail(tool string, err error) (*mcp.CallToolResult, any, error) {
	switch {
	case errors.Is(err, access.ErrAuthentication),
		errors.Is(err, access.ErrAuthorization),
		errors.Is(err, dataset.ErrUnknownURI),
		errors.Is(err, dataset.ErrValidation):
		return errorResult(err)
	default:
		t.logger.Error("mcp tool failed", "tool", tool, "username", t.username, "error", err)
		return errorResult(errInternal)
	}
}

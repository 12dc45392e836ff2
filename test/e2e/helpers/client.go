//go:build integration

package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/txn2/dataset-lookup/pkg/access"
	"github.com/txn2/dataset-lookup/pkg/api"
	"github.com/txn2/dataset-lookup/pkg/dataset"
)

// Client calls the REST API with an API key.
type Client struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewClient creates a client. An empty key sends no credentials.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Response is a decoded API response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", r.Body, err)
	}
	return nil
}

// Pagination parses the X-Pagination header.
func (r *Response) Pagination() (api.Pagination, error) {
	var p api.Pagination
	err := json.Unmarshal([]byte(r.Header.Get(api.PaginationHeader)), &p)
	return p, err
}

// Do sends a request; a non-nil body is sent as JSON.
func (c *Client) Do(method, path string, body any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, c.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// Get sends a GET request.
func (c *Client) Get(path string) (*Response, error) {
	return c.Do(http.MethodGet, path, nil)
}

// Post sends a POST request with a JSON body.
func (c *Client) Post(path string, body any) (*Response, error) {
	return c.Do(http.MethodPost, path, body)
}

// --- Dataset endpoints ---

// Register calls PUT /api/v1/uris/{uri}.
func (c *Client) Register(info dataset.Info) (*Response, error) {
	return c.Do(http.MethodPut, "/api/v1/uris/"+api.PathFromURI(info.URI), info)
}

// Search calls POST /api/v1/search with optional page, page_size and sort
// parameters.
func (c *Client) Search(q dataset.Query, params url.Values) ([]dataset.Info, *Response, error) {
	path := "/api/v1/search"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	resp, err := c.Post(path, q)
	if err != nil {
		return nil, nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, resp, nil
	}
	var infos []dataset.Info
	return infos, resp, resp.Decode(&infos)
}

// Summary calls GET /api/v1/me/summary.
func (c *Client) Summary() (*dataset.Summary, *Response, error) {
	resp, err := c.Get("/api/v1/me/summary")
	if err != nil {
		return nil, nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, resp, nil
	}
	var s dataset.Summary
	return &s, resp, resp.Decode(&s)
}

// --- Admin endpoints ---

// RegisterUsers calls POST /api/v1/admin/users.
func (c *Client) RegisterUsers(users ...access.User) (*Response, error) {
	return c.Post("/api/v1/admin/users", users)
}

// RegisterBaseURI calls POST /api/v1/admin/base-uris.
func (c *Client) RegisterBaseURI(baseURI string) (*Response, error) {
	return c.Post("/api/v1/admin/base-uris", map[string]string{"base_uri": baseURI})
}

// PermissionInfo calls POST /api/v1/admin/permission/info.
func (c *Client) PermissionInfo(baseURI string) (*access.PermissionInfo, *Response, error) {
	resp, err := c.Post("/api/v1/admin/permission/info", map[string]string{"base_uri": baseURI})
	return decodePermissions(resp, err)
}

// UpdatePermissions calls POST /api/v1/admin/permission/update_on_base_uri.
func (c *Client) UpdatePermissions(info access.PermissionInfo) (*access.PermissionInfo, *Response, error) {
	resp, err := c.Post("/api/v1/admin/permission/update_on_base_uri", info)
	return decodePermissions(resp, err)
}

func decodePermissions(resp *Response, err error) (*access.PermissionInfo, *Response, error) {
	if err != nil {
		return nil, nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, resp, nil
	}
	var info access.PermissionInfo
	return &info, resp, resp.Decode(&info)
}

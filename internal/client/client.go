// Package client talks to the mind-map REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/mindmap/internal/apperr"
	"github.com/starford/mindmap/internal/wire"
)

const (
	// DefaultTimeout bounds every request.
	DefaultTimeout = 20 * time.Second
	// DefaultRetryDelay is the pause before the single GET retry.
	DefaultRetryDelay = 600 * time.Millisecond

	apiPrefix = "/api/v1"
)

// ErrUnauthorized is returned when the backend answers 401.
var ErrUnauthorized = apperr.ErrUnauthorized

// APIError is a non-2xx response.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: %s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// Is maps status codes onto the application sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case apperr.ErrNotFound:
		return e.Status == http.StatusNotFound
	case apperr.ErrConflict:
		return e.Status == http.StatusConflict || e.Status == http.StatusPreconditionFailed
	case apperr.ErrInvalid:
		return e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity
	case apperr.ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	}
	return false
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithToken sets the bearer token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRetryDelay sets the pause before a GET is retried.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithOnUnauthorized registers a hook called after a 401, once the token has
// been cleared.
func WithOnUnauthorized(fn func()) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// Client is a mind-map API client. It is safe for concurrent use.
type Client struct {
	baseURL        string
	http           *http.Client
	retryDelay     time.Duration
	onUnauthorized func()
	logger         *slog.Logger

	mu    sync.RWMutex
	token string
}

// New creates a client for the backend at origin. Trailing slashes are
// trimmed and the API prefix is appended.
func New(origin string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(origin, "/") + apiPrefix,
		http:       &http.Client{Timeout: DefaultTimeout},
		retryDelay: DefaultRetryDelay,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the resolved API base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// List returns the maps matching status and a title query. Empty filters are omitted.
func (c *Client) List(ctx context.Context, status, q string) ([]wire.Map, error) {
	v := url.Values{}
	if status != "" {
		v.Set("status", status)
	}
	if q != "" {
		v.Set("q", q)
	}
	path := "/mindmaps"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}
	var out []wire.Map
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create stores a new map and returns it with its assigned id.
func (c *Client) Create(ctx context.Context, m wire.Map) (wire.Map, error) {
	var out wire.Map
	err := c.do(ctx, http.MethodPost, "/mindmaps", m, &out)
	return out, err
}

// Get loads one map.
func (c *Client) Get(ctx context.Context, id string) (wire.Map, error) {
	var out wire.Map
	err := c.do(ctx, http.MethodGet, "/mindmaps/"+url.PathEscape(id), nil, &out)
	return out, err
}

// Save replaces title, status, nodes and edges of a map.
func (c *Client) Save(ctx context.Context, id string, m wire.Map) (wire.Map, error) {
	body := wire.Map{Title: m.Title, Status: m.Status, Nodes: m.Nodes, Edges: m.Edges}
	var out wire.Map
	err := c.do(ctx, http.MethodPut, "/mindmaps/"+url.PathEscape(id), body, &out)
	return out, err
}

// Rename changes only the title.
func (c *Client) Rename(ctx context.Context, id, title string) (wire.Map, error) {
	var out wire.Map
	err := c.do(ctx, http.MethodPatch, "/mindmaps/"+url.PathEscape(id), wire.RenameRequest{Title: title}, &out)
	return out, err
}

// Delete removes a map.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/mindmaps/"+url.PathEscape(id), nil, nil)
}

// Expand asks the backend to grow the map from prompt. The response body is
// ignored; callers reload the map.
func (c *Client) Expand(ctx context.Context, id, prompt string) error {
	return c.do(ctx, http.MethodPost, "/mindmaps/"+url.PathEscape(id)+"/ai/expand", wire.ExpandRequest{Prompt: prompt}, nil)
}

// Publish promotes the map to a project and returns the project id.
func (c *Client) Publish(ctx context.Context, id string) (string, error) {
	var out wire.PublishResponse
	if err := c.do(ctx, http.MethodPost, "/mindmaps/"+url.PathEscape(id)+"/publish", nil, &out); err != nil {
		return "", err
	}
	pid := out.ProjectID
	if pid == "" {
		pid = out.ID
	}
	if pid == "" {
		return "", errors.New("client: publish: response carries no project id")
	}
	return pid, nil
}

// ExportMermaid returns the server-rendered Mermaid text.
func (c *Client) ExportMermaid(ctx context.Context, id string) (string, error) {
	var out wire.ExportResponse
	if err := c.do(ctx, http.MethodGet, "/mindmaps/"+url.PathEscape(id)+"/export/mermaid", nil, &out); err != nil {
		return "", err
	}
	return out.Mermaid, nil
}

// Search runs a full-text query over map titles and labels.
func (c *Client) Search(ctx context.Context, q string) ([]wire.SearchResult, error) {
	var out struct {
		Results []wire.SearchResult `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/search?q="+url.QueryEscape(q), nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Duplicate copies a map client-side: node and edge ids are regenerated,
// edges are rewired and the copy is created as a draft.
func (c *Client) Duplicate(ctx context.Context, id string) (wire.Map, error) {
	src, err := c.Get(ctx, id)
	if err != nil {
		return wire.Map{}, err
	}
	return c.Create(ctx, Copy(src))
}

// Copy returns a draft copy of m with fresh node and edge ids.
func Copy(m wire.Map) wire.Map {
	ids := make(map[string]string, len(m.Nodes))
	out := wire.Map{
		Title:  "Copy of " + m.Title,
		Status: "draft",
		Nodes:  make([]wire.Node, 0, len(m.Nodes)),
		Edges:  make([]wire.Edge, 0, len(m.Edges)),
	}
	for _, n := range m.Nodes {
		nid := uuid.NewString()
		if n.ID != "" {
			ids[n.ID] = nid
		}
		out.Nodes = append(out.Nodes, wire.Node{ID: nid, Label: n.Label, Data: cloneBag(n.Data)})
	}
	for _, e := range m.Edges {
		src, tgt := e.From(), e.To()
		if v, ok := ids[src]; ok {
			src = v
		}
		if v, ok := ids[tgt]; ok {
			tgt = v
		}
		out.Edges = append(out.Edges, wire.Edge{ID: uuid.NewString(), SourceID: src, TargetID: tgt, Data: cloneBag(e.Data)})
	}
	return out
}

func cloneBag(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	// Round-trip through JSON so nested values are not shared.
	b, err := json.Marshal(in)
	if err != nil {
		return in
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return in
	}
	return out
}

// do sends one request. GETs are retried once on a transport error or a
// 502/503/504 answer.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: marshaling request: %w", err)
		}
		payload = b
	}

	attempts := 1
	if method == http.MethodGet {
		attempts = 2
	}

	for attempt := 1; ; attempt++ {
		resp, err := c.send(ctx, method, path, payload)
		if err != nil {
			if ctx.Err() != nil || attempt >= attempts {
				return fmt.Errorf("client: %s %s: %w", method, path, err)
			}
			c.logger.Debug("retrying request", slog.String("path", path), slog.String("error", err.Error()))
			if err := c.sleep(ctx); err != nil {
				return err
			}
			continue
		}

		if retryableStatus(resp.StatusCode) && attempt < attempts {
			drain(resp)
			c.logger.Debug("retrying request", slog.String("path", path), slog.Int("status", resp.StatusCode))
			if err := c.sleep(ctx); err != nil {
				return err
			}
			continue
		}

		return c.handle(resp, method, path, out)
	}
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return c.http.Do(req)
}

func (c *Client) handle(resp *http.Response, method, path string, out any) error {
	defer drain(resp)

	if resp.StatusCode == http.StatusUnauthorized {
		c.SetToken("")
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return fmt.Errorf("client: %s %s: %w", method, path, ErrUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp, method, path)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("client: decoding response: %w", err)
	}
	return nil
}

func (c *Client) sleep(ctx context.Context) error {
	t := time.NewTimer(c.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func parseError(resp *http.Response, method, path string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	e := &APIError{Method: method, Path: path, Status: resp.StatusCode}

	var errResp struct {
		Error string `json:"error"`
	}
	switch {
	case json.Unmarshal(body, &errResp) == nil && errResp.Error != "":
		e.Message = errResp.Error
	case len(bytes.TrimSpace(body)) > 0:
		e.Message = string(bytes.TrimSpace(body))
	default:
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

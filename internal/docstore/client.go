package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a CouchDB HTTP client.
type Client struct {
	url        string
	username   string
	password   string
	httpClient *http.Client
}

// ClientConfig holds connection settings for CouchDB.
type ClientConfig struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
}

// NewClient creates a new CouchDB client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		url:      strings.TrimSuffix(cfg.URL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// HealthCheck checks whether CouchDB is up.
func (c *Client) HealthCheck(ctx context.Context) error {
	status, _, err := c.do(ctx, http.MethodGet, "/_up", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnhealthy, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, status)
	}
	return nil
}

// EnsureDatabase creates the database if it does not already exist.
func (c *Client) EnsureDatabase(ctx context.Context, db string) error {
	status, body, err := c.do(ctx, http.MethodPut, "/"+url.PathEscape(db), nil)
	if err != nil {
		return fmt.Errorf("failed to create database %s: %w", db, err)
	}
	// 201 created, 412 already exists
	if status != http.StatusCreated && status != http.StatusPreconditionFailed {
		return fmt.Errorf("failed to create database %s (status %d): %s", db, status, body)
	}
	return nil
}

// Put creates or replaces a document. On revision conflict the current
// revision is fetched and the write replayed once.
func (c *Client) Put(ctx context.Context, db, id string, doc map[string]any) error {
	status, body, err := c.putDoc(ctx, db, id, doc, "")
	if err != nil {
		return err
	}
	if status == http.StatusConflict {
		rev, err := c.revision(ctx, db, id)
		if err != nil {
			return err
		}
		status, body, err = c.putDoc(ctx, db, id, doc, rev)
		if err != nil {
			return err
		}
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return fmt.Errorf("failed to put %s/%s (status %d): %s", db, id, status, body)
	}
	return nil
}

// Get fetches a document. CouchDB bookkeeping fields (_id, _rev) are
// stripped from the result.
func (c *Client) Get(ctx context.Context, db, id string) (map[string]any, error) {
	status, body, err := c.do(ctx, http.MethodGet, c.docPath(db, id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", db, id, err)
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, db, id)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("failed to get %s/%s (status %d): %s", db, id, status, body)
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s/%s: %w", db, id, err)
	}
	delete(doc, "_id")
	delete(doc, "_rev")
	return doc, nil
}

// Merge overlays fields onto the stored document.
func (c *Client) Merge(ctx context.Context, db, id string, fields map[string]any) error {
	status, body, err := c.do(ctx, http.MethodGet, c.docPath(db, id), nil)
	if err != nil {
		return fmt.Errorf("failed to read %s/%s for merge: %w", db, id, err)
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, db, id)
	}
	if status != http.StatusOK {
		return fmt.Errorf("failed to read %s/%s for merge (status %d): %s", db, id, status, body)
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %w", db, id, err)
	}
	rev, _ := doc["_rev"].(string)
	delete(doc, "_id")
	delete(doc, "_rev")
	for k, v := range fields {
		doc[k] = v
	}

	status, body, err = c.putDoc(ctx, db, id, doc, rev)
	if err != nil {
		return err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return fmt.Errorf("failed to merge %s/%s (status %d): %s", db, id, status, body)
	}
	return nil
}

// revision returns the current _rev of a document via a HEAD request.
func (c *Client) revision(ctx context.Context, db, id string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.url+c.docPath(db, id), nil)
	if err != nil {
		return "", err
	}
	c.auth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch revision of %s/%s: %w", db, id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch revision of %s/%s (status %d)", db, id, resp.StatusCode)
	}
	return strings.Trim(resp.Header.Get("ETag"), `"`), nil
}

func (c *Client) putDoc(ctx context.Context, db, id string, doc map[string]any, rev string) (int, []byte, error) {
	payload := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		payload[k] = v
	}
	if rev != "" {
		payload["_rev"] = rev
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal %s/%s: %w", db, id, err)
	}
	return c.do(ctx, http.MethodPut, c.docPath(db, id), body)
}

func (c *Client) docPath(db, id string) string {
	return "/" + url.PathEscape(db) + "/" + url.PathEscape(id)
}

func (c *Client) auth(req *http.Request) {
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.auth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// Verify interface
var _ Store = (*Client)(nil)

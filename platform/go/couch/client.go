// Package couch is a thin administrative client for the CouchDB HTTP API.
// It covers only the surface the control plane needs: database lifecycle,
// security policies, principal management and bulk document movement.
package couch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config carries the connection settings for the document store. The admin
// credentials authenticate every call; per-tenant principals are created
// through the client, never used by it.
type Config struct {
	BaseURL       string
	AdminUser     string
	AdminPassword string
	// Timeout bounds each request; zero falls back to a conservative default.
	Timeout time.Duration
	// HTTPClient overrides the underlying transport, mainly for tests.
	HTTPClient *http.Client
}

const defaultTimeout = 30 * time.Second

// Client issues administrative calls against a single CouchDB endpoint.
type Client struct {
	baseURL  string
	user     string
	password string
	http     *http.Client
}

// New constructs a Client and validates the configuration.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("couch base url is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:  base,
		user:     cfg.AdminUser,
		password: cfg.AdminPassword,
		http:     httpClient,
	}, nil
}

// CreateState is the tagged outcome of CreateDatabase. Pre-existing databases
// are an expected alternate outcome, not an error, so callers can branch on it.
type CreateState int

const (
	StateCreated CreateState = iota
	StateAlreadyExists
)

// OpError describes an unexpected response from the document store. The
// operation name, target resource and upstream body are preserved for
// operator diagnostics.
type OpError struct {
	Op         string
	Target     string
	StatusCode int
	Body       string
}

func (e *OpError) Error() string {
	return fmt.Sprintf("couch %s %q: unexpected status %d: %s", e.Op, e.Target, e.StatusCode, e.Body)
}

// SecurityPolicy is the CouchDB _security document shape.
type SecurityPolicy struct {
	Admins  NameList `json:"admins"`
	Members NameList `json:"members"`
}

// NameList holds principal names and roles for one side of a security policy.
type NameList struct {
	Names []string `json:"names"`
	Roles []string `json:"roles"`
}

// AllDocs is the native response of GET /{db}/_all_docs?include_docs=true.
// Rows are kept as raw JSON so snapshots reproduce the store's own shape.
type AllDocs struct {
	TotalRows int   `json:"total_rows"`
	Offset    int   `json:"offset"`
	Rows      []Row `json:"rows"`
}

// Row is a single _all_docs row including the document body.
type Row struct {
	ID    string          `json:"id"`
	Key   json.RawMessage `json:"key,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
	Doc   json.RawMessage `json:"doc,omitempty"`
}

// CreateDatabase issues PUT /{db}. A 412 means the database already existed
// and is reported through the returned state, not as an error.
func (c *Client) CreateDatabase(ctx context.Context, name string) (CreateState, error) {
	status, body, err := c.do(ctx, http.MethodPut, "/"+name, nil)
	if err != nil {
		return 0, fmt.Errorf("create database %q: %w", name, err)
	}

	switch status {
	case http.StatusCreated:
		return StateCreated, nil
	case http.StatusPreconditionFailed:
		return StateAlreadyExists, nil
	default:
		return 0, &OpError{Op: "create_database", Target: name, StatusCode: status, Body: string(body)}
	}
}

// SetSecurityPolicy grants admin and member rights to exactly one principal,
// which revokes the implicit public access of a fresh database.
func (c *Client) SetSecurityPolicy(ctx context.Context, name, principal string) error {
	policy := SecurityPolicy{
		Admins:  NameList{Names: []string{principal}, Roles: []string{}},
		Members: NameList{Names: []string{principal}, Roles: []string{}},
	}

	status, body, err := c.do(ctx, http.MethodPut, "/"+name+"/_security", policy)
	if err != nil {
		return fmt.Errorf("set security policy on %q: %w", name, err)
	}
	if status != http.StatusOK {
		return &OpError{Op: "set_security_policy", Target: name, StatusCode: status, Body: string(body)}
	}
	return nil
}

type userDoc struct {
	ID       string   `json:"_id"`
	Name     string   `json:"name"`
	Password string   `json:"password"`
	Roles    []string `json:"roles"`
	Type     string   `json:"type"`
}

// CreateUser registers a principal in the _users database. A 409 means the
// principal already exists and is treated as success.
func (c *Client) CreateUser(ctx context.Context, name, secret string) error {
	doc := userDoc{
		ID:       "org.couchdb.user:" + name,
		Name:     name,
		Password: secret,
		Roles:    []string{},
		Type:     "user",
	}

	status, body, err := c.do(ctx, http.MethodPost, "/_users", doc)
	if err != nil {
		return fmt.Errorf("create user %q: %w", name, err)
	}

	switch status {
	case http.StatusCreated, http.StatusConflict:
		return nil
	default:
		return &OpError{Op: "create_user", Target: name, StatusCode: status, Body: string(body)}
	}
}

// DeleteDatabase issues DELETE /{db}. A missing database is not an error.
func (c *Client) DeleteDatabase(ctx context.Context, name string) error {
	status, body, err := c.do(ctx, http.MethodDelete, "/"+name, nil)
	if err != nil {
		return fmt.Errorf("delete database %q: %w", name, err)
	}

	switch status {
	case http.StatusOK, http.StatusNotFound:
		return nil
	default:
		return &OpError{Op: "delete_database", Target: name, StatusCode: status, Body: string(body)}
	}
}

// ListDatabases returns every database name known to the store.
func (c *Client) ListDatabases(ctx context.Context) ([]string, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/_all_dbs", nil)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	if status != http.StatusOK {
		return nil, &OpError{Op: "list_databases", Target: "_all_dbs", StatusCode: status, Body: string(body)}
	}

	var names []string
	if err := json.Unmarshal(body, &names); err != nil {
		return nil, fmt.Errorf("decode database list: %w", err)
	}
	return names, nil
}

// FetchAllDocuments returns the full document set of a database, bodies included.
func (c *Client) FetchAllDocuments(ctx context.Context, name string) (AllDocs, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/"+name+"/_all_docs?include_docs=true", nil)
	if err != nil {
		return AllDocs{}, fmt.Errorf("fetch documents from %q: %w", name, err)
	}
	if status != http.StatusOK {
		return AllDocs{}, &OpError{Op: "fetch_all_documents", Target: name, StatusCode: status, Body: string(body)}
	}

	var docs AllDocs
	if err := json.Unmarshal(body, &docs); err != nil {
		return AllDocs{}, fmt.Errorf("decode documents from %q: %w", name, err)
	}
	return docs, nil
}

// BulkInsert stores documents through POST /{db}/_bulk_docs in one batch.
func (c *Client) BulkInsert(ctx context.Context, name string, docs []json.RawMessage) error {
	payload := struct {
		Docs []json.RawMessage `json:"docs"`
	}{Docs: docs}

	status, body, err := c.do(ctx, http.MethodPost, "/"+name+"/_bulk_docs", payload)
	if err != nil {
		return fmt.Errorf("bulk insert into %q: %w", name, err)
	}
	if status != http.StatusCreated {
		return &OpError{Op: "bulk_insert", Target: name, StatusCode: status, Body: string(body)}
	}
	return nil
}

// do executes one request with admin credentials and drains the response body.
func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response body: %w", err)
	}

	return resp.StatusCode, body, nil
}

// Package storeclient talks to the budget item record store over HTTP+JSON.
//
// Every call is a single attempt. Responses are validated at the boundary:
// list payloads must be JSON arrays and records that do not carry an id,
// a label and an owner are dropped rather than surfaced.
package storeclient

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

	"github.com/go-playground/validator/v10"

	"github.com/Kale254/final/internal/models"
)

// maxErrorBody bounds how much of a failed response is kept in StoreError.
const maxErrorBody = 4 << 10

// TokenSource supplies a bearer token. An empty token sends no header.
type TokenSource interface {
	Token() string
}

// Client is a record store client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
	validate   *validator.Validate
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenSource attaches a bearer token to every request.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithLogger sets where dropped records are reported.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the store rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListByUser fetches the items under the user's scoped path.
func (c *Client) ListByUser(ctx context.Context, userID string) ([]models.BudgetItem, error) {
	return c.list(ctx, "list by user", "/users/"+url.PathEscape(userID)+"/budgetItems")
}

// ListAll fetches the whole, unpartitioned collection.
func (c *Client) ListAll(ctx context.Context) ([]models.BudgetItem, error) {
	return c.list(ctx, "list all", "/budgetItems")
}

// Create posts item under scopeUserID and returns the record the store acknowledged.
func (c *Client) Create(ctx context.Context, scopeUserID string, item models.BudgetItem) (models.BudgetItem, error) {
	const op = "create"

	var created models.BudgetItem
	if err := c.do(ctx, op, http.MethodPost, "/users/"+url.PathEscape(scopeUserID)+"/budgetItems", item, &created); err != nil {
		return models.BudgetItem{}, err
	}
	if err := c.validate.Struct(created); err != nil {
		return models.BudgetItem{}, &TransportError{Op: op, Err: fmt.Errorf("malformed acknowledgement: %w", err)}
	}
	return created, nil
}

// DeleteByID removes the item with the given id.
func (c *Client) DeleteByID(ctx context.Context, id string) error {
	return c.do(ctx, "delete", http.MethodDelete, "/budgetItems/"+url.PathEscape(id), nil, nil)
}

func (c *Client) list(ctx context.Context, op, path string) ([]models.BudgetItem, error) {
	var raw []json.RawMessage
	if err := c.do(ctx, op, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, &TransportError{Op: op, Err: errors.New("decode response: expected a JSON array, got null")}
	}

	items := make([]models.BudgetItem, 0, len(raw))
	for i, r := range raw {
		var item models.BudgetItem
		if err := json.Unmarshal(r, &item); err != nil {
			c.logger.WarnContext(ctx, "Dropping undecodable budget item", "op", op, "index", i, "error", err)
			continue
		}
		if err := c.validate.Struct(item); err != nil {
			c.logger.WarnContext(ctx, "Dropping invalid budget item", "op", op, "index", i, "id", item.ID, "error", err)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// do performs one request. A nil out discards the response body.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StoreError{Op: op, Status: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty response body")
		}
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// readErrorBody extracts {"error": msg} when present, else the raw text.
func readErrorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))

	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &envelope) == nil && envelope.Error != "" {
		return envelope.Error
	}
	return strings.TrimSpace(string(data))
}

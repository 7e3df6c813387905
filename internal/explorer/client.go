package explorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"backend/internal/apperrors"
	"backend/internal/models"
	"backend/internal/responses"
	"backend/internal/services"
)

const apiPrefix = "/api/v1"

// Client implements API against a running server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a Client for the server at baseURL. A nil httpClient
// gets a 30 second timeout.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

type envelope struct {
	Success bool                 `json:"success"`
	Data    json.RawMessage      `json:"data"`
	Error   *responses.ErrorBody `json:"error"`
}

func (c *Client) ListTables(ctx context.Context) ([]models.TableCatalogEntry, error) {
	var tables []models.TableCatalogEntry
	err := c.do(ctx, http.MethodGet, "/tables", nil, nil, &tables)
	return tables, err
}

func (c *Client) DescribeTable(ctx context.Context, name string) (*models.TableSchema, error) {
	var schema models.TableSchema
	if err := c.do(ctx, http.MethodGet, "/tables/"+url.PathEscape(name)+"/schema", nil, nil, &schema); err != nil {
		return nil, err
	}
	return &schema, nil
}

func (c *Client) FetchPage(ctx context.Context, table string, page, limit int) (*models.RecordPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))

	var result models.RecordPage
	if err := c.do(ctx, http.MethodGet, "/tables/"+url.PathEscape(table), query, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Insert(ctx context.Context, table string, fields map[string]any, opts services.WriteOptions) (*models.InsertResult, error) {
	var result models.InsertResult
	if err := c.do(ctx, http.MethodPost, "/tables/"+url.PathEscape(table), writeQuery(opts), fields, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Update(ctx context.Context, table, identity string, fields map[string]any, opts services.WriteOptions) (*models.MutationResult, error) {
	var result models.MutationResult
	path := "/tables/" + url.PathEscape(table) + "/" + url.PathEscape(identity)
	if err := c.do(ctx, http.MethodPut, path, writeQuery(opts), fields, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Delete(ctx context.Context, table, identity string, opts services.WriteOptions) (*models.MutationResult, error) {
	var result models.MutationResult
	path := "/tables/" + url.PathEscape(table) + "/" + url.PathEscape(identity)
	if err := c.do(ctx, http.MethodDelete, path, writeQuery(opts), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func writeQuery(opts services.WriteOptions) url.Values {
	if !opts.AcknowledgeGuessedIdentity {
		return nil
	}
	return url.Values{"acknowledgeGuessedIdentity": []string{"true"}}
}

// do sends one request and decodes the envelope. Error envelopes come back
// as *apperrors.Error with the server's kind and message.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	target := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.NewStoreUnavailable("server is unreachable", err)
	}
	defer resp.Body.Close()

	var env envelope
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return fmt.Errorf("unexpected %s response from %s %s: %w", resp.Status, method, path, err)
	}

	if !env.Success {
		if env.Error == nil {
			return fmt.Errorf("%s %s failed with %s", method, path, resp.Status)
		}
		return &apperrors.Error{
			Kind:    apperrors.Kind(env.Error.Kind),
			Message: env.Error.Message,
			Column:  env.Error.Column,
		}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

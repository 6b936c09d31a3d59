package board

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

const (
	// DefaultTimeout is the default request timeout
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum response body size (10MB)
	MaxResponseSize = 10 * 1024 * 1024
)

// Config holds board client configuration
type Config struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// Client is the HTTP client for the collaboration board API.
type Client struct {
	client  *http.Client
	baseURL string
	token   string
	logger  ectologger.Logger
}

// NewClient creates a new board client
func NewClient(cfg Config, logger ectologger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: cfg.BaseURL,
		token:   cfg.APIToken,
		logger:  logger,
	}
}

// CreateItem creates a board item and returns its id.
func (c *Client) CreateItem(ctx context.Context, boardID int64, groupID, name string, fields models.FieldValues) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "board.Client.CreateItem")
	defer span.End()

	var resp createItemResponse
	path := fmt.Sprintf("/v2/boards/%d/items", boardID)
	if err := c.do(ctx, http.MethodPost, path, createItemRequest{GroupID: groupID, Name: name, Fields: fields}, &resp); err != nil {
		return 0, err
	}
	return resp.ItemID, nil
}

// UpdateItemName renames an existing board item.
func (c *Client) UpdateItemName(ctx context.Context, boardID, itemID int64, name string) error {
	ctx, span := tracing.StartSpan(ctx, "board.Client.UpdateItemName")
	defer span.End()

	path := fmt.Sprintf("/v2/boards/%d/items/%d/name", boardID, itemID)
	return c.do(ctx, http.MethodPut, path, updateNameRequest{Name: name}, nil)
}

// UpdateItemFields writes column values on an existing board item.
func (c *Client) UpdateItemFields(ctx context.Context, boardID, itemID int64, fields models.FieldValues) error {
	ctx, span := tracing.StartSpan(ctx, "board.Client.UpdateItemFields")
	defer span.End()

	path := fmt.Sprintf("/v2/boards/%d/items/%d/columns", boardID, itemID)
	return c.do(ctx, http.MethodPut, path, updateFieldsRequest{Fields: fields}, nil)
}

// FindItemIDByFieldValue looks up the single item carrying the given value in
// a column. Returns (0, false, nil) when no item matches.
func (c *Client) FindItemIDByFieldValue(ctx context.Context, boardID int64, columnID, value string) (int64, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "board.Client.FindItemIDByFieldValue")
	defer span.End()

	var resp lookupResponse
	query := url.Values{"column_id": {columnID}, "value": {value}}
	path := fmt.Sprintf("/v2/boards/%d/items/lookup?%s", boardID, query.Encode())
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusNotFound {
			return 0, false, nil
		}
		return 0, false, err
	}
	return resp.ItemID, true, nil
}

// GetColumnType returns the type tag of a board column.
func (c *Client) GetColumnType(ctx context.Context, boardID int64, columnID string) (models.ColumnType, error) {
	ctx, span := tracing.StartSpan(ctx, "board.Client.GetColumnType")
	defer span.End()

	var resp columnResponse
	path := fmt.Sprintf("/v2/boards/%d/columns/%s", boardID, columnID)
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusNotFound {
			return "", ErrNotFound
		}
		return "", err
	}
	return models.ColumnType(resp.Type), nil
}

// GetStatusLabels fetches the allowed label set of a status column. Status
// columns return labels as an index-keyed map.
func (c *Client) GetStatusLabels(ctx context.Context, boardID int64, columnID string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "board.Client.GetStatusLabels")
	defer span.End()

	var resp statusLabelsResponse
	path := fmt.Sprintf("/v2/boards/%d/columns/%s/labels", boardID, columnID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(resp.Labels))
	for _, label := range resp.Labels {
		if label != "" {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	return labels, nil
}

// GetDropdownLabels fetches the allowed label set of a dropdown column.
// Dropdown columns return labels as an option list under settings.
func (c *Client) GetDropdownLabels(ctx context.Context, boardID int64, columnID string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "board.Client.GetDropdownLabels")
	defer span.End()

	var resp dropdownLabelsResponse
	path := fmt.Sprintf("/v2/boards/%d/columns/%s/settings", boardID, columnID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(resp.Settings.Options))
	for _, option := range resp.Settings.Options {
		if option.Name != "" {
			labels = append(labels, option.Name)
		}
	}
	sort.Strings(labels)
	return labels, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, dest any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Errorf("Board request failed: %s %s", method, path)
		return fmt.Errorf("board request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read board response: %w", err)
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("Board request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if dest != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, dest); err != nil {
			return fmt.Errorf("failed to decode board response: %w", err)
		}
	}
	return nil
}

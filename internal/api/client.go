package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jask/cloudanchors/internal/shortcode"
)

// Client is a shortcode.Store backed by a remote short-code server.
// Transport failures and 5xx responses surface as ErrUnavailable.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ shortcode.Store = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Allocate(ctx context.Context) (shortcode.Code, error) {
	var out CodeResponse
	if err := c.do(ctx, http.MethodPost, "/codes", nil, &out); err != nil {
		return 0, fmt.Errorf("allocate: %w", err)
	}
	return shortcode.Code(out.Code), nil
}

func (c *Client) Put(ctx context.Context, code shortcode.Code, anchorID string) error {
	if !code.Valid() {
		return fmt.Errorf("put %d: %w", code, shortcode.ErrInvalidCode)
	}
	if err := c.do(ctx, http.MethodPut, "/codes/"+code.String(), PutRequest{AnchorID: anchorID}, nil); err != nil {
		return fmt.Errorf("put %d: %w", code, err)
	}
	return nil
}

func (c *Client) Lookup(ctx context.Context, code shortcode.Code) (string, error) {
	if !code.Valid() {
		return "", fmt.Errorf("lookup %d: %w", code, shortcode.ErrInvalidCode)
	}
	var out CodeResponse
	if err := c.do(ctx, http.MethodGet, "/codes/"+code.String(), nil, &out); err != nil {
		return "", fmt.Errorf("lookup %d: %w", code, err)
	}
	return out.AnchorID, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shortcode.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%w (%s)", sentinelFor(resp.StatusCode), e.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", shortcode.ErrUnavailable, err)
	}
	return nil
}

func sentinelFor(status int) error {
	switch status {
	case http.StatusBadRequest:
		return shortcode.ErrInvalidCode
	case http.StatusNotFound:
		return shortcode.ErrNotFound
	case http.StatusConflict:
		return shortcode.ErrAlreadyExists
	case http.StatusInsufficientStorage:
		return shortcode.ErrExhausted
	default:
		return fmt.Errorf("%w: status %d", shortcode.ErrUnavailable, status)
	}
}

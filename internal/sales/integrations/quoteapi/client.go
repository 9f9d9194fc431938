// Package quoteapi talks to the remote quotation service.
package quoteapi

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

	"github.com/odyssey-erp/quotedesk/internal/sales/quotations"
)

// StatusError is returned for any response with a status of 400 or above.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client wraps interactions with the quotation REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetQuotation fetches the detail of one quotation.
func (c *Client) GetQuotation(ctx context.Context, quotationID string) (quotations.QuotationDetail, error) {
	var detail quotations.QuotationDetail
	err := c.do(ctx, "get quotation", http.MethodGet, "/quotations/"+url.PathEscape(quotationID), nil, &detail)
	if err != nil {
		return quotations.QuotationDetail{}, err
	}
	return detail, nil
}

// UpdateQuotation persists a draft.
func (c *Client) UpdateQuotation(ctx context.Context, quotationID string, payload quotations.UpdatePayload) error {
	return c.do(ctx, "update quotation", http.MethodPut, "/quotations/"+url.PathEscape(quotationID), payload, nil)
}

// FinalizeQuotation commits the staged selections.
func (c *Client) FinalizeQuotation(ctx context.Context, payload quotations.FinalizePayload) error {
	return c.do(ctx, "finalize quotation", http.MethodPost, "/quotations/finalize", payload, nil)
}

type skuSearchResponse struct {
	Items []quotations.SKU `json:"items"`
}

// SearchSKUs queries the price list.
func (c *Client) SearchSKUs(ctx context.Context, term string, limit int) ([]quotations.SKU, error) {
	q := url.Values{}
	q.Set("q", term)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out skuSearchResponse
	if err := c.do(ctx, "search skus", http.MethodGet, "/skus/search?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Ping checks if the remote service is available.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
		if resp.StatusCode == http.StatusNotFound && method == http.MethodGet && strings.HasPrefix(path, "/quotations/") {
			return fmt.Errorf("%w: %w", quotations.ErrQuotationNotFound, statusErr)
		}
		return statusErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

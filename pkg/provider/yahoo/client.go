package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const userAgent = "Mozilla/5.0 (compatible; market-gateway/1.0)"

// Client talks to the public Yahoo Finance chart, search and quoteSummary APIs.
type Client struct {
	chartURL   string
	summaryURL string
	httpClient *http.Client
}

// NewClient creates a client. Every request is bounded by timeout.
func NewClient(chartURL, summaryURL string, timeout time.Duration) *Client {
	return &Client{
		chartURL:   chartURL,
		summaryURL: summaryURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Quote fetches the latest quote for symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*Quote, error) {
	q := url.Values{}
	q.Set("range", "1d")
	q.Set("interval", "1d")

	res, err := c.chart(ctx, symbol, q)
	if err != nil {
		return nil, err
	}
	return normalizeQuote(symbol, res, time.Now())
}

// History fetches bars for symbol between from and to.
func (c *Client) History(ctx context.Context, symbol, interval string, from, to time.Time) ([]Bar, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(from.Unix(), 10))
	q.Set("period2", strconv.FormatInt(to.Unix(), 10))
	q.Set("interval", interval)
	q.Set("includePrePost", "false")

	res, err := c.chart(ctx, symbol, q)
	if err != nil {
		return nil, err
	}
	return normalizeBars(symbol, res), nil
}

// Company fetches profile and price modules for symbol.
func (c *Client) Company(ctx context.Context, symbol string) (*Company, error) {
	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=assetProfile,price",
		c.summaryURL, url.PathEscape(symbol))

	var raw summaryResponse
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, err
	}
	if e := raw.QuoteSummary.Error; e != nil {
		return nil, fmt.Errorf("yahoo error: %s: %s", e.Code, e.Description)
	}
	return normalizeCompany(symbol, raw)
}

// Search returns symbols matching query.
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("quotesCount", "10")
	q.Set("newsCount", "0")
	endpoint := c.chartURL + "/v1/finance/search?" + q.Encode()

	var raw searchResponse
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, err
	}
	return normalizeSearch(raw), nil
}

func (c *Client) chart(ctx context.Context, symbol string, q url.Values) (chartResult, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.chartURL, url.PathEscape(symbol), q.Encode())

	var raw chartResponse
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return chartResult{}, err
	}
	if e := raw.Chart.Error; e != nil {
		return chartResult{}, fmt.Errorf("yahoo error: %s: %s", e.Code, e.Description)
	}
	if len(raw.Chart.Result) == 0 {
		return chartResult{}, ErrNoData
	}
	return raw.Chart.Result[0], nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dst any) error {
	// Construct the GET request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		// Yahoo reports unknown symbols as 404 with a JSON error body
		if resp.StatusCode == http.StatusNotFound {
			var raw chartResponse
			if json.Unmarshal(body, &raw) == nil && raw.Chart.Error != nil {
				return fmt.Errorf("yahoo error: %s: %s", raw.Chart.Error.Code, raw.Chart.Error.Description)
			}
		}
		return fmt.Errorf("yahoo error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

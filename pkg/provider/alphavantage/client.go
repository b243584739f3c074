package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrNoData is returned when the series holds no numeric observation.
var ErrNoData = errors.New("no data returned")

// TreasuryYield is the latest observation of a treasury constant maturity series.
type TreasuryYield struct {
	Name     string    `json:"name"`
	Maturity string    `json:"maturity"`
	Value    float64   `json:"value"`
	Unit     string    `json:"unit"`
	Date     time.Time `json:"date"`
}

type treasuryResponse struct {
	Name     string `json:"name"`
	Interval string `json:"interval"`
	Unit     string `json:"unit"`
	Data     []struct {
		Date  string `json:"date"`
		Value string `json:"value"` // "." when the market was closed
	} `json:"data"`
	Information  string `json:"Information"`
	Note         string `json:"Note"`
	ErrorMessage string `json:"Error Message"`
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// TreasuryYield returns the most recent daily yield for maturity (e.g. "10year").
func (c *Client) TreasuryYield(ctx context.Context, maturity string) (*TreasuryYield, error) {
	q := url.Values{}
	q.Set("function", "TREASURY_YIELD")
	q.Set("interval", "daily")
	q.Set("maturity", maturity)
	q.Set("apikey", c.apiKey)
	endpoint := c.baseURL + "/query?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("alphavantage error: status %d: %s", resp.StatusCode, body)
	}

	var raw treasuryResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// Rate limits and bad keys come back as 200 with a message field
	for _, msg := range []string{raw.ErrorMessage, raw.Information, raw.Note} {
		if msg != "" {
			return nil, fmt.Errorf("alphavantage error: %s", msg)
		}
	}

	for _, row := range raw.Data {
		v, err := strconv.ParseFloat(row.Value, 64)
		if err != nil {
			continue
		}
		date, err := time.Parse("2006-01-02", row.Date)
		if err != nil {
			continue
		}
		return &TreasuryYield{
			Name:     raw.Name,
			Maturity: maturity,
			Value:    v,
			Unit:     raw.Unit,
			Date:     date,
		}, nil
	}
	return nil, ErrNoData
}

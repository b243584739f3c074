package alphavantage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run TestTreasuryYield
func TestTreasuryYield(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TREASURY_YIELD", r.URL.Query().Get("function"))
		assert.Equal(t, "10year", r.URL.Query().Get("maturity"))
		assert.Equal(t, "demo", r.URL.Query().Get("apikey"))
		_, _ = w.Write([]byte(`{"name":"10-Year Treasury Constant Maturity Rate","interval":"daily","unit":"percent",
			"data":[{"date":"2024-06-03","value":"."},{"date":"2024-05-31","value":"4.51"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "demo", 5*time.Second)
	require.True(t, client.Enabled())

	y, err := client.TreasuryYield(context.Background(), "10year")
	require.NoError(t, err)
	assert.InDelta(t, 4.51, y.Value, 1e-9)
	assert.Equal(t, "percent", y.Unit)
	assert.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), y.Date)
}

// go test -v --run TestTreasuryYieldRateLimited
func TestTreasuryYieldRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Information":"API rate limit reached"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "demo", 5*time.Second).TreasuryYield(context.Background(), "10year")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

// go test -v --run TestEnabled
func TestEnabled(t *testing.T) {
	assert.False(t, NewClient("http://x", "", time.Second).Enabled())
	var nilClient *Client
	assert.False(t, nilClient.Enabled())
}

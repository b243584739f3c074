package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartQuoteBody = `{"chart":{"result":[{
	"meta":{"currency":"USD","symbol":"AAPL","exchangeName":"NMS",
		"regularMarketPrice":190.5,"chartPreviousClose":188.0,
		"regularMarketDayHigh":191.2,"regularMarketDayLow":187.9,
		"regularMarketVolume":51234567,"regularMarketTime":1717430400},
	"timestamp":[1717430400],
	"indicators":{"quote":[{"open":[188.4],"high":[191.2],"low":[187.9],"close":[190.5],"volume":[51234567]}]}
}],"error":null}}`

const chartHistoryBody = `{"chart":{"result":[{
	"meta":{"symbol":"AAPL","regularMarketPrice":190.5},
	"timestamp":[1717344000,1717430400,1717516800],
	"indicators":{"quote":[{
		"open":[187.1,null,189.0],
		"high":[189.0,190.0,191.5],
		"low":[186.5,187.0,188.2],
		"close":[188.0,189.5,190.5],
		"volume":[1000.4,2000,null]}]}
}],"error":null}}`

const chartNotFoundBody = `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`

const searchBody = `{"quotes":[
	{"symbol":"AAPL","shortname":"Apple Inc.","longname":"Apple Inc.","exchange":"NMS","quoteType":"EQUITY"},
	{"symbol":"APLE","shortname":"Apple Hospitality","exchange":"NYQ","quoteType":"EQUITY"},
	{"shortname":"no symbol"}]}`

const summaryBody = `{"quoteSummary":{"result":[{
	"assetProfile":{"sector":"Technology","industry":"Consumer Electronics","fullTimeEmployees":161000,
		"website":"https://www.apple.com","longBusinessSummary":"Designs phones.","country":"United States"},
	"price":{"longName":"Apple Inc.","currency":"USD","exchangeName":"NasdaqGS","marketCap":{"raw":2950000000000}}
}],"error":null}}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/v8/finance/chart/NOPE":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(chartNotFoundBody))
		case r.URL.Path == "/v8/finance/chart/AAPL" && r.URL.Query().Get("period1") != "":
			_, _ = w.Write([]byte(chartHistoryBody))
		case r.URL.Path == "/v8/finance/chart/AAPL":
			_, _ = w.Write([]byte(chartQuoteBody))
		case r.URL.Path == "/v1/finance/search":
			_, _ = w.Write([]byte(searchBody))
		case strings.HasPrefix(r.URL.Path, "/v10/finance/quoteSummary/AAPL"):
			_, _ = w.Write([]byte(summaryBody))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// go test -v --run TestQuote
func TestQuote(t *testing.T) {
	srv := newTestServer(t)
	client := NewClient(srv.URL, srv.URL, 5*time.Second)

	q, err := client.Quote(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", q.Symbol)
	assert.InDelta(t, 190.5, q.Price, 1e-9)
	assert.InDelta(t, 2.5, q.Change, 1e-9)
	assert.InDelta(t, 2.5/188.0*100, q.ChangePercent, 1e-9)
	assert.InDelta(t, 188.4, q.Open, 1e-9)
	assert.Equal(t, int64(51234567), q.Volume)
	assert.Equal(t, time.Unix(1717430400, 0).UTC(), q.Timestamp)
	assert.Zero(t, q.MarketCap)
}

// go test -v --run TestQuoteUnknownSymbol
func TestQuoteUnknownSymbol(t *testing.T) {
	srv := newTestServer(t)
	client := NewClient(srv.URL, srv.URL, 5*time.Second)

	_, err := client.Quote(context.Background(), "NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol may be delisted")
}

// go test -v --run TestHistorySkipsNullRows
func TestHistorySkipsNullRows(t *testing.T) {
	srv := newTestServer(t)
	client := NewClient(srv.URL, srv.URL, 5*time.Second)

	to := time.Unix(1717600000, 0)
	bars, err := client.History(context.Background(), "AAPL", "1d", to.AddDate(0, 0, -5), to)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, "188", bars[0].Close.String())
	assert.Equal(t, int64(1000), bars[0].Volume)
	assert.Equal(t, time.Unix(1717516800, 0).UTC(), bars[1].Time)
	assert.Equal(t, int64(0), bars[1].Volume)
}

// go test -v --run TestSearch
func TestSearch(t *testing.T) {
	srv := newTestServer(t)
	client := NewClient(srv.URL, srv.URL, 5*time.Second)

	res, err := client.Search(context.Background(), "apple")
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, SearchResult{Symbol: "AAPL", Name: "Apple Inc.", Exchange: "NMS", Type: "EQUITY"}, res[0])
	assert.Equal(t, "Apple Hospitality", res[1].Name)
}

// go test -v --run TestCompany
func TestCompany(t *testing.T) {
	srv := newTestServer(t)
	client := NewClient(srv.URL, srv.URL, 5*time.Second)

	c, err := client.Company(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", c.Name)
	assert.Equal(t, "Technology", c.Sector)
	assert.Equal(t, int64(161000), c.Employees)
	assert.InDelta(t, 2.95e12, c.MarketCap, 1)
	assert.Equal(t, "NasdaqGS", c.Exchange)
}

// go test -v --run TestServerError
func TestServerError(t *testing.T) {
	srv := newTestServer(t)
	client := NewClient(srv.URL, srv.URL, 5*time.Second)

	_, err := client.Company(context.Background(), "MSFT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

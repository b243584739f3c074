package yahoo

import (
	"time"

	"github.com/shopspring/decimal"
)

// Raw wire schemas. Numeric fields are pointers because Yahoo sends null for
// missing values.

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"chart"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta       chartMeta `json:"meta"`
	Timestamp  []int64   `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

type chartMeta struct {
	Currency             string   `json:"currency"`
	Symbol               string   `json:"symbol"`
	ExchangeName         string   `json:"exchangeName"`
	RegularMarketPrice   *float64 `json:"regularMarketPrice"`
	ChartPreviousClose   *float64 `json:"chartPreviousClose"`
	PreviousClose        *float64 `json:"previousClose"`
	RegularMarketDayHigh *float64 `json:"regularMarketDayHigh"`
	RegularMarketDayLow  *float64 `json:"regularMarketDayLow"`
	RegularMarketVolume  *float64 `json:"regularMarketVolume"`
	RegularMarketTime    int64    `json:"regularMarketTime"` // unix seconds
}

type searchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
		Exchange  string `json:"exchange"`
		QuoteType string `json:"quoteType"`
	} `json:"quotes"`
}

type rawValue struct {
	Raw *float64 `json:"raw"`
}

type summaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			AssetProfile *struct {
				Sector              string `json:"sector"`
				Industry            string `json:"industry"`
				FullTimeEmployees   *int64 `json:"fullTimeEmployees"`
				Website             string `json:"website"`
				LongBusinessSummary string `json:"longBusinessSummary"`
				Country             string `json:"country"`
			} `json:"assetProfile"`
			Price *struct {
				LongName     string   `json:"longName"`
				ShortName    string   `json:"shortName"`
				Currency     string   `json:"currency"`
				ExchangeName string   `json:"exchangeName"`
				MarketCap    rawValue `json:"marketCap"`
			} `json:"price"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"quoteSummary"`
}

// Quote is a normalized point-in-time quote. Missing numerics are 0.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Volume        int64     `json:"volume"`
	MarketCap     float64   `json:"marketCap"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Open          float64   `json:"open"`
	PreviousClose float64   `json:"previousClose"`
	Timestamp     time.Time `json:"timestamp"`
}

// Bar is one normalized OHLCV row.
type Bar struct {
	Time   time.Time       `json:"time"`
	Symbol string          `json:"symbol"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// Company is normalized reference data for a listed symbol.
type Company struct {
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name"`
	Sector      string  `json:"sector"`
	Industry    string  `json:"industry"`
	MarketCap   float64 `json:"marketCap"`
	Employees   int64   `json:"employees"`
	Website     string  `json:"website"`
	Description string  `json:"description"`
	Country     string  `json:"country"`
	Currency    string  `json:"currency"`
	Exchange    string  `json:"exchange"`
}

// SearchResult is one symbol match.
type SearchResult struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Type     string `json:"type"`
}

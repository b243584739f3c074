package market

import (
	"marketgateway/pkg/provider/alphavantage"
	"marketgateway/pkg/provider/yahoo"
)

// Canonical shapes come from the provider normalization boundary.
type (
	Quote        = yahoo.Quote
	Bar          = yahoo.Bar
	Company      = yahoo.Company
	SearchResult = yahoo.SearchResult
)

// Historical is the response of GetHistoricalBars.
type Historical struct {
	Symbol     string `json:"symbol"`
	Period     string `json:"period"`
	Interval   string `json:"interval"`
	DataPoints int    `json:"dataPoints"`
	Data       []Bar  `json:"data"`
}

// SectorEntry is one sector row. Error is set instead of the numbers when the
// ETF quote failed.
type SectorEntry struct {
	ETF           string   `json:"etf,omitempty"`
	Price         *float64 `json:"price,omitempty"`
	Change        *float64 `json:"change,omitempty"`
	ChangePercent *float64 `json:"changePercent,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// OverviewEntry is one index row: either a quote or an error marker.
type OverviewEntry struct {
	*Quote
	Error string `json:"error,omitempty"`
}

// BatchEntry is one symbol of a batch quote request.
type BatchEntry struct {
	Symbol string `json:"symbol"`
	Quote  *Quote `json:"quote,omitempty"`
	Error  string `json:"error,omitempty"`
}

type VIX struct {
	Value         float64 `json:"value"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
}

// Macro holds whichever indicators could be fetched.
type Macro struct {
	VIX      *VIX                        `json:"vix,omitempty"`
	Treasury *alphavantage.TreasuryYield `json:"treasury,omitempty"`
}

// Status is the NYSE session state at a point in time.
type Status struct {
	IsOpen     bool   `json:"isOpen"`
	Exchange   string `json:"exchange"`
	Timezone   string `json:"timezone"`
	Now        string `json:"now"`
	NextOpen   string `json:"nextOpen,omitempty"`
	IsBusiness bool   `json:"isBusinessDay"`
}

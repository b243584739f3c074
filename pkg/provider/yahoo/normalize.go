package yahoo

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoData is returned when Yahoo answers without usable rows.
var ErrNoData = errors.New("no data returned")

func valueOr(p *float64, fallback float64) float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return fallback
	}
	return *p
}

func at(values []*float64, i int) *float64 {
	if i < 0 || i >= len(values) {
		return nil
	}
	return values[i]
}

// normalizeQuote builds a Quote from chart metadata, falling back to the last
// bar for fields the metadata omits.
func normalizeQuote(symbol string, r chartResult, now time.Time) (*Quote, error) {
	if r.Meta.RegularMarketPrice == nil {
		return nil, ErrNoData
	}

	m := r.Meta
	price := valueOr(m.RegularMarketPrice, 0)
	prev := valueOr(m.PreviousClose, valueOr(m.ChartPreviousClose, price))

	q := &Quote{
		Symbol:        symbol,
		Price:         price,
		PreviousClose: prev,
		High:          valueOr(m.RegularMarketDayHigh, 0),
		Low:           valueOr(m.RegularMarketDayLow, 0),
		Volume:        int64(valueOr(m.RegularMarketVolume, 0)),
		Timestamp:     now.UTC(),
	}
	if m.RegularMarketTime > 0 {
		q.Timestamp = time.Unix(m.RegularMarketTime, 0).UTC()
	}

	q.Change = price - prev
	if prev != 0 {
		q.ChangePercent = q.Change / prev * 100
	}

	if len(r.Indicators.Quote) > 0 && len(r.Timestamp) > 0 {
		ind := r.Indicators.Quote[0]
		last := len(r.Timestamp) - 1
		q.Open = valueOr(at(ind.Open, last), 0)
		if q.High == 0 {
			q.High = valueOr(at(ind.High, last), 0)
		}
		if q.Low == 0 {
			q.Low = valueOr(at(ind.Low, last), 0)
		}
		if q.Volume == 0 {
			q.Volume = int64(valueOr(at(ind.Volume, last), 0))
		}
	}

	return q, nil
}

// normalizeBars converts chart rows into Bars. Rows with any null OHLC value
// are skipped; a null volume becomes 0.
func normalizeBars(symbol string, r chartResult) []Bar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	ind := r.Indicators.Quote[0]

	out := make([]Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		o, h, l, c := at(ind.Open, i), at(ind.High, i), at(ind.Low, i), at(ind.Close, i)
		if o == nil || h == nil || l == nil || c == nil {
			continue // skip incomplete row
		}

		out = append(out, Bar{
			Time:   time.Unix(ts, 0).UTC(),
			Symbol: symbol,
			Open:   decimal.NewFromFloat(*o),
			High:   decimal.NewFromFloat(*h),
			Low:    decimal.NewFromFloat(*l),
			Close:  decimal.NewFromFloat(*c),
			Volume: int64(math.Round(valueOr(at(ind.Volume, i), 0))),
		})
	}
	return out
}

func normalizeCompany(symbol string, r summaryResponse) (*Company, error) {
	if len(r.QuoteSummary.Result) == 0 {
		return nil, ErrNoData
	}
	res := r.QuoteSummary.Result[0]

	c := &Company{Symbol: symbol}
	if p := res.Price; p != nil {
		c.Name = p.LongName
		if c.Name == "" {
			c.Name = p.ShortName
		}
		c.Currency = p.Currency
		c.Exchange = p.ExchangeName
		c.MarketCap = valueOr(p.MarketCap.Raw, 0)
	}
	if a := res.AssetProfile; a != nil {
		c.Sector = a.Sector
		c.Industry = a.Industry
		c.Website = a.Website
		c.Description = a.LongBusinessSummary
		c.Country = a.Country
		if a.FullTimeEmployees != nil {
			c.Employees = *a.FullTimeEmployees
		}
	}
	if c.Name == "" && c.Sector == "" {
		return nil, ErrNoData
	}
	return c, nil
}

func normalizeSearch(r searchResponse) []SearchResult {
	out := make([]SearchResult, 0, len(r.Quotes))
	for _, q := range r.Quotes {
		if q.Symbol == "" {
			continue
		}
		name := q.LongName
		if name == "" {
			name = q.ShortName
		}
		out = append(out, SearchResult{
			Symbol:   q.Symbol,
			Name:     name,
			Exchange: q.Exchange,
			Type:     q.QuoteType,
		})
	}
	return out
}

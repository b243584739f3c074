package market

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"marketgateway/config"
	"marketgateway/internal/apperr"
	"marketgateway/pkg/cache"
	"marketgateway/pkg/provider/alphavantage"
	"marketgateway/pkg/provider/yahoo"
	"marketgateway/pkg/storage/postgres"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// MaxBatchSymbols bounds a single batch quote request.
const MaxBatchSymbols = 50

const (
	keySectors  = "sectors:performance"
	keyOverview = "market:overview"
	keyMacro    = "macro:indicators"
)

// Sector ETFs keyed by sector name.
var sectorETFs = []struct {
	Name string
	ETF  string
}{
	{"Technology", "XLK"},
	{"Financials", "XLF"},
	{"Healthcare", "XLV"},
	{"Energy", "XLE"},
	{"Industrials", "XLI"},
	{"Consumer Discretionary", "XLY"},
	{"Consumer Staples", "XLP"},
	{"Utilities", "XLU"},
	{"Materials", "XLB"},
	{"Real Estate", "XLRE"},
}

// Indices tracked by the market overview.
var overviewIndices = []string{"^GSPC", "^DJI", "^IXIC", "^VIX"}

// Provider is the upstream market-data source.
type Provider interface {
	Quote(ctx context.Context, symbol string) (*yahoo.Quote, error)
	History(ctx context.Context, symbol, interval string, from, to time.Time) ([]yahoo.Bar, error)
	Company(ctx context.Context, symbol string) (*yahoo.Company, error)
	Search(ctx context.Context, query string) ([]yahoo.SearchResult, error)
}

// TreasuryProvider is the optional secondary source for macro data.
type TreasuryProvider interface {
	Enabled() bool
	TreasuryYield(ctx context.Context, maturity string) (*alphavantage.TreasuryYield, error)
}

// BarStore persists and reads back bars.
type BarStore interface {
	StoreStockData(ctx context.Context, stock *postgres.StockRecord, bars []postgres.BarRecord) error
	GetBars(ctx context.Context, symbol string, from, to time.Time) ([]postgres.BarRecord, error)
}

type Options struct {
	Cache          cache.Store
	Provider       Provider
	Treasury       TreasuryProvider // optional
	Store          BarStore         // optional; nil disables persistence
	TTL            config.CacheConfig
	Persist        config.PersistConfig
	MaxConcurrency int
	Logger         *zap.Logger
}

// Service serves normalized market data through a cache-aside read path.
type Service struct {
	cache          cache.Store
	provider       Provider
	treasury       TreasuryProvider
	store          BarStore
	ttl            config.CacheConfig
	maxConcurrency int
	flight         *singleflight.Group
	persister      *persister
	logger         *zap.Logger
	now            func() time.Time
}

func NewService(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 10
	}

	s := &Service{
		cache:          opts.Cache,
		provider:       opts.Provider,
		treasury:       opts.Treasury,
		store:          opts.Store,
		ttl:            opts.TTL,
		maxConcurrency: opts.MaxConcurrency,
		logger:         log.Named("market"),
		now:            time.Now,
	}
	if opts.TTL.CollapseMisses {
		s.flight = &singleflight.Group{}
	}
	if opts.Store != nil {
		s.persister = newPersister(opts.Store, s.GetCompanyInfo, opts.Persist, s.logger)
	}
	return s
}

// Start launches the persistence workers.
func (s *Service) Start() {
	if s.persister != nil {
		s.persister.start()
	}
}

// Close stops accepting persistence jobs and waits for queued ones until ctx ends.
func (s *Service) Close(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	return s.persister.close(ctx)
}

// cached runs the cache-aside sequence for key. stored, when set, runs after a
// fresh value has been written to the cache.
func cached[T any](ctx context.Context, s *Service, key string, ttl time.Duration,
	fetch func(context.Context) (T, error), stored func(T)) (T, error) {

	var out T
	err := cache.GetJSON(ctx, s.cache, key, &out)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}

	load := func(ctx context.Context) (T, error) {
		v, err := fetch(ctx)
		if err != nil {
			return v, err
		}
		if err := cache.SetJSON(ctx, s.cache, key, v, ttl); err != nil {
			s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
		if stored != nil {
			stored(v)
		}
		return v, nil
	}

	if s.flight == nil {
		return load(ctx)
	}

	// The shared fetch outlives any single caller; each caller waits on its own ctx.
	ch := s.flight.DoChan(key, func() (any, error) {
		return load(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return out, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return out, ctx.Err()
	}
}

// GetQuote returns the latest quote for symbol.
func (s *Service) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	return cached(ctx, s, "quote:"+sym, s.ttl.QuoteTTL, func(ctx context.Context) (*Quote, error) {
		q, err := s.provider.Quote(ctx, sym)
		if err != nil {
			return nil, apperr.Upstream(err, "failed to fetch quote for %s", sym)
		}
		if q == nil {
			return nil, apperr.Upstream(nil, "empty quote for %s", sym)
		}
		return q, nil
	}, nil)
}

type quoteResult struct {
	quote *Quote
	err   error
}

// fetchQuotes calls GetQuote for every symbol with bounded concurrency and
// returns once all branches are done. Results keep the input order.
func (s *Service) fetchQuotes(ctx context.Context, symbols []string) []quoteResult {
	results := make([]quoteResult, len(symbols))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.maxConcurrency)

	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			q, err := s.GetQuote(ctx, symbol)
			if err != nil {
				s.logger.Warn("quote failed", zap.String("symbol", symbol), zap.Error(err))
			}
			results[i] = quoteResult{quote: q, err: err}
		}(i, symbol)
	}

	wg.Wait()
	return results
}

// GetQuotes fetches up to MaxBatchSymbols quotes. Per-symbol failures are
// reported in the entry instead of failing the call.
func (s *Service) GetQuotes(ctx context.Context, symbols []string) ([]BatchEntry, error) {
	if len(symbols) == 0 {
		return nil, apperr.Validation("symbols must not be empty")
	}
	if len(symbols) > MaxBatchSymbols {
		return nil, apperr.Validation("at most %d symbols per request, got %d", MaxBatchSymbols, len(symbols))
	}

	results := s.fetchQuotes(ctx, symbols)
	out := make([]BatchEntry, len(symbols))
	for i, r := range results {
		out[i] = BatchEntry{Symbol: strings.ToUpper(strings.TrimSpace(symbols[i])), Quote: r.quote}
		if r.err != nil {
			out[i].Error = errorMessage(r.err)
		}
	}
	return out, nil
}

// GetHistoricalBars returns bars for symbol over period at interval. Fresh
// fetches are queued for persistence after they are cached.
func (s *Service) GetHistoricalBars(ctx context.Context, symbol, period, interval string) (*Historical, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	period = strings.ToLower(strings.TrimSpace(period))
	if period == "" {
		period = "1y"
	}
	interval = NormalizeInterval(interval)

	key := "historical:" + sym + ":" + period + ":" + interval
	return cached(ctx, s, key, s.ttl.HistoricalTTL, func(ctx context.Context) (*Historical, error) {
		to := s.now().UTC()
		from := to.AddDate(0, 0, -LookbackDays(period, to))

		bars, err := s.provider.History(ctx, sym, interval, from, to)
		if err != nil && !errors.Is(err, yahoo.ErrNoData) {
			return nil, apperr.Upstream(err, "failed to fetch historical data for %s", sym)
		}
		if len(bars) == 0 {
			return nil, apperr.NoData("no historical data for %s", sym)
		}

		return &Historical{
			Symbol:     sym,
			Period:     period,
			Interval:   interval,
			DataPoints: len(bars),
			Data:       bars,
		}, nil
	}, func(h *Historical) {
		if s.persister != nil {
			s.persister.enqueue(persistJob{symbol: h.Symbol, bars: h.Data})
		}
	})
}

// GetStoredBars reads persisted bars for symbol in [from, to].
func (s *Service) GetStoredBars(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, apperr.New(apperr.KindInternal, "durable store is not configured")
	}
	if to.IsZero() {
		to = s.now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -defaultLookbackDays)
	}
	if from.After(to) {
		return nil, apperr.Validation("from must not be after to")
	}

	records, err := s.store.GetBars(ctx, sym, from, to)
	if err != nil {
		return nil, apperr.Database(err, "failed to read stored bars for %s", sym)
	}
	if len(records) == 0 {
		return nil, apperr.NoData("no stored data for %s", sym)
	}

	out := make([]Bar, len(records))
	for i, r := range records {
		out[i] = Bar{
			Time:   r.Time.UTC(),
			Symbol: r.Symbol,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
	}
	return out, nil
}

// GetCompanyInfo returns reference data for symbol.
func (s *Service) GetCompanyInfo(ctx context.Context, symbol string) (*Company, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	return cached(ctx, s, "company:"+sym, s.ttl.CompanyTTL, func(ctx context.Context) (*Company, error) {
		c, err := s.provider.Company(ctx, sym)
		if errors.Is(err, yahoo.ErrNoData) {
			return nil, apperr.NoData("no company data for %s", sym)
		}
		if err != nil {
			return nil, apperr.Upstream(err, "failed to fetch company info for %s", sym)
		}
		return c, nil
	}, nil)
}

// GetSectorPerformance quotes every sector ETF. A failed ETF becomes an error
// entry; the call itself does not fail.
func (s *Service) GetSectorPerformance(ctx context.Context) (map[string]SectorEntry, error) {
	return cached(ctx, s, keySectors, s.ttl.SectorsTTL, func(ctx context.Context) (map[string]SectorEntry, error) {
		etfs := make([]string, len(sectorETFs))
		for i, sec := range sectorETFs {
			etfs[i] = sec.ETF
		}

		results := s.fetchQuotes(ctx, etfs)
		out := make(map[string]SectorEntry, len(sectorETFs))
		for i, sec := range sectorETFs {
			r := results[i]
			if r.err != nil {
				out[sec.Name] = SectorEntry{ETF: sec.ETF, Error: errorMessage(r.err)}
				continue
			}
			price, change, pct := r.quote.Price, r.quote.Change, r.quote.ChangePercent
			out[sec.Name] = SectorEntry{ETF: sec.ETF, Price: &price, Change: &change, ChangePercent: &pct}
		}
		return out, nil
	}, nil)
}

// GetMarketOverview quotes the major indices with the same partial-failure
// handling as GetSectorPerformance.
func (s *Service) GetMarketOverview(ctx context.Context) (map[string]OverviewEntry, error) {
	return cached(ctx, s, keyOverview, s.ttl.OverviewTTL, func(ctx context.Context) (map[string]OverviewEntry, error) {
		results := s.fetchQuotes(ctx, overviewIndices)
		out := make(map[string]OverviewEntry, len(overviewIndices))
		for i, sym := range overviewIndices {
			if err := results[i].err; err != nil {
				out[sym] = OverviewEntry{Error: errorMessage(err)}
				continue
			}
			out[sym] = OverviewEntry{Quote: results[i].quote}
		}
		return out, nil
	}, nil)
}

// SearchStocks returns symbol matches for query. Short queries and upstream
// failures yield an empty list.
func (s *Service) SearchStocks(ctx context.Context, query string) ([]SearchResult, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if len(q) < 2 {
		return []SearchResult{}, nil
	}

	res, err := cached(ctx, s, "search:"+q, s.ttl.SearchTTL, func(ctx context.Context) ([]SearchResult, error) {
		return s.provider.Search(ctx, q)
	}, nil)
	if err != nil {
		s.logger.Warn("search failed", zap.String("query", q), zap.Error(err))
		return []SearchResult{}, nil
	}
	if res == nil {
		res = []SearchResult{}
	}
	return res, nil
}

var errNoIndicators = errors.New("no macro indicators available")

// GetMacroIndicators combines the VIX quote with the 10-year treasury yield
// when a secondary provider is configured. Failed parts are omitted.
func (s *Service) GetMacroIndicators(ctx context.Context) (*Macro, error) {
	m, err := cached(ctx, s, keyMacro, s.ttl.MacroTTL, func(ctx context.Context) (*Macro, error) {
		m := &Macro{}

		if q, err := s.GetQuote(ctx, "^VIX"); err != nil {
			s.logger.Warn("vix fetch failed", zap.Error(err))
		} else {
			m.VIX = &VIX{Value: q.Price, Change: q.Change, ChangePercent: q.ChangePercent}
		}

		if s.treasury != nil && s.treasury.Enabled() {
			if y, err := s.treasury.TreasuryYield(ctx, "10year"); err != nil {
				s.logger.Warn("treasury yield fetch failed", zap.Error(err))
			} else {
				m.Treasury = y
			}
		}

		if m.VIX == nil && m.Treasury == nil {
			return nil, errNoIndicators
		}
		return m, nil
	}, nil)
	if errors.Is(err, errNoIndicators) {
		return &Macro{}, nil
	}
	return m, err
}

// Refresh drops the aggregate cache entries and reloads them.
func (s *Service) Refresh(ctx context.Context) error {
	for _, key := range []string{keyOverview, keySectors} {
		if err := s.cache.Delete(ctx, key); err != nil {
			return err
		}
	}
	if _, err := s.GetMarketOverview(ctx); err != nil {
		return err
	}
	_, err := s.GetSectorPerformance(ctx)
	return err
}

func errorMessage(err error) string {
	if e, ok := apperr.As(err); ok {
		if e.Cause != nil {
			return e.Message + ": " + e.Cause.Error()
		}
		return e.Message
	}
	return err.Error()
}
